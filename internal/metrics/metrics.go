package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "kami_"

	ResultSuccess = "success"
	ResultError   = "error"
	ResultInvalid = "invalid"

	ResultDelivered = "delivered"
	ResultDropped   = "dropped"
)

var (
	registerOnce sync.Once

	positionsIngested  *prometheus.CounterVec
	geofenceAlerts     *prometheus.CounterVec
	statusDemotions    prometheus.Counter
	sweepDuration      prometheus.Histogram
	busDeliveries      *prometheus.CounterVec
	evaluationsDropped prometheus.Counter
	notifications      *prometheus.CounterVec
	liveSessions       prometheus.Gauge
	httpRequests       *prometheus.HistogramVec
)

// Init registers the tracking collectors with reg. Calling the Observe helpers
// before Init is a no-op.
func Init(reg prometheus.Registerer) {
	registerOnce.Do(func() {
		positionsIngested = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "positions_ingested_total",
				Help: "Position samples received by result",
			},
			[]string{"result"},
		)
		geofenceAlerts = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "geofence_alerts_total",
				Help: "Geofence crossings detected by event type",
			},
			[]string{"event_type"},
		)
		statusDemotions = prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "status_demotions_total",
			Help: "Agents demoted to signal_lost by the inactivity sweep",
		})
		sweepDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    metricPrefix + "inactivity_sweep_seconds",
			Help:    "Inactivity sweep duration in seconds",
			Buckets: prometheus.DefBuckets,
		})
		busDeliveries = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "bus_deliveries_total",
				Help: "Event deliveries to sessions and sinks by target and result",
			},
			[]string{"target", "result"},
		)
		evaluationsDropped = prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "geofence_evaluations_dropped_total",
			Help: "Geofence evaluation jobs dropped because the queue was full",
		})
		notifications = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "notifications_total",
				Help: "Outbound notifications by result",
			},
			[]string{"result"},
		)
		liveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "live_sessions",
			Help: "Currently registered live sessions",
		})

		httpRequests = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "http_request_duration_seconds",
				Help:    "HTTP request latency by route and status",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		)

		reg.MustRegister(
			positionsIngested,
			geofenceAlerts,
			statusDemotions,
			sweepDuration,
			busDeliveries,
			evaluationsDropped,
			notifications,
			liveSessions,
			httpRequests,
		)
	})
}

func ObservePositionIngested(result string) {
	if positionsIngested == nil {
		return
	}
	positionsIngested.WithLabelValues(result).Inc()
}

func ObserveGeofenceAlert(eventType string) {
	if geofenceAlerts == nil {
		return
	}
	geofenceAlerts.WithLabelValues(eventType).Inc()
}

func ObserveDemotion() {
	if statusDemotions == nil {
		return
	}
	statusDemotions.Inc()
}

func ObserveSweep(seconds float64) {
	if sweepDuration == nil {
		return
	}
	sweepDuration.Observe(seconds)
}

func ObserveDelivery(target, result string) {
	if busDeliveries == nil {
		return
	}
	busDeliveries.WithLabelValues(target, result).Inc()
}

func ObserveEvaluationDropped() {
	if evaluationsDropped == nil {
		return
	}
	evaluationsDropped.Inc()
}

func ObserveNotification(result string) {
	if notifications == nil {
		return
	}
	notifications.WithLabelValues(result).Inc()
}

func SetLiveSessions(n int) {
	if liveSessions == nil {
		return
	}
	liveSessions.Set(float64(n))
}

func ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	if httpRequests == nil {
		return
	}
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Observe(duration.Seconds())
}
