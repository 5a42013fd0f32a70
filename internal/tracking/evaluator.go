package tracking

import (
	"context"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/lameck50/backend-kami/internal/events"
	"github.com/lameck50/backend-kami/internal/geo"
	"github.com/lameck50/backend-kami/internal/metrics"
)

const (
	DefaultEvaluatorWorkers   = 4
	DefaultEvaluatorQueueSize = 256
	evaluationTimeout         = 30 * time.Second
)

type Crossing struct {
	Fence Geofence
	Type  events.CrossingType
}

// DetectCrossings compares the two samples against every zone. A zone yields
// at most one crossing: enter when the agent moved from outside to inside,
// exit for the opposite move, each only if the zone alerts on it.
func DetectCrossings(prev, curr Position, fences []Geofence) []Crossing {
	var out []Crossing
	for _, f := range fences {
		wasInside := geo.DistanceMeters(prev.Point(), f.Center()) <= f.RadiusMeters
		isInside := geo.DistanceMeters(curr.Point(), f.Center()) <= f.RadiusMeters

		if !wasInside && isInside && f.AlertOnEnter {
			out = append(out, Crossing{Fence: f, Type: events.CrossingEnter})
		} else if wasInside && !isInside && f.AlertOnExit {
			out = append(out, Crossing{Fence: f, Type: events.CrossingExit})
		}
	}
	return out
}

// EvaluationJob carries the two most recent samples of one agent.
type EvaluationJob struct {
	Agent    Identity
	Previous Position
	Current  Position
}

type EvaluatorConfig struct {
	Workers   int
	QueueSize int
}

// Evaluator runs geofence checks off the ingestion path. Jobs for the same
// agent always land on the same worker so their alerts keep sample order.
type Evaluator struct {
	store     Store
	publisher Publisher
	workers   int
	queueSize int

	mu      sync.RWMutex
	queues  []chan EvaluationJob
	running bool
	wg      sync.WaitGroup
}

func NewEvaluator(store Store, publisher Publisher, cfg EvaluatorConfig) *Evaluator {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultEvaluatorWorkers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultEvaluatorQueueSize
	}
	return &Evaluator{
		store:     store,
		publisher: publisher,
		workers:   cfg.Workers,
		queueSize: cfg.QueueSize,
	}
}

func (e *Evaluator) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return
	}

	e.queues = make([]chan EvaluationJob, e.workers)
	for i := range e.queues {
		e.queues[i] = make(chan EvaluationJob, e.queueSize)
		e.wg.Add(1)
		go e.work(ctx, i, e.queues[i])
	}
	e.running = true

	slog.Info("Geofence evaluator started", "workers", e.workers, "queue_size", e.queueSize)
}

// Stop lets workers finish the queued jobs and waits for them.
func (e *Evaluator) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	for _, q := range e.queues {
		close(q)
	}
	e.mu.Unlock()

	e.wg.Wait()
	slog.Info("Geofence evaluator stopped")
}

// Enqueue hands job to its worker without blocking. It reports false when
// the evaluator is stopped or the worker queue is full.
func (e *Evaluator) Enqueue(job EvaluationJob) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if !e.running {
		return false
	}

	select {
	case e.queues[shard(job.Agent.ID, len(e.queues))] <- job:
		return true
	default:
		metrics.ObserveEvaluationDropped()
		return false
	}
}

// Evaluate runs one job synchronously and publishes the resulting alerts.
func (e *Evaluator) Evaluate(ctx context.Context, job EvaluationJob) ([]events.GeofenceAlert, error) {
	fences, err := e.store.ListGeofences(ctx)
	if err != nil {
		return nil, storageErr("list geofences", err)
	}

	crossings := DetectCrossings(job.Previous, job.Current, fences)
	alerts := make([]events.GeofenceAlert, 0, len(crossings))
	for _, c := range crossings {
		alert := events.GeofenceAlert{
			AgentID:   job.Agent.ID,
			AgentName: job.Agent.Name,
			FenceID:   c.Fence.ID,
			FenceName: c.Fence.Name,
			EventType: c.Type,
		}
		e.publisher.Publish(events.New(events.TypeGeofenceAlert, alert))
		metrics.ObserveGeofenceAlert(string(c.Type))

		slog.Info("Geofence crossing detected",
			"agent_id", job.Agent.ID,
			"fence_id", c.Fence.ID,
			"event_type", c.Type)
		alerts = append(alerts, alert)
	}
	return alerts, nil
}

func (e *Evaluator) work(ctx context.Context, id int, queue <-chan EvaluationJob) {
	defer e.wg.Done()

	for job := range queue {
		jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), evaluationTimeout)
		if _, err := e.Evaluate(jobCtx, job); err != nil {
			slog.Error("Geofence evaluation failed",
				"worker", id,
				"agent_id", job.Agent.ID,
				"error", err)
		}
		cancel()
	}
}

func shard(key string, n int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(n))
}
