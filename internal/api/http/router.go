package http

import (
	nethttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/lameck50/backend-kami/internal/agents"
	"github.com/lameck50/backend-kami/internal/api/http/handler"
	"github.com/lameck50/backend-kami/internal/api/http/middleware"
	"github.com/lameck50/backend-kami/internal/auth"
	"github.com/lameck50/backend-kami/internal/enrollment"
	"github.com/lameck50/backend-kami/internal/geofences"
	"github.com/lameck50/backend-kami/internal/session"
	"github.com/lameck50/backend-kami/internal/tracking"
	"github.com/lameck50/backend-kami/internal/users"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	roleAgent      = string(users.RoleAgent)
	roleSupervisor = string(users.RoleSupervisor)
	roleAdmin      = string(users.RoleAdmin)
)

type Services struct {
	JWTSecret       string
	MetricsAPIKey   string
	MetricsEnabled  bool
	HealthChecks    map[string]handler.HealthCheck
	AuthService     *auth.Service
	UserService     *users.Service
	TrackingService *tracking.Service
	AgentService    *agents.Service
	GeofenceService *geofences.Service
	// EnrollmentService enables device pairing routes when set.
	EnrollmentService *enrollment.Service
	Registry          *session.Registry
	// WebSocket serves /ws when set.
	WebSocket nethttp.Handler
}

func SetupRoute(engine *gin.Engine, srvs *Services) {
	engine.Use(middleware.RequestLogger())

	healthHandler := handler.NewHealthHandler(srvs.HealthChecks)
	engine.GET("/health", healthHandler.Check)

	if srvs.MetricsEnabled {
		metricsRoute := []gin.HandlerFunc{}
		if srvs.MetricsAPIKey != "" {
			metricsRoute = append(metricsRoute, middleware.APIKeyAuth(srvs.MetricsAPIKey))
		}
		metricsRoute = append(metricsRoute, gin.WrapH(promhttp.Handler()))
		engine.GET("/metrics", metricsRoute...)
	}

	if srvs.WebSocket != nil {
		engine.GET("/ws", gin.WrapH(srvs.WebSocket))
	}

	api := engine.Group("/api")

	authHandler := handler.NewAuthHandler(srvs.AuthService)
	api.POST("/auth/login", authHandler.Login)

	protected := api.Group("", middleware.JWTAuth(srvs.JWTSecret))

	userHandler := handler.NewUserHandler(srvs.UserService)
	protected.GET("/auth/me", userHandler.Me)
	protected.POST("/devices", userHandler.RegisterDevice)

	trackingHandler := handler.NewTrackingHandler(srvs.TrackingService)
	protected.POST("/positions", middleware.RequireRole(roleAgent), trackingHandler.ReportPosition)
	protected.POST("/agent/alert", middleware.RequireRole(roleAgent), trackingHandler.RaiseAlert)
	protected.POST("/messages", trackingHandler.SendMessage)

	agentsHandler := handler.NewAgentsHandler(srvs.AgentService, srvs.Registry)
	protected.GET("/agents", middleware.RequireRole(roleSupervisor, roleAdmin), agentsHandler.ListAgents)
	protected.PUT("/agents/:id/status", middleware.RequireRole(roleAdmin), agentsHandler.UpdateStatus)

	geofencesHandler := handler.NewGeofencesHandler(srvs.GeofenceService)
	zones := protected.Group("/geofences", middleware.RequireRole(roleSupervisor, roleAdmin))
	zones.GET("", geofencesHandler.ListGeofences)
	zones.POST("", geofencesHandler.CreateGeofence)
	zones.DELETE("/:id", geofencesHandler.DeleteGeofence)

	admin := protected.Group("/admin", middleware.RequireRole(roleAdmin))
	adminHandler := handler.NewAdminHandler(srvs.Registry)
	admin.GET("/sessions", adminHandler.ListSessions)
	admin.POST("/users", userHandler.CreateUser)

	if srvs.EnrollmentService != nil {
		enrollmentHandler := handler.NewEnrollmentHandler(srvs.EnrollmentService)
		api.POST("/auth/enroll", enrollmentHandler.Enroll)
		admin.GET("/enrollments", enrollmentHandler.ListEnrollments)
		admin.POST("/enrollments", enrollmentHandler.CreateEnrollment)
		admin.DELETE("/enrollments/:user_id", enrollmentHandler.RevokeEnrollments)
	}
}
