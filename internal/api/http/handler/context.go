package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lameck50/backend-kami/internal/api/http/dto"
	"github.com/lameck50/backend-kami/internal/api/http/middleware"
	"github.com/lameck50/backend-kami/internal/geofences"
	"github.com/lameck50/backend-kami/internal/tracking"
	"github.com/lameck50/backend-kami/internal/users"
)

func identity(c *gin.Context) tracking.Identity {
	return tracking.Identity{
		ID:   c.GetString(middleware.ContextUserID),
		Name: c.GetString(middleware.ContextName),
		Role: c.GetString(middleware.ContextRole),
	}
}

// respondError maps domain errors to status codes. Anything unrecognised is
// logged and answered with a generic 500.
func respondError(c *gin.Context, err error, msg string) {
	var validation *tracking.ValidationError
	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"error": validation.Error()})
	case errors.Is(err, tracking.ErrInvalidStatus),
		errors.Is(err, users.ErrInvalidRole),
		errors.Is(err, users.ErrIncompleteUser),
		errors.Is(err, users.ErrPasswordTooShort),
		errors.Is(err, users.ErrPasswordTooLong):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, geofences.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, tracking.ErrAgentNotFound),
		errors.Is(err, tracking.ErrGeofenceNotFound),
		errors.Is(err, users.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, users.ErrEmailExists):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		slog.Error(msg, "error", err, "path", c.Request.URL.Path)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func positionResponse(p tracking.Position) dto.PositionResponse {
	return dto.PositionResponse{
		ID:         p.ID,
		AgentID:    p.AgentID,
		Latitude:   p.Lat,
		Longitude:  p.Lon,
		CapturedAt: p.CapturedAt,
	}
}
