package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lameck50/backend-kami/internal/api/http/dto"
	"github.com/lameck50/backend-kami/internal/tracking"
)

type TrackingHandler struct {
	trackingService *tracking.Service
}

func NewTrackingHandler(trackingService *tracking.Service) *TrackingHandler {
	return &TrackingHandler{trackingService: trackingService}
}

// ReportPosition ingests a location sample from the calling agent.
// POST /api/positions
func (h *TrackingHandler) ReportPosition(c *gin.Context) {
	var req dto.PositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p, err := h.trackingService.Ingest(c.Request.Context(), identity(c), req.Latitude, req.Longitude)
	if err != nil {
		respondError(c, err, "Failed to ingest position")
		return
	}

	c.JSON(http.StatusCreated, positionResponse(p))
}

// RaiseAlert broadcasts a free-form alert.
// POST /api/agent/alert
func (h *TrackingHandler) RaiseAlert(c *gin.Context) {
	var req dto.AlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	alert, err := h.trackingService.RaiseAlert(c.Request.Context(), identity(c), req.Message)
	if err != nil {
		respondError(c, err, "Failed to raise alert")
		return
	}

	c.JSON(http.StatusCreated, dto.AlertResponse{
		AgentID:    alert.AgentID,
		Message:    alert.Message,
		CapturedAt: alert.CapturedAt,
	})
}

// SendMessage relays a chat message to a live session.
// POST /api/messages
func (h *TrackingHandler) SendMessage(c *gin.Context) {
	var req dto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	delivered, err := h.trackingService.SendMessage(c.Request.Context(), identity(c), req.RecipientID, req.Message)
	if err != nil {
		respondError(c, err, "Failed to send message")
		return
	}

	c.JSON(http.StatusAccepted, dto.SendMessageResponse{Delivered: delivered})
}
