package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lameck50/backend-kami/internal/api/http/dto"
	"github.com/lameck50/backend-kami/internal/geofences"
	"github.com/lameck50/backend-kami/internal/tracking"
)

type GeofencesHandler struct {
	geofenceService *geofences.Service
}

func NewGeofencesHandler(geofenceService *geofences.Service) *GeofencesHandler {
	return &GeofencesHandler{geofenceService: geofenceService}
}

// CreateGeofence stores a circular zone owned by the caller
// POST /api/geofences
func (h *GeofencesHandler) CreateGeofence(c *gin.Context) {
	var req dto.CreateGeofenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	params := geofences.CreateParams{
		Name:         req.Name,
		CenterLat:    *req.CenterLat,
		CenterLon:    *req.CenterLon,
		RadiusMeters: req.RadiusMeters,
		AlertOnEnter: true,
	}
	if req.AlertOnEnter != nil {
		params.AlertOnEnter = *req.AlertOnEnter
	}
	if req.AlertOnExit != nil {
		params.AlertOnExit = *req.AlertOnExit
	}

	g, err := h.geofenceService.Create(c.Request.Context(), identity(c), params)
	if err != nil {
		respondError(c, err, "Failed to create geofence")
		return
	}

	c.JSON(http.StatusCreated, geofenceResponse(g))
}

// ListGeofences returns the caller's zones, or all zones for admins
// GET /api/geofences
func (h *GeofencesHandler) ListGeofences(c *gin.Context) {
	list, err := h.geofenceService.List(c.Request.Context(), identity(c))
	if err != nil {
		respondError(c, err, "Failed to list geofences")
		return
	}

	out := make([]dto.GeofenceResponse, len(list))
	for i, g := range list {
		out[i] = geofenceResponse(g)
	}
	c.JSON(http.StatusOK, dto.ListGeofencesResponse{Geofences: out, Count: len(out)})
}

// DeleteGeofence removes a zone
// DELETE /api/geofences/:id
func (h *GeofencesHandler) DeleteGeofence(c *gin.Context) {
	if err := h.geofenceService.Delete(c.Request.Context(), identity(c), c.Param("id")); err != nil {
		respondError(c, err, "Failed to delete geofence")
		return
	}
	c.Status(http.StatusNoContent)
}

func geofenceResponse(g tracking.Geofence) dto.GeofenceResponse {
	return dto.GeofenceResponse{
		ID:           g.ID,
		OwnerID:      g.OwnerID,
		Name:         g.Name,
		CenterLat:    g.CenterLat,
		CenterLon:    g.CenterLon,
		RadiusMeters: g.RadiusMeters,
		AlertOnEnter: g.AlertOnEnter,
		AlertOnExit:  g.AlertOnExit,
		CreatedAt:    g.CreatedAt,
	}
}
