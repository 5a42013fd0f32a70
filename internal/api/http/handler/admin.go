package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lameck50/backend-kami/internal/api/http/dto"
	"github.com/lameck50/backend-kami/internal/session"
)

type AdminHandler struct {
	registry *session.Registry
}

func NewAdminHandler(registry *session.Registry) *AdminHandler {
	return &AdminHandler{
		registry: registry,
	}
}

// ListSessions returns the live sessions.
// GET /api/admin/sessions
func (h *AdminHandler) ListSessions(ctx *gin.Context) {
	infos := h.registry.List()

	sessions := make([]dto.SessionInfo, 0, len(infos))
	for _, info := range infos {
		sessions = append(sessions, dto.SessionInfo{
			ID:          info.ID,
			ConnectedAt: info.ConnectedAt,
		})
	}

	ctx.JSON(http.StatusOK, dto.SessionsResponse{
		Sessions: sessions,
		Count:    len(sessions),
	})
}
