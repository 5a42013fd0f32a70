package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lameck50/backend-kami/internal/agents"
	"github.com/lameck50/backend-kami/internal/api/http/dto"
	"github.com/lameck50/backend-kami/internal/session"
)

type AgentsHandler struct {
	agentService *agents.Service
	registry     *session.Registry
}

func NewAgentsHandler(agentService *agents.Service, registry *session.Registry) *AgentsHandler {
	return &AgentsHandler{
		agentService: agentService,
		registry:     registry,
	}
}

// ListAgents returns every agent with status and last known position
// GET /api/agents
func (h *AgentsHandler) ListAgents(c *gin.Context) {
	agentList, err := h.agentService.List(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to list agents")
		return
	}

	responses := make([]dto.AgentResponse, len(agentList))
	for i, a := range agentList {
		response := dto.AgentResponse{
			ID:     a.ID,
			Name:   a.Name,
			Status: string(a.Status),
		}
		if a.LastPosition != nil {
			p := positionResponse(*a.LastPosition)
			response.LastPosition = &p
		}
		if h.registry != nil {
			_, response.Online = h.registry.Lookup(a.ID)
		}
		responses[i] = response
	}

	c.JSON(http.StatusOK, dto.ListAgentsResponse{Agents: responses, Count: len(responses)})
}

// UpdateStatus sets an administrative status
// PUT /api/agents/:id/status
func (h *AgentsHandler) UpdateStatus(c *gin.Context) {
	var req dto.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	agentID := c.Param("id")
	if err := h.agentService.UpdateStatus(c.Request.Context(), agentID, req.Status); err != nil {
		if errors.Is(err, agents.ErrReservedStatus) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		respondError(c, err, "Failed to update agent status")
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": agentID, "status": req.Status})
}
