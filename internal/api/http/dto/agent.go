package dto

import "time"

type AgentResponse struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Status       string            `json:"status"`
	Online       bool              `json:"online"`
	LastPosition *PositionResponse `json:"last_position,omitempty"`
}

type ListAgentsResponse struct {
	Agents []AgentResponse `json:"agents"`
	Count  int             `json:"count"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type SessionInfo struct {
	ID          string    `json:"id"`
	ConnectedAt time.Time `json:"connected_at"`
}

type SessionsResponse struct {
	Sessions []SessionInfo `json:"sessions"`
	Count    int           `json:"count"`
}
