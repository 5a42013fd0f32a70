package dto

import "time"

// Coordinates are pointers so a missing field can be told apart from 0.
type PositionRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

type PositionResponse struct {
	ID         string    `json:"id"`
	AgentID    string    `json:"agent_id"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	CapturedAt time.Time `json:"timestamp"`
}

type AlertRequest struct {
	Message string `json:"message" binding:"required"`
}

type AlertResponse struct {
	AgentID    string    `json:"agent_id"`
	Message    string    `json:"message"`
	CapturedAt time.Time `json:"timestamp"`
}

type SendMessageRequest struct {
	RecipientID string `json:"recipient_id" binding:"required"`
	Message     string `json:"message" binding:"required"`
}

type SendMessageResponse struct {
	Delivered bool `json:"delivered"`
}
