package dto

import "time"

type CreateEnrollmentRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

type EnrollmentResponse struct {
	Code      string    `json:"code,omitempty"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

type ListEnrollmentsResponse struct {
	Enrollments []EnrollmentResponse `json:"enrollments"`
	Count       int                  `json:"count"`
}

type EnrollRequest struct {
	Code string `json:"code" binding:"required"`
}

type RevokeEnrollmentsResponse struct {
	Revoked int `json:"revoked"`
}
