package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lameck50/backend-kami/internal/api/http/dto"
	"github.com/lameck50/backend-kami/internal/enrollment"
)

type EnrollmentHandler struct {
	enrollmentService *enrollment.Service
}

func NewEnrollmentHandler(enrollmentService *enrollment.Service) *EnrollmentHandler {
	return &EnrollmentHandler{enrollmentService: enrollmentService}
}

// CreateEnrollment issues a one-time pairing code for an agent device.
// POST /api/admin/enrollments
func (h *EnrollmentHandler) CreateEnrollment(c *gin.Context) {
	var req dto.CreateEnrollmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	code, err := h.enrollmentService.Create(c.Request.Context(), req.UserID)
	if err != nil {
		if errors.Is(err, enrollment.ErrNotAgent) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		respondError(c, err, "Failed to create enrollment code")
		return
	}

	c.JSON(http.StatusCreated, enrollmentResponse(code))
}

// GET /api/admin/enrollments
func (h *EnrollmentHandler) ListEnrollments(c *gin.Context) {
	pending := h.enrollmentService.Pending()

	resp := dto.ListEnrollmentsResponse{
		Enrollments: make([]dto.EnrollmentResponse, 0, len(pending)),
		Count:       len(pending),
	}
	for _, code := range pending {
		resp.Enrollments = append(resp.Enrollments, enrollmentResponse(code))
	}
	c.JSON(http.StatusOK, resp)
}

// DELETE /api/admin/enrollments/:user_id
func (h *EnrollmentHandler) RevokeEnrollments(c *gin.Context) {
	revoked := h.enrollmentService.Revoke(c.Param("user_id"))
	c.JSON(http.StatusOK, dto.RevokeEnrollmentsResponse{Revoked: revoked})
}

// Enroll trades a pairing code for an access token.
// POST /api/auth/enroll
func (h *EnrollmentHandler) Enroll(c *gin.Context) {
	var req dto.EnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.enrollmentService.Redeem(c.Request.Context(), req.Code)
	if err != nil {
		if errors.Is(err, enrollment.ErrCodeNotFound) || errors.Is(err, enrollment.ErrCodeExpired) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		slog.Error("Failed to enroll device", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, dto.LoginResponse{
		Token: result.Token,
		User:  userResponse(result.User),
	})
}

func enrollmentResponse(code enrollment.Code) dto.EnrollmentResponse {
	return dto.EnrollmentResponse{
		Code:      code.Code,
		UserID:    code.UserID,
		CreatedAt: code.CreatedAt,
		ExpiresAt: code.ExpiresAt,
	}
}
