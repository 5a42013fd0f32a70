package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lameck50/backend-kami/internal/api/http/dto"
	"github.com/lameck50/backend-kami/internal/users"
)

type UserHandler struct {
	userService *users.Service
}

func NewUserHandler(userService *users.Service) *UserHandler {
	return &UserHandler{userService: userService}
}

// CreateUser provisions an account.
// POST /api/admin/users
func (h *UserHandler) CreateUser(c *gin.Context) {
	var req dto.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	u, err := h.userService.CreateUser(c.Request.Context(), users.CreateParams{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
		PostName: req.PostName,
	})
	if err != nil {
		respondError(c, err, "Failed to create user")
		return
	}

	c.JSON(http.StatusCreated, userResponse(u))
}

// Me returns the authenticated user.
// GET /api/auth/me
func (h *UserHandler) Me(c *gin.Context) {
	u, err := h.userService.GetUser(c.Request.Context(), identity(c).ID)
	if err != nil {
		respondError(c, err, "Failed to get user")
		return
	}
	c.JSON(http.StatusOK, userResponse(u))
}

// RegisterDevice stores a push token for the caller.
// POST /api/devices
func (h *UserHandler) RegisterDevice(c *gin.Context) {
	var req dto.RegisterDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.userService.RegisterDeviceToken(c.Request.Context(), identity(c).ID, req.Token); err != nil {
		respondError(c, err, "Failed to register device")
		return
	}
	c.Status(http.StatusNoContent)
}
