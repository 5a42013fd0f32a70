package tests

import (
	"net/http"
	"testing"

	"github.com/lameck50/backend-kami/internal/api/http/dto"
	"github.com/lameck50/backend-kami/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogin(t *testing.T, env *Env) {
	t.Run("seeded admin", func(t *testing.T) {
		resp := login(t, env, seededAdminEmail, seededAdminPassword)
		assert.Equal(t, "admin", resp.User.Role)

		claims, err := auth.ValidateToken(env.JWTSecret, resp.Token)
		require.NoError(t, err)
		assert.Equal(t, "00000000-0000-0000-0000-000000000001", claims.UserID)
		assert.Equal(t, "admin", claims.Role)
	})

	t.Run("email is case insensitive", func(t *testing.T) {
		resp := login(t, env, "ADMIN@kami.local", seededAdminPassword)
		assert.NotEmpty(t, resp.Token)
	})

	t.Run("wrong password", func(t *testing.T) {
		body := dto.LoginRequest{Email: seededAdminEmail, Password: "wrongpassword"}
		rr := doJSON(env.Router, "POST", "/api/auth/login", "", body)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("nonexistent user", func(t *testing.T) {
		body := dto.LoginRequest{Email: "nobody@kami.local", Password: "password123"}
		rr := doJSON(env.Router, "POST", "/api/auth/login", "", body)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("duplicate email", func(t *testing.T) {
		admin := login(t, env, seededAdminEmail, seededAdminPassword)
		req := dto.CreateUserRequest{Name: "Dup", Email: "dup@kami.local", Password: "password123", Role: "agent"}
		createUser(t, env, admin.Token, req)

		rr := doJSON(env.Router, "POST", "/api/admin/users", admin.Token, req)
		assert.Equal(t, http.StatusConflict, rr.Code)
	})
}
