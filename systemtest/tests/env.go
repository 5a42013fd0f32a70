package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/lameck50/backend-kami/internal/api/http/dto"
	"github.com/lameck50/backend-kami/internal/session"
	"github.com/lameck50/backend-kami/internal/store/postgres"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	seededAdminEmail    = "admin@kami.local"
	seededAdminPassword = "changeme"
)

type Env struct {
	Router    *gin.Engine
	Store     *postgres.Store
	Registry  *session.Registry
	JWTSecret string
}

func TestHealthCheck(t *testing.T, env *Env) {
	rr := doJSON(env.Router, "GET", "/health", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok","checks":{"database":"ok"}}`, rr.Body.String())
}

func doJSON(router *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func login(t *testing.T, env *Env, email, password string) dto.LoginResponse {
	t.Helper()
	rr := doJSON(env.Router, "POST", "/api/auth/login", "", dto.LoginRequest{Email: email, Password: password})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp dto.LoginResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}

// createUser provisions an account through the admin API and logs in as it.
func createUser(t *testing.T, env *Env, adminToken string, req dto.CreateUserRequest) dto.LoginResponse {
	t.Helper()
	rr := doJSON(env.Router, "POST", "/api/admin/users", adminToken, req)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	return login(t, env, req.Email, req.Password)
}
