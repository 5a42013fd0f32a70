package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/lameck50/backend-kami/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testSecret = "middleware-test-secret"

func setupRouter() *gin.Engine {
	r := gin.New()
	r.Use(RequestLogger())
	protected := r.Group("/", JWTAuth(testSecret))
	protected.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"id":   c.GetString(ContextUserID),
			"name": c.GetString(ContextName),
			"role": c.GetString(ContextRole),
		})
	})
	protected.GET("/admin", RequireRole("admin"), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	r.GET("/metrics", APIKeyAuth("scrape-key"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func request(t *testing.T, r *gin.Engine, path string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req, err := http.NewRequest("GET", path, nil)
	require.NoError(t, err)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestBearerToken(t *testing.T) {
	token, ok := BearerToken("Bearer abc")
	assert.True(t, ok)
	assert.Equal(t, "abc", token)

	_, ok = BearerToken("Basic abc")
	assert.False(t, ok)
	_, ok = BearerToken("Bearer ")
	assert.False(t, ok)
	_, ok = BearerToken("")
	assert.False(t, ok)
}

func TestJWTAuth(t *testing.T) {
	r := setupRouter()
	token, err := auth.GenerateToken(auth.Config{Secret: testSecret}, "u-1", "Amani", "agent")
	require.NoError(t, err)

	t.Run("missing header", func(t *testing.T) {
		w := request(t, r, "/me", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("bad token", func(t *testing.T) {
		w := request(t, r, "/me", map[string]string{"Authorization": "Bearer nope"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("valid token sets identity", func(t *testing.T) {
		w := request(t, r, "/me", map[string]string{"Authorization": "Bearer " + token})
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"id":"u-1","name":"Amani","role":"agent"}`, w.Body.String())
	})
}

func TestRequireRole(t *testing.T) {
	r := setupRouter()
	agentToken, err := auth.GenerateToken(auth.Config{Secret: testSecret}, "u-1", "Amani", "agent")
	require.NoError(t, err)
	adminToken, err := auth.GenerateToken(auth.Config{Secret: testSecret}, "u-2", "Root", "admin")
	require.NoError(t, err)

	w := request(t, r, "/admin", map[string]string{"Authorization": "Bearer " + agentToken})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = request(t, r, "/admin", map[string]string{"Authorization": "Bearer " + adminToken})
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestAPIKeyAuth(t *testing.T) {
	r := setupRouter()

	assert.Equal(t, http.StatusUnauthorized, request(t, r, "/metrics", nil).Code)
	assert.Equal(t, http.StatusUnauthorized,
		request(t, r, "/metrics", map[string]string{"X-API-Key": "wrong"}).Code)
	assert.Equal(t, http.StatusOK,
		request(t, r, "/metrics", map[string]string{"X-API-Key": "scrape-key"}).Code)
}
