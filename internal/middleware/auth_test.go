package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"course_engine_backend/internal/config"
	"course_engine_backend/internal/model"
	"course_engine_backend/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "middleware-test-secret"

func router() *gin.Engine {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{JWT: config.JWTConfig{Secret: secret}}
	r := gin.New()
	auth := r.Group("/", AuthMiddleware(cfg))
	auth.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": util.GetUserFromContext(c).UserID})
	})
	auth.GET("/review", RoleMiddleware(model.Teacher), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func get(t *testing.T, r *gin.Engine, path string, role model.UserRole) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if role != "" {
		token, err := util.GenerateJWT(9, role, secret, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestAuthMiddleware(t *testing.T) {
	r := router()
	assert.Equal(t, http.StatusUnauthorized, get(t, r, "/me", ""))
	assert.Equal(t, http.StatusOK, get(t, r, "/me", model.Student))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRoleMiddleware(t *testing.T) {
	r := router()
	assert.Equal(t, http.StatusForbidden, get(t, r, "/review", model.Student))
	assert.Equal(t, http.StatusOK, get(t, r, "/review", model.Teacher))
	assert.Equal(t, http.StatusOK, get(t, r, "/review", model.Admin))
}
