package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"TurnMatch/internal/auth"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(secret []byte) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", JwtAuthMiddleware(secret), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(ContextAddress))
	})
	return r
}

func TestJwtAuthMiddleware(t *testing.T) {
	secret := []byte("secret")
	r := newRouter(secret)

	token, err := auth.IssueToken(secret, "0xABC", time.Minute)
	require.NoError(t, err)

	// header
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0xabc", w.Body.String())

	// query (websocket)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me?token="+token, nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestJwtAuthMiddleware_Rejects(t *testing.T) {
	r := newRouter([]byte("secret"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	other, _ := auth.IssueToken([]byte("other"), "0xABC", time.Minute)
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+other)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	expired, _ := auth.IssueToken([]byte("secret"), "0xABC", -time.Minute)
	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+expired)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
