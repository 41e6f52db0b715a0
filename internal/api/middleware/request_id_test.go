package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRequestIDRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(RequestIDKey))
	})
	return r
}

func TestRequestIDGenerated(t *testing.T) {
	r := newRequestIDRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	r.ServeHTTP(w, req)

	rid := w.Header().Get(RequestIDHeader)
	require.NotEmpty(t, rid)
	_, err := uuid.Parse(rid)
	assert.NoError(t, err)
	assert.Equal(t, rid, w.Body.String(), "handler must see the same id")
}

func TestRequestIDHonorsClientHeader(t *testing.T) {
	r := newRequestIDRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "caller-supplied")
	r.ServeHTTP(w, req)

	assert.Equal(t, "caller-supplied", w.Header().Get(RequestIDHeader))
	assert.Equal(t, "caller-supplied", w.Body.String())
}
