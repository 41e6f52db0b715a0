package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shellmux/shellmux/internal/domain/session"
)

// fakeService implements SessionService over a real registry with a fixed
// server address.
type fakeService struct {
	reg *session.Registry
}

func (f *fakeService) CreateSession(command string, args []string, workingDir string) (*session.Session, error) {
	return f.reg.Create(command, args, workingDir, 24, 80)
}

func (f *fakeService) SessionURL(id string) (string, error) {
	if _, err := f.reg.Get(id); err != nil {
		return "", err
	}
	return fmt.Sprintf("http://127.0.0.1:7777/terminal/%s", id), nil
}

func (f *fakeService) DestroySession(id string) {
	f.reg.Destroy(id)
}

func newTestRouter(maxSessions int) (*gin.Engine, *session.Registry) {
	gin.SetMode(gin.TestMode)

	reg := session.NewRegistry(maxSessions, nil)
	h := NewHandlers(reg, &fakeService{reg: reg}, nil)

	router := gin.New()
	router.GET("/health", h.Health)
	router.GET("/terminal/:id", h.Terminal)
	router.POST("/sessions", h.CreateSession)
	router.GET("/sessions", h.ListSessions)
	router.GET("/sessions/:id", h.GetSession)
	router.DELETE("/sessions/:id", h.DeleteSession)
	return router, reg
}

func do(router *gin.Engine, method, path string, body []byte) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	router, _ := newTestRouter(4)

	w := do(router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestCreateSessionReturnsURL(t *testing.T) {
	router, _ := newTestRouter(4)

	w := do(router, http.MethodPost, "/sessions", []byte(`{"command":"bash"}`))
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		Session session.Info `json:"session"`
		URL     string       `json:"url"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Session.ID)
	assert.Equal(t, fmt.Sprintf("http://127.0.0.1:7777/terminal/%s", resp.Session.ID), resp.URL)
	assert.False(t, resp.Session.Started)
}

func TestCreateSessionCapacity(t *testing.T) {
	router, _ := newTestRouter(1)

	w := do(router, http.MethodPost, "/sessions", []byte(`{}`))
	require.Equal(t, http.StatusCreated, w.Code)

	w = do(router, http.MethodPost, "/sessions", []byte(`{}`))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestListSessions(t *testing.T) {
	router, reg := newTestRouter(4)

	a, err := reg.Create("bash", nil, "", 24, 80)
	require.NoError(t, err)

	w := do(router, http.MethodGet, "/sessions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), a.ID)
	assert.Contains(t, w.Body.String(), `"count":1`)
}

func TestGetSession(t *testing.T) {
	router, reg := newTestRouter(4)

	s, err := reg.Create("bash", nil, "/tmp", 24, 80)
	require.NoError(t, err)

	w := do(router, http.MethodGet, "/sessions/"+s.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), s.ID)

	w = do(router, http.MethodGet, "/sessions/term_unknown", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteSessionIdempotent(t *testing.T) {
	router, reg := newTestRouter(4)

	s, err := reg.Create("bash", nil, "", 24, 80)
	require.NoError(t, err)

	w := do(router, http.MethodDelete, "/sessions/"+s.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	// Duplicate and unknown deletes still succeed.
	w = do(router, http.MethodDelete, "/sessions/"+s.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(router, http.MethodDelete, "/sessions/term_unknown", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	assert.Equal(t, 0, reg.Len())
}

func TestTerminalBootstrapPage(t *testing.T) {
	router, reg := newTestRouter(4)

	s, err := reg.Create("bash", nil, "", 24, 80)
	require.NoError(t, err)

	w := do(router, http.MethodGet, "/terminal/"+s.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), s.ID)
	assert.Contains(t, w.Body.String(), "/ws?session_id=")
}

func TestTerminalUnknownSession(t *testing.T) {
	router, _ := newTestRouter(4)

	w := do(router, http.MethodGet, "/terminal/term_unknown", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
