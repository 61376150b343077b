package trace

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(m *Middleware, status int, header string) (*httptest.ResponseRecorder, string) {
	var seen string
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		w.WriteHeader(status)
	}))
	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	if header != "" {
		req.Header.Set(HeaderRequestID, header)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec, seen
}

func TestMiddleware_GeneratesUUID(t *testing.T) {
	rec, seen := serve(NewMiddleware(nil), http.StatusOK, "")
	_, err := uuid.Parse(seen)
	require.NoError(t, err)
	assert.Equal(t, seen, rec.Header().Get(HeaderRequestID))
}

func TestMiddleware_HonoursInboundID(t *testing.T) {
	rec, seen := serve(NewMiddleware(nil), http.StatusOK, "client-abc-123")
	assert.Equal(t, "client-abc-123", seen)
	assert.Equal(t, "client-abc-123", rec.Header().Get(HeaderRequestID))
}

func TestMiddleware_RejectsBadInboundID(t *testing.T) {
	for _, bad := range []string{"has space", strings.Repeat("x", 200), "tab\tid"} {
		_, seen := serve(NewMiddleware(nil), http.StatusOK, bad)
		assert.NotEqual(t, bad, seen)
		_, err := uuid.Parse(seen)
		assert.NoError(t, err)
	}
}

func TestMiddleware_Metrics(t *testing.T) {
	m := NewMiddleware(func(*http.Request) string { return "1.2.3.4" })
	serve(m, http.StatusOK, "")
	serve(m, http.StatusNotFound, "")
	serve(m, http.StatusConflict, "")
	serve(m, http.StatusInternalServerError, "")

	got := m.GetMetrics()
	assert.Equal(t, int64(4), got.TotalRequests)
	assert.Equal(t, int64(2), got.ClientErrors)
	assert.Equal(t, int64(1), got.ServerErrors)
	assert.GreaterOrEqual(t, got.AverageResponseTime, int64(0))
}

func TestGetRequestID_Missing(t *testing.T) {
	assert.Empty(t, GetRequestID(httptest.NewRequest(http.MethodGet, "/", nil).Context()))
}
