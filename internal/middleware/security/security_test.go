package security

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeadersMiddleware(t *testing.T) {
	h := NewHeadersMiddleware(DefaultHeadersConfig()).Middleware(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tasks", nil))
	assert.Equal(t, "default-src 'none'; frame-ancestors 'none'", rec.Header().Get("Content-Security-Policy"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Empty(t, rec.Header().Get("Strict-Transport-Security"))

	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req.TLS = &tls.ConnectionState{}
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "max-age=31536000; includeSubDomains", rec.Header().Get("Strict-Transport-Security"))
}

func TestExtractClientIP(t *testing.T) {
	d, err := NewDetector("203.0.113.0/24")
	require.NoError(t, err)

	tests := []struct {
		name    string
		remote  string
		headers map[string]string
		want    string
	}{
		{"direct public peer", "198.51.100.7:5555", map[string]string{"X-Forwarded-For": "1.1.1.1"}, "198.51.100.7"},
		{"trusted proxy forwards", "10.0.0.2:80", map[string]string{"X-Forwarded-For": "8.8.8.8, 10.0.0.2"}, "8.8.8.8"},
		{"extra proxy range", "203.0.113.9:80", map[string]string{"X-Real-IP": "9.9.9.9"}, "9.9.9.9"},
		{"invalid forwarded value", "127.0.0.1:80", map[string]string{"X-Forwarded-For": "nope"}, "127.0.0.1"},
		{"unparseable remote", "pipe", nil, "pipe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, d.ExtractClientIP(req))
		})
	}
}

func TestNewDetector_BadCIDR(t *testing.T) {
	_, err := NewDetector("not-a-cidr")
	assert.Error(t, err)
}

func TestIsSuspicious(t *testing.T) {
	d, err := NewDetector()
	require.NoError(t, err)

	assert.False(t, d.IsSuspicious(httptest.NewRequest(http.MethodGet, "/api/tasks?status=todo", nil)))
	assert.True(t, d.IsSuspicious(httptest.NewRequest(http.MethodGet, "/.env", nil)))
	assert.True(t, d.IsSuspicious(httptest.NewRequest(http.MethodGet, "/api/tasks?q=1%20union%20select", nil)))

	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req.Header.Set("User-Agent", "sqlmap/1.7")
	assert.True(t, d.IsSuspicious(req))
}

func TestDetectorMiddleware(t *testing.T) {
	d, err := NewDetector()
	require.NoError(t, err)
	h := d.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodTrace, "/", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/wp-admin", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	assert.Equal(t, DetectionMetrics{SuspiciousRequests: 1, BlockedRequests: 1}, d.GetMetrics())
}
