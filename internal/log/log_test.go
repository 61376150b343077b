package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	return rec
}

func TestLoggerStampsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Format: "json", Output: &buf, Component: ComponentLedger})

	l.Info("posted", FieldEntryID, 7)
	rec := decodeLine(t, &buf)
	assert.Equal(t, "ledger", rec[FieldComponent])
	assert.Equal(t, float64(7), rec[FieldEntryID])

	buf.Reset()
	l.WithComponent(ComponentWorker).Warn("slow")
	rec = decodeLine(t, &buf)
	assert.Equal(t, "worker", rec[FieldComponent])
	assert.Equal(t, "WARN", rec["level"])
}

func TestLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelWarn, Format: "json", Output: &buf})
	l.Info("hidden")
	assert.Zero(t, buf.Len())
	l.Error("shown")
	assert.NotZero(t, buf.Len())
}

func TestLogFields(t *testing.T) {
	f := NewFields().
		WithLedgerChange(3, 9, "expense", -500, 1500).
		WithError(errors.New("boom")).
		WithError(nil).
		WithOperation(OpPost)
	assert.Equal(t, int64(-500), f[FieldDeltaCents])
	assert.Equal(t, "boom", f[FieldError])
	assert.Equal(t, OpPost, f[FieldOperation])
	assert.Len(t, f.ToSlice(), len(f)*2)

	ev := NewFields().WithLedgerEvent(11, 3).WithAccount(9)
	assert.Equal(t, int64(11), ev[FieldEventID])
	assert.Equal(t, int64(3), ev[FieldEntryID])
	assert.Equal(t, int64(9), ev[FieldAccountID])
}

func TestMiddlewareAndFromContext(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Format: "json", Output: &buf})

	var seen *Logger
	h := Middleware(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = FromContext(WithRequestID(r.Context(), "req-1"))
		seen.Info("inside")
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))

	require.NotNil(t, seen)
	rec := decodeLine(t, &buf)
	assert.Equal(t, "req-1", rec[FieldRequestID])

	fallback := FromContext(context.Background())
	assert.Equal(t, ComponentApp, fallback.Component())
}

func TestLogHTTPEndLevels(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), New(Config{Format: "json", Output: &buf}))
	r := httptest.NewRequest(http.MethodPost, "/api/tasks?x=1", nil)

	for status, level := range map[int]string{201: "INFO", 404: "WARN", 500: "ERROR"} {
		buf.Reset()
		LogHTTPEnd(ctx, r, status, 12, "10.0.0.1")
		rec := decodeLine(t, &buf)
		assert.Equal(t, level, rec["level"])
		assert.Equal(t, ComponentHTTP, rec[FieldComponent])
		assert.Equal(t, float64(status), rec[FieldStatusCode])
		assert.Equal(t, "x=1", rec[FieldQuery])
	}
}
