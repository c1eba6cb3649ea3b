package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		entries = append(entries, entry)
	}
	return entries
}

func TestLoggerWritesJSONWithStoreKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, "info")

	logger.Info("server_start", map[string]any{"addr": ":8080"})
	logger.Debug("hidden", nil)

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "server_start", entries[0]["message"])
	assert.Equal(t, "info", entries[0]["level"])
	assert.Equal(t, ":8080", entries[0]["addr"])
	assert.NotEmpty(t, entries[0]["timestamp"])
}

func TestLoggerWithAddsFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, "debug").With(map[string]any{"request_id": "abc"})

	logger.Warn("slow", map[string]any{"ms": 900})

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "abc", entries[0]["request_id"])
	assert.Equal(t, "warn", entries[0]["level"])
}

func TestLoggerFromFallsBack(t *testing.T) {
	assert.Same(t, fallbackLogger, LoggerFrom(context.Background()))

	logger := NewLoggerTo(&bytes.Buffer{}, "info")
	assert.Same(t, logger, LoggerFrom(WithLogger(context.Background(), logger)))
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.9:5555"
	assert.Equal(t, "10.0.0.9", ClientIP(r))

	r.Header.Set("X-Real-IP", "172.16.0.1")
	assert.Equal(t, "172.16.0.1", ClientIP(r))

	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, "203.0.113.7", ClientIP(r))
}

func TestClientIPIgnoresSpoofedLeadingHops(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{header: "198.51.100.4", want: "198.51.100.4"},
		{header: "1.2.3.4, 198.51.100.4", want: "198.51.100.4"},
		{header: "9.9.9.9, 198.51.100.4, 10.0.0.1, 127.0.0.1", want: "198.51.100.4"},
		{header: "10.0.0.5, 192.168.1.1", want: "10.0.0.5"},
		{header: "garbage, 198.51.100.4", want: "198.51.100.4"},
		{header: " , ", want: "172.16.0.1"},
	}

	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("X-Real-IP", "172.16.0.1")
		r.Header.Set("X-Forwarded-For", tt.header)
		assert.Equal(t, tt.want, ClientIP(r), tt.header)
	}
}

func TestRequestLoggingMiddlewareKeepsResponseController(t *testing.T) {
	handler := RequestLoggingMiddleware(NewLoggerTo(&bytes.Buffer{}, "info"), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("chunk"))
		assert.NoError(t, http.NewResponseController(w).Flush())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stream", nil))

	assert.True(t, rec.Flushed)
	assert.Equal(t, "chunk", rec.Body.String())
}

func TestRecoverMiddlewareReturnsJSON500(t *testing.T) {
	var buf bytes.Buffer
	handler := RecoverMiddleware(NewLoggerTo(&buf, "info"), http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/explode", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":false`)
	assert.Contains(t, buf.String(), "panic_recovered")
}

func TestRequestLoggingMiddlewareInjectsLogger(t *testing.T) {
	var buf bytes.Buffer
	base := NewLoggerTo(&buf, "info")

	var injected *Logger
	handler := RequestLoggingMiddleware(base, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		injected = LoggerFrom(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tea", nil))

	require.NotNil(t, injected)
	assert.NotSame(t, fallbackLogger, injected)

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "http_request", entries[0]["message"])
	assert.Equal(t, float64(http.StatusTeapot), entries[0]["status"])
	assert.Equal(t, "warn", entries[0]["level"])
}
