package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func newEngine(quiet ...string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), Logger(quiet...), Recovery())
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/boom", func(c *gin.Context) { panic("boom") })
	return r
}

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	prev := log.Logger
	t.Cleanup(func() { log.Logger = prev })

	var buf bytes.Buffer
	log.Logger = zerolog.New(&buf)
	return &buf
}

func TestRequestIDPropagation(t *testing.T) {
	captureLogs(t)
	r := newEngine()

	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get(RequestIDHeader); got != "abc-123" {
		t.Errorf("expected caller id echoed, got %q", got)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	if len(w.Header().Get(RequestIDHeader)) != 36 {
		t.Errorf("expected generated uuid, got %q", w.Header().Get(RequestIDHeader))
	}
}

func TestLoggerSkipsQuietPaths(t *testing.T) {
	buf := captureLogs(t)
	r := newEngine("/health")

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	if buf.Len() != 0 {
		t.Fatalf("health check should not be logged, got %s", buf.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/ok?x=1", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	r.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if entry["request_id"] != "req-1" || entry["path"] != "/ok?x=1" || entry["level"] != "info" {
		t.Errorf("unexpected access log %v", entry)
	}
}

func TestRecoveryReturnsJSON(t *testing.T) {
	buf := captureLogs(t)
	r := newEngine()

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	req.Header.Set(RequestIDHeader, "req-9")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["request_id"] != "req-9" {
		t.Errorf("expected request id in body, got %v", body)
	}
	if !strings.Contains(buf.String(), `"panic":"boom"`) {
		t.Errorf("expected panic to be logged, got %s", buf.String())
	}
}
