package runtime

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/loqalabs/loqa-voice/internal/config"
)

func newTestRuntime() *Runtime {
	return New(config.Default(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestHealthzAlwaysOK(t *testing.T) {
	rt := newTestRuntime()
	rec := httptest.NewRecorder()
	rt.handleHealth(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("unexpected health response: %d %q", rec.Code, rec.Body.String())
	}
}

func TestReadyzBeforeStart(t *testing.T) {
	rt := newTestRuntime()
	rec := httptest.NewRecorder()
	rt.handleReady(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 before start, got %d", rec.Code)
	}
}
