package core

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"meterboard/internal/config"
)

// stubProbe is a configurable HealthProbe for tests.
type stubProbe struct {
	name  string
	err   error
	delay time.Duration
}

func (p *stubProbe) Name() string { return p.name }

func (p *stubProbe) Check(ctx context.Context) error {
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return p.err
}

func newHealthTestServer(t *testing.T, probes ...HealthProbe) *Server {
	t.Helper()
	srv, err := NewServer(&config.Config{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	srv.HealthProbes = probes
	return srv
}

func doHealth(t *testing.T, srv *Server) (*httptest.ResponseRecorder, healthResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.HandleHealth(rec, req)

	var body healthResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}
	return rec, body
}

func TestHandleHealth_NoProbes(t *testing.T) {
	srv := newHealthTestServer(t)

	rec, body := doHealth(t, srv)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	if body.Status != "healthy" {
		t.Errorf("expected healthy, got %s", body.Status)
	}
}

func TestHandleHealth_AllHealthy(t *testing.T) {
	srv := newHealthTestServer(t,
		&stubProbe{name: "database"},
		&stubProbe{name: "control-plane"},
	)

	rec, body := doHealth(t, srv)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	if body.Components["database"].Status != "healthy" {
		t.Errorf("expected database healthy, got %+v", body.Components["database"])
	}
	if body.Components["control-plane"].Status != "healthy" {
		t.Errorf("expected control-plane healthy, got %+v", body.Components["control-plane"])
	}
}

func TestHandleHealth_OneUnhealthy(t *testing.T) {
	srv := newHealthTestServer(t,
		&stubProbe{name: "database", err: errors.New("connection refused")},
		&stubProbe{name: "control-plane"},
	)

	rec, body := doHealth(t, srv)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", rec.Code)
	}
	if body.Status != "unhealthy" {
		t.Errorf("expected unhealthy, got %s", body.Status)
	}
	if body.Components["database"].Status != "unhealthy" {
		t.Errorf("expected database unhealthy, got %+v", body.Components["database"])
	}
	if body.Components["control-plane"].Status != "healthy" {
		t.Errorf("expected control-plane healthy, got %+v", body.Components["control-plane"])
	}
}

func TestHandleHealth_PanickingProbe(t *testing.T) {
	srv := newHealthTestServer(t, &panicProbe{})

	rec, body := doHealth(t, srv)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", rec.Code)
	}
	if body.Components["flaky"].Status != "unhealthy" {
		t.Errorf("expected panicking probe reported unhealthy, got %+v", body.Components["flaky"])
	}
}

type panicProbe struct{}

func (p *panicProbe) Name() string                  { return "flaky" }
func (p *panicProbe) Check(_ context.Context) error { panic("probe exploded") }

func TestHandleHealth_SlowProbeTimesOut(t *testing.T) {
	srv := newHealthTestServer(t,
		&stubProbe{name: "database"},
		&stubProbe{name: "slow", delay: 5 * time.Second},
	)

	start := time.Now()
	rec, body := doHealth(t, srv)
	elapsed := time.Since(start)

	if elapsed > 4*time.Second {
		t.Errorf("health check should honor the 2s timeout, took %v", elapsed)
	}
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", rec.Code)
	}
	if body.Components["slow"].Status != "unhealthy" {
		t.Errorf("expected slow probe unhealthy, got %+v", body.Components["slow"])
	}
}
