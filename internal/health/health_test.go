package health

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
)

func TestHealthzAlwaysOK(t *testing.T) {
	s := New(map[string]Checker{
		"eventStore": func(context.Context) error { return errors.New("unreachable") },
	})
	req := httptest.NewRequest("GET", "/healthz", nil)
	rec := httptest.NewRecorder()
	s.Mux().ServeHTTP(rec, req)
	if rec.Code != 200 {
		t.Fatalf("expected liveness to report 200 regardless of dependency state, got %d", rec.Code)
	}
}

func TestReadyzReflectsFailingCheck(t *testing.T) {
	s := New(map[string]Checker{
		"referenceCache": func(context.Context) error { return nil },
		"eventStore":     func(context.Context) error { return errors.New("unreachable") },
	})
	req := httptest.NewRequest("GET", "/readyz", nil)
	rec := httptest.NewRecorder()
	s.Mux().ServeHTTP(rec, req)
	if rec.Code != 503 {
		t.Fatalf("expected 503 when a dependency check fails, got %d", rec.Code)
	}
}

func TestReadyzOKWhenAllChecksPass(t *testing.T) {
	s := New(map[string]Checker{
		"referenceCache": func(context.Context) error { return nil },
	})
	req := httptest.NewRequest("GET", "/readyz", nil)
	rec := httptest.NewRecorder()
	s.Mux().ServeHTTP(rec, req)
	if rec.Code != 200 {
		t.Fatalf("expected 200 when all checks pass, got %d", rec.Code)
	}
}

func TestMetricsEndpointServed(t *testing.T) {
	s := New(nil)
	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	s.Mux().ServeHTTP(rec, req)
	if rec.Code != 200 {
		t.Fatalf("expected /metrics to be served on the health mux, got %d", rec.Code)
	}
}
