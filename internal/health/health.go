// Package health is the health/status surface SPEC_FULL.md §4.14 adds:
// a minimal net/http mux exposing liveness and readiness, alongside
// /metrics, with no admin provisioning or auth UI (those remain out of
// scope per spec.md §1).
package health

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/epic1st/shadowfix/internal/metrics"
)

// Checker reports a named readiness dependency's status.
type Checker func(ctx context.Context) error

// Server builds the /healthz, /readyz, /metrics mux.
type Server struct {
	checks map[string]Checker
}

// New builds a health Server. checks maps a human-readable dependency
// name (e.g. "referenceCache", "eventStore") to a function that errors
// when that dependency is not ready.
func New(checks map[string]Checker) *Server {
	return &Server{checks: checks}
}

type readinessReport struct {
	Ready  bool              `json:"ready"`
	Checks map[string]string `json:"checks"`
}

// Mux returns the configured http.ServeMux.
func (s *Server) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleLiveness)
	mux.HandleFunc("/readyz", s.handleReadiness)
	mux.Handle("/metrics", metrics.Handler())
	return mux
}

// handleLiveness reports process-up only, never checking dependencies —
// a crashed or deadlocked dependency must not flip liveness, only
// readiness (spec.md §4.14's liveness/readiness split).
func (s *Server) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	report := readinessReport{Ready: true, Checks: make(map[string]string, len(s.checks))}
	for name, check := range s.checks {
		if err := check(r.Context()); err != nil {
			report.Ready = false
			report.Checks[name] = err.Error()
			continue
		}
		report.Checks[name] = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	if !report.Ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(report)
}
