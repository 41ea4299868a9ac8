// Package server exposes the curriculum pipeline over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/p-n-ai/pai-curriculum/internal/auth"
	"github.com/p-n-ai/pai-curriculum/internal/pipeline"
)

const (
	maxBodyBytes = 1 << 20
	readyTimeout = 2 * time.Second
)

// HealthChecker is a dependency checked by the readiness endpoint.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Config holds dependencies for the HTTP server.
type Config struct {
	Orchestrator *pipeline.Orchestrator
	Auth         *auth.Authenticator
	Checks       map[string]HealthChecker // optional, keyed by dependency name
}

// Server routes HTTP requests to the orchestrator.
type Server struct {
	orch   *pipeline.Orchestrator
	auth   *auth.Authenticator
	checks map[string]HealthChecker
	mux    *http.ServeMux
}

// New creates a server and registers its routes.
func New(cfg Config) *Server {
	s := &Server{
		orch:   cfg.Orchestrator,
		auth:   cfg.Auth,
		checks: cfg.Checks,
		mux:    http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", handleHealthz)
	s.mux.HandleFunc("GET /readyz", s.handleReadyz)
	s.mux.Handle("GET /metrics", promhttp.Handler())

	s.mux.HandleFunc("POST /api/curriculum", s.handleGenerate)
	s.mux.HandleFunc("GET /api/curriculum/stream", s.handleGenerateStream)
	s.mux.HandleFunc("POST /api/curriculum/save", s.handleSave)
	s.mux.HandleFunc("GET /api/curricula/{id}", s.handleGetCurriculum)
	s.mux.HandleFunc("GET /api/curricula/{id}/export", s.handleExportCurriculum)

	s.mux.HandleFunc("GET /api/skills", s.handleDashboard)
	s.mux.HandleFunc("GET /api/skills/{id}", s.handleSkillDetail)
	s.mux.HandleFunc("POST /api/skills/{id}/steps/complete", s.handleCompleteStep)
	s.mux.HandleFunc("POST /api/skills/{id}/assignments", s.handleSubmitAssignment)

	s.mux.HandleFunc("POST /api/quiz/generate", s.handleQuizGenerate)
	s.mux.HandleFunc("POST /api/quiz/assess", s.handleQuizAssess)
}

// Handler returns the routed handler wrapped with request logging and
// metrics.
func (s *Server) Handler() http.Handler {
	return requestLogger(s.mux)
}

// userID resolves the caller. Requests without a valid token are
// anonymous; operations that need an identity reject the empty id.
func (s *Server) userID(r *http.Request) string {
	if s.auth == nil {
		return ""
	}
	id, err := s.auth.Identify(r)
	if err != nil {
		return ""
	}
	return id
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	failed := map[string]string{}
	for name, c := range s.checks {
		if err := c.HealthCheck(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "failed": failed})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
