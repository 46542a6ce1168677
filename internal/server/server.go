// Package server is the thin HTTP front over the pipeline: request bodies map
// to the analyzer, errors map to status codes, nothing else.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"brand-video-analyzer/internal/ingest"
	"brand-video-analyzer/internal/logging"
	"brand-video-analyzer/internal/model"
	"brand-video-analyzer/internal/pipeline"
)

// BrandAnalyzer is what the HTTP layer needs from the pipeline.
type BrandAnalyzer interface {
	Analyze(ctx context.Context, req model.AnalysisRequest) (*model.Envelope, error)
}

type Server struct {
	analyzer BrandAnalyzer
	log      *logging.Logger
}

func New(analyzer BrandAnalyzer, log *logging.Logger) *Server {
	return &Server{analyzer: analyzer, log: log}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/health", s.handleHealth)
	r.Post("/analyze", s.handleAnalyze)
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req model.AnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body: "+err.Error()))
		return
	}

	env, err := s.analyzer.Analyze(r.Context(), req)
	if err != nil {
		s.log.Errorf("analyze: %v", err)
		switch {
		case errors.Is(err, pipeline.ErrInvalidInput):
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		case errors.Is(err, ingest.ErrPollTimeout):
			writeJSON(w, http.StatusGatewayTimeout, errorBody(err.Error()))
		default:
			writeJSON(w, http.StatusInternalServerError, errorBody(err.Error()))
		}
		return
	}
	writeJSON(w, http.StatusOK, env)
}

func errorBody(detail string) map[string]string {
	return map[string]string{"detail": detail}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
