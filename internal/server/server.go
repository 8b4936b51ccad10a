// Package server exposes the aggregation pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/insky7/txcrimemap/internal/pipeline"
)

// Aggregator is the pipeline contract the server depends on.
type Aggregator interface {
	Handle(ctx context.Context, address string) (*pipeline.Response, error)
}

// Server routes HTTP requests to the aggregation pipeline and landing assets.
type Server struct {
	agg     Aggregator
	landing *Landing
	timeout time.Duration
}

// New creates a Server. A zero timeout disables the per-request deadline.
func New(agg Aggregator, landing *Landing, timeout time.Duration) *Server {
	return &Server{agg: agg, landing: landing, timeout: timeout}
}

// Router builds the chi router with the service middleware stack.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Accept-Encoding", "Authorization", "Content-Type", "Origin"},
	}))
	r.Use(middleware.Compress(5, "application/json", "text/html"))
	if s.timeout > 0 {
		r.Use(middleware.Timeout(s.timeout))
	}

	r.Get("/health", handleHealth)
	r.Get("/", s.landing.ServePage)
	r.Get("/logo.png", s.landing.ServeLogo)
	r.Post("/geocode", s.handleGeocode)

	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// handleGeocode accepts a form-encoded address and returns the aggregated
// risk areas. Pipeline not-found conditions map to 404; anything else is a
// 500 with detail logged server-side only.
func (s *Server) handleGeocode(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, `{"error":"invalid form body"}`, http.StatusBadRequest)
		return
	}

	address := r.PostFormValue("address")
	if address == "" {
		http.Error(w, `{"error":"address is required"}`, http.StatusBadRequest)
		return
	}

	resp, err := s.agg.Handle(r.Context(), address)
	if err != nil {
		if eris.Is(err, pipeline.ErrNotFound) {
			http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
			return
		}
		zap.L().Error("geocode request failed",
			zap.String("address", address),
			zap.Error(err),
		)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		zap.L().Error("encode response", zap.Error(err))
	}
}

// requestLogger logs one line per request with status and latency.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
