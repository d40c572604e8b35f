// Package server exposes the retrieval subsystem over HTTP. It is a thin
// layer: request decoding, routing and response encoding only; all
// behavior lives in the indexer and search packages.
package server

import (
	"net/http"

	"github.com/chansereyvath/lessonsearch/gateway"
	"github.com/chansereyvath/lessonsearch/indexer"
	"github.com/chansereyvath/lessonsearch/monitor"
	"github.com/chansereyvath/lessonsearch/search"
)

// Config configures a new Server instance.
type Config struct {
	Indexer *indexer.Indexer
	Engine  *search.Engine
	Gateway *gateway.Gateway
	Metrics *monitor.Collector
}

// Server is the HTTP front of the lesson retrieval subsystem.
type Server struct {
	indexer *indexer.Indexer
	engine  *search.Engine
	gw      *gateway.Gateway
	metrics *monitor.Collector
}

// New creates a new Server with the given configuration.
func New(cfg Config) *Server {
	return &Server{
		indexer: cfg.Indexer,
		engine:  cfg.Engine,
		gw:      cfg.Gateway,
		metrics: cfg.Metrics,
	}
}

// Handler returns an http.Handler for the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("POST /documents/{id}/index", s.handleIndex)
	mux.HandleFunc("GET /documents/{id}/status", s.handleStatus)
	mux.HandleFunc("DELETE /documents/{id}", s.handleDelete)
	mux.HandleFunc("POST /documents/{id}/ask", s.handleAsk)
	mux.HandleFunc("POST /documents/{id}/vector", s.handleVector)

	mux.HandleFunc("GET /search", s.handleSearch)

	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
