//go:build linux

// Package api wires the HTTP surface: request routing, access logging,
// and the in-flight concurrency cap, dispatching /execute requests to
// the cache-then-runtime pipeline.
package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/fabrigo/fabrigo/internal/execcache"
	"github.com/fabrigo/fabrigo/internal/runtime"
)

// Server holds the dependencies the HTTP handlers need.
type Server struct {
	Executor       *runtime.Executor
	Cache          *execcache.Cache
	Log            *logrus.Logger
	MaxConcurrency int
}

// NewRouter builds the mux.Router exposing /api/v1/health and
// /api/v1/execute, wrapped with access logging and a concurrency-cap
// middleware.
func (s *Server) NewRouter() http.Handler {
	if s.Log == nil {
		s.Log = logrus.StandardLogger()
	}

	r := mux.NewRouter()
	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	api.HandleFunc("/execute", s.handleExecute).Methods(http.MethodPost)

	var handler http.Handler = r
	handler = s.concurrencyLimit(handler)
	handler = s.accessLog(handler)
	return handler
}
