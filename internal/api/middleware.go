//go:build linux

package api

import (
	"net/http"
	"time"
)

// accessLog logs method, path, status, and latency for every request
// through the server's logrus logger, in the style of the access logs
// the rest of this module's request-handling stack uses.
func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.Log.WithFields(map[string]interface{}{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": time.Since(start).String(),
		}).Info("request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// concurrencyLimit bounds the number of requests processed at once to
// MaxConcurrency, the server-layer global in-flight cap the spec's
// configuration contract calls for. Requests beyond the cap block until
// a slot frees, rather than being rejected outright.
func (s *Server) concurrencyLimit(next http.Handler) http.Handler {
	limit := s.MaxConcurrency
	if limit <= 0 {
		limit = 10
	}
	sem := make(chan struct{}, limit)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sem <- struct{}{}
		defer func() { <-sem }()
		next.ServeHTTP(w, r)
	})
}
