//go:build linux

package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/fabrigo/fabrigo/internal/execcache"
	"github.com/fabrigo/fabrigo/pkg/task"
)

const defaultTaskTimeout = 10 * time.Second

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "healthy"})
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var group task.TaskGroup
	if err := json.NewDecoder(r.Body).Decode(&group); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid task group: " + err.Error()})
		return
	}
	if err := group.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	fingerprint, err := execcache.Fingerprint(group)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to fingerprint task group"})
		return
	}

	if cached, ok := s.Cache.TryGet(fingerprint); ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	rr, err := s.Executor.Execute(group, task.DefaultCgroupConfig(), task.ContainerConfig{}, defaultTaskTimeout)
	if err != nil {
		s.Log.WithError(err).Error("execute task group")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	if !rr.IsSuccess() {
		errMsg := "container setup failed"
		if rr.ContainerSetupError != nil {
			errMsg = *rr.ContainerSetupError
		}
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: errMsg})
		return
	}

	s.Cache.Put(fingerprint, *rr.Success)
	writeJSON(w, http.StatusOK, *rr.Success)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
