//go:build linux

package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabrigo/fabrigo/internal/execcache"
	"github.com/fabrigo/fabrigo/internal/runtime"
)

func newTestServer() *Server {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	return &Server{
		Executor:       runtime.NewExecutor(),
		Cache:          execcache.New(),
		Log:            log,
		MaxConcurrency: 4,
	}
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer()
	router := s.NewRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"healthy"`)
}

func TestExecuteRejectsEmptyGroup(t *testing.T) {
	s := newTestServer()
	router := s.NewRouter()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/execute", bytes.NewBufferString(`[]`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExecuteRejectsMalformedJSON(t *testing.T) {
	s := newTestServer()
	router := s.NewRouter()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/execute", bytes.NewBufferString(`not json`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
