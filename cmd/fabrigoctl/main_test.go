package main

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRootCmdDefaults(t *testing.T) {
	root := newRootCmd()

	server, err := root.Flags().GetString("server")
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:3000", server)

	timeout, err := root.Flags().GetInt("timeout")
	require.NoError(t, err)
	assert.Equal(t, 30, timeout)
}

func TestRunRejectsMissingFile(t *testing.T) {
	err := run(runOpts{server: "http://127.0.0.1:3000", file: "/nonexistent/path.json", timeoutSec: 1})
	assert.Error(t, err)
}

func TestRunRejectsMalformedTaskGroup(t *testing.T) {
	f := t.TempDir() + "/group.json"
	require.NoError(t, os.WriteFile(f, []byte(`not json`), 0o644))

	err := run(runOpts{server: "http://127.0.0.1:3000", file: f, timeoutSec: 1})
	assert.Error(t, err)
}

func TestRunRejectsEmptyTaskGroup(t *testing.T) {
	f := t.TempDir() + "/group.json"
	require.NoError(t, os.WriteFile(f, []byte(`[]`), 0o644))

	err := run(runOpts{server: "http://127.0.0.1:3000", file: f, timeoutSec: 1})
	assert.Error(t, err)
}
