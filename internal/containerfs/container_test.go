//go:build linux

package containerfs

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStandardDevNodesShape(t *testing.T) {
	names := map[string]bool{}
	for _, dn := range standardDevNodes {
		names[dn.name] = true
		assert.NotZero(t, dn.major)
	}
	for _, want := range []string{"null", "zero", "full", "random", "urandom"} {
		assert.True(t, names[want], "missing dev node %s", want)
	}
}

func requireNamespacePrivilege(t *testing.T) {
	t.Helper()
	if os.Geteuid() != 0 {
		t.Skip("skip: container setup requires CAP_SYS_ADMIN (run as root)")
	}
}

func TestPrepareRootAndTeardown(t *testing.T) {
	requireNamespacePrivilege(t)

	cfg := Config{ContainerRootDir: t.TempDir() + "/fabrigo-test-root"}
	m := NewManager()

	require.NoError(t, m.PrepareRoot(cfg))
	info, err := os.Stat(cfg.ContainerRootDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	require.NoError(t, m.Teardown(cfg))
	_, err = os.Stat(cfg.ContainerRootDir)
	assert.True(t, os.IsNotExist(err))
}
