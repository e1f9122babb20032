//go:build linux

package runtime

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabrigo/fabrigo/pkg/task"
)

func requireSandboxPrivilege(t *testing.T) {
	t.Helper()
	if os.Geteuid() != 0 {
		t.Skip("skip: full sandbox execution requires root (namespaces, cgroups, pivot_root)")
	}
}

// TestExecutorEchoTask exercises the full fork-equivalent protocol end
// to end: it requires the compiled fabrigo binary to re-exec itself as
// __child/__task, so it only runs under the fabrigod binary itself, not
// under `go test`. It is skipped unless FABRIGO_TEST_SELF_EXE points at
// a built binary wired to dispatch __child/__task to this package.
func TestExecutorEchoTask(t *testing.T) {
	requireSandboxPrivilege(t)

	selfExe := os.Getenv("FABRIGO_TEST_SELF_EXE")
	if selfExe == "" {
		t.Skip("skip: set FABRIGO_TEST_SELF_EXE to a fabrigod binary to run end-to-end")
	}

	e := NewExecutor()
	e.selfExecutable = selfExe

	group := task.TaskGroup{task.NewSingle(task.Task{Cmd: "/bin/echo", Args: []string{"hi"}})}
	rr, err := e.Execute(group, task.DefaultCgroupConfig(), task.ContainerConfig{}, 5*time.Second)
	require.NoError(t, err)
	require.True(t, rr.IsSuccess())
	require.Len(t, *rr.Success, 1)

	step := (*rr.Success)[0]
	require.False(t, step.IsParallel())
	assert.True(t, step.Single.Completed)
	assert.Equal(t, "hi\n", step.Single.Stdout)
}
