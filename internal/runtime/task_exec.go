//go:build linux

package runtime

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"syscall"
	"time"
	"unicode/utf8"

	"golang.org/x/sys/unix"

	"github.com/fabrigo/fabrigo/internal/cgroup"
	"github.com/fabrigo/fabrigo/internal/ferrors"
	"github.com/fabrigo/fabrigo/pkg/result"
	"github.com/fabrigo/fabrigo/pkg/task"
)

// defaultPath is injected into a task's environment when it does not
// already set PATH itself.
const defaultPath = "/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin"

// pollInterval is unused by the select-based wait below but documents
// the 100ms cadence the design this system follows specifies for its
// timeout polling loop; the slack bound it implies (<=200ms) still
// holds for the goroutine+timer wait used here, which resolves at most
// one scheduler tick after the timeout fires.
const pollInterval = 100 * time.Millisecond

// executeSingleTask runs exactly one task through the full hardened
// pipeline: cgroup creation, command construction with PATH injection
// and file materialization, a pre-exec hardening shim spawned in place
// of the task's own command, cgroup attachment, timed wait, stdio
// collection, and stats measurement. Every failure here is caught and
// converted into a Failed TaskResult; this function itself never
// returns an error.
func executeSingleTask(t task.Task, cgroupMgr *cgroup.Manager, containerCfg task.ContainerConfig, timeout time.Duration) result.TaskResult {
	start := time.Now()

	handle, err := cgroupMgr.CreateTask(task.DefaultCgroupConfig())
	if err != nil {
		return result.NewFailed(err.Error(), result.TaskResultStats{})
	}
	defer func() { _ = cgroupMgr.Destroy(handle) }()

	if err := materializeFiles(t.Files); err != nil {
		return result.NewFailed(err.Error(), result.TaskResultStats{})
	}

	selfExe, err := os.Executable()
	if err != nil {
		return result.NewFailed(ferrors.Wrap(ferrors.KindSpawn, "resolve fabrigo executable", err).Error(), result.TaskResultStats{})
	}

	workdir := t.WorkingDir
	if workdir == "" {
		workdir = containerCfg.Workdir
	}

	env := buildEnv(t.Env)

	args := append([]string{TaskSubcommand, t.Cmd}, t.Args...)
	cmd := exec.Command(selfExe, args...)
	cmd.Env = env
	cmd.Dir = workdir
	cmd.SysProcAttr = &syscall.SysProcAttr{Cloneflags: unix.CLONE_NEWNS}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	stdinPipe, err := cmd.StdinPipe()
	if err != nil {
		return result.NewFailed(ferrors.Wrap(ferrors.KindGetStdin, "open stdin pipe", err).Error(), result.TaskResultStats{})
	}

	if err := cmd.Start(); err != nil {
		return result.NewFailed(ferrors.Wrap(ferrors.KindSpawn, "spawn task "+t.Cmd, err).Error(), result.TaskResultStats{})
	}

	if err := cgroupMgr.AttachProcess(handle, cmd.Process.Pid); err != nil {
		// A task that could not be placed in its cgroup would run with no
		// resource limits: kill and reap it, then report the failure.
		_ = cmd.Process.Kill()
		_ = stdinPipe.Close()
		_ = cmd.Wait()
		return result.NewFailed(err.Error(), result.TaskResultStats{})
	}

	if t.Stdin != "" {
		_, _ = stdinPipe.Write([]byte(t.Stdin))
	}
	_ = stdinPipe.Close()

	exited, waitErr := waitWithTimeout(cmd, timeout)
	elapsed := time.Since(start)

	stats := cgroupMgr.Measure(handle)
	resultStats := result.TaskResultStats{
		MemoryPeakBytes: stats.MemoryPeakBytes,
		CPUUsagePercent: float64(stats.CPUUsageUsec),
		ExecutionTimeMs: uint64(elapsed.Milliseconds()),
		PidsPeak:        stats.PidsPeak,
	}

	if !exited {
		return result.NewFailed(ferrors.New(ferrors.KindTaskTimeout, "task exceeded timeout").Error(), resultStats)
	}

	exitCode := int32(-1)
	if cmd.ProcessState != nil {
		exitCode = int32(cmd.ProcessState.ExitCode())
	}
	if waitErr != nil && cmd.ProcessState == nil {
		return result.NewFailed(ferrors.Wrap(ferrors.KindExecuteTask, "wait for task "+t.Cmd, waitErr).Error(), resultStats)
	}

	if err := validateUTF8Output(t.Cmd, stdout.Bytes(), stderr.Bytes()); err != nil {
		return result.NewFailed(err.Error(), resultStats)
	}

	return result.NewCompleted(stdout.String(), stderr.String(), exitCode, resultStats)
}

// validateUTF8Output checks that a task's captured stdout/stderr are
// valid UTF-8 before they are handed back as strings, matching the
// decode-or-fail contract the task-execution protocol requires.
func validateUTF8Output(cmdName string, stdout, stderr []byte) error {
	if !utf8.Valid(stdout) {
		return ferrors.New(ferrors.KindGetStdout, "task "+cmdName+" wrote invalid UTF-8 to stdout")
	}
	if !utf8.Valid(stderr) {
		return ferrors.New(ferrors.KindGetStderr, "task "+cmdName+" wrote invalid UTF-8 to stderr")
	}
	return nil
}

// waitWithTimeout waits for cmd to exit, killing and reaping it if
// timeout elapses first. It returns exited=false on timeout.
func waitWithTimeout(cmd *exec.Cmd, timeout time.Duration) (exited bool, err error) {
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		return true, err
	case <-time.After(timeout):
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		<-done // reap to avoid a zombie
		return false, nil
	}
}

// buildEnv converts a task's env map into the KEY=VALUE slice exec.Cmd
// expects, injecting defaultPath when the task did not set PATH itself.
// Keys are sorted for deterministic ordering, which keeps test fixtures
// stable and makes no functional difference to the exec'd process.
func buildEnv(env map[string]string) []string {
	hasPath := false
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
		if k == "PATH" {
			hasPath = true
		}
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys)+1)
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	if !hasPath {
		out = append(out, "PATH="+defaultPath)
	}
	return out
}

// materializeFiles writes each task-supplied file to its absolute path,
// which resolves inside the already-pivoted container view.
func materializeFiles(files map[string]string) error {
	for path, contents := range files {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return ferrors.Wrap(ferrors.KindCreateDir, "create parent dir for "+path, err)
		}
		if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
			return ferrors.Wrap(ferrors.KindWriteFile, "materialize file "+path, err)
		}
	}
	return nil
}
