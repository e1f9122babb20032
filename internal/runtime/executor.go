//go:build linux

// Package runtime drives the fork-equivalent, per-task-hardened
// execution of a task group: the top-level Executor re-execs the
// fabrigo binary into a namespaced child that assembles a container and
// runs each step, and each task inside that child is itself re-exec'd
// through a hardening shim before becoming the user's command.
//
// Go cannot safely fork() a multi-threaded process and resume arbitrary
// Go code in the child before exec — the runtime's goroutine scheduler,
// GC, and background threads are simply not fork-safe outside a
// dedicated, immediately-exec'ing fork+exec primitive. This package
// therefore never calls fork directly; namespace entry is realized by
// setting Cloneflags on an exec.Cmd that re-invokes this same binary,
// the idiomatic Go substitute for the original runtime's raw
// fork()+pre_exec closure.
package runtime

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/fabrigo/fabrigo/internal/cgroup"
	"github.com/fabrigo/fabrigo/internal/containerfs"
	"github.com/fabrigo/fabrigo/internal/ferrors"
	"github.com/fabrigo/fabrigo/internal/ids"
	"github.com/fabrigo/fabrigo/pkg/result"
	"github.com/fabrigo/fabrigo/pkg/task"
)

// ChildSubcommand and TaskSubcommand are the hidden re-exec subcommands
// cmd/fabrigod dispatches to RunChild/RunTaskShim straight from os.Args,
// before cobra parses argv.
const (
	ChildSubcommand = "__child"
	TaskSubcommand  = "__task"
)

// Executor drives the top-level execute(task_group) protocol from the
// long-lived service process. One Executor is shared across requests;
// its cgroupMgr carries the process-wide parent-hierarchy once-guard.
type Executor struct {
	cgroupMgr    *cgroup.Manager
	containerMgr *containerfs.Manager
	// selfExecutable overrides the re-exec target, set from tests.
	selfExecutable string
}

// NewExecutor returns a ready-to-use Executor.
func NewExecutor() *Executor {
	return &Executor{
		cgroupMgr:    cgroup.NewManager(),
		containerMgr: containerfs.NewManager(),
	}
}

func (e *Executor) executablePath() (string, error) {
	if e.selfExecutable != "" {
		return e.selfExecutable, nil
	}
	path, err := os.Executable()
	if err != nil {
		return "", ferrors.Wrap(ferrors.KindSpawn, "resolve fabrigo executable path", err)
	}
	return path, nil
}

// Execute runs one task group to completion and returns the resulting
// RuntimeResult: Success with per-step results, or ContainerSetupFailed
// if the container could not be assembled.
func (e *Executor) Execute(group task.TaskGroup, cgroupCfg task.CgroupConfig, containerCfg task.ContainerConfig, timeout time.Duration) (result.RuntimeResult, error) {
	if err := e.cgroupMgr.EnsureParentHierarchy(); err != nil {
		return result.RuntimeResult{}, err
	}
	if containerCfg.ID == "" {
		containerCfg = task.DefaultContainerConfig(ids.New(12))
	}
	if err := e.containerMgr.PrepareRoot(containerCfg); err != nil {
		return result.RuntimeResult{}, err
	}
	defer func() { _ = e.containerMgr.Teardown(containerCfg) }()

	reqPipe, err := ids.NewPipe()
	if err != nil {
		return result.RuntimeResult{}, err
	}
	resPipe, err := ids.NewPipe()
	if err != nil {
		ids.CloseQuiet(reqPipe.Read)
		ids.CloseQuiet(reqPipe.Write)
		return result.RuntimeResult{}, err
	}

	selfExe, err := e.executablePath()
	if err != nil {
		return result.RuntimeResult{}, err
	}

	cmd := exec.Command(selfExe, ChildSubcommand)
	cmd.Stderr = os.Stderr
	cmd.ExtraFiles = []*os.File{reqPipe.Read, resPipe.Write}
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Cloneflags: unix.CLONE_NEWUTS | unix.CLONE_NEWNET | unix.CLONE_NEWIPC | unix.CLONE_NEWNS,
	}

	if err := cmd.Start(); err != nil {
		ids.CloseQuiet(reqPipe.Read)
		ids.CloseQuiet(reqPipe.Write)
		ids.CloseQuiet(resPipe.Read)
		ids.CloseQuiet(resPipe.Write)
		return result.RuntimeResult{}, ferrors.Wrap(ferrors.KindSpawn, "start container child", err)
	}

	// The child inherited its own copies of these via ExtraFiles; the
	// parent's copies must close so EOF propagates correctly and fds
	// aren't leaked across the lifetime of this request.
	ids.CloseQuiet(reqPipe.Read)
	ids.CloseQuiet(resPipe.Write)

	req := childRequest{TaskGroup: group, CgroupConfig: cgroupCfg, ContainerConfig: containerCfg, TimeoutMs: timeout.Milliseconds()}
	payload, err := encodeChildRequest(req)
	if err != nil {
		ids.CloseQuiet(reqPipe.Write)
		ids.CloseQuiet(resPipe.Read)
		_ = cmd.Wait()
		return result.RuntimeResult{}, ferrors.Wrap(ferrors.KindMarshalTaskGroup, "encode child request", err)
	}
	if _, err := reqPipe.Write.Write(payload); err != nil {
		ids.CloseQuiet(reqPipe.Write)
		ids.CloseQuiet(resPipe.Read)
		_ = cmd.Wait()
		return result.RuntimeResult{}, ferrors.Wrap(ferrors.KindWriteFile, "write child request", err)
	}
	ids.CloseQuiet(reqPipe.Write)

	resultBytes, readErr := io.ReadAll(resPipe.Read)
	ids.CloseQuiet(resPipe.Read)

	waitErr := cmd.Wait()

	if readErr != nil {
		return result.RuntimeResult{}, ferrors.Wrap(ferrors.KindParseResult, "read child result", readErr)
	}
	if waitErr != nil {
		return result.RuntimeResult{}, ferrors.Wrap(ferrors.KindWaitPID, "wait for container child", waitErr)
	}

	var rr result.RuntimeResult
	if err := rr.UnmarshalJSON(bytes.TrimSpace(resultBytes)); err != nil {
		return result.RuntimeResult{}, ferrors.Wrap(ferrors.KindParseResult, "decode runtime result", err)
	}
	return rr, nil
}

func init() {
	// Guard against accidental drift between the fd numbers RunChild
	// expects and the ExtraFiles order Execute wires up above.
	if childRequestFD != 3 || childResultFD != 4 {
		panic(fmt.Sprintf("runtime: unexpected child fd numbering %d/%d", childRequestFD, childResultFD))
	}
}
