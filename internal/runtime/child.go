//go:build linux

package runtime

import (
	"io"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fabrigo/fabrigo/internal/cgroup"
	"github.com/fabrigo/fabrigo/internal/containerfs"
	"github.com/fabrigo/fabrigo/pkg/result"
	"github.com/fabrigo/fabrigo/pkg/task"
)

// RunChild is the entry point for the re-exec'd __child subcommand: it
// reads a childRequest from its request fd, assembles the container,
// runs every step of the task group, and writes the resulting
// RuntimeResult to its result fd. It always exits 0 — failure is
// communicated entirely through the RuntimeResult payload, never
// through the process exit code, so the parent never has to
// distinguish "task failed" from "runtime crashed" via waitpid status.
func RunChild() {
	reqFile := os.NewFile(uintptr(childRequestFD), "fabrigo-child-request")
	resFile := os.NewFile(uintptr(childResultFD), "fabrigo-child-result")

	data, err := io.ReadAll(reqFile)
	_ = reqFile.Close()
	if err != nil {
		writeContainerSetupFailed(resFile, "read request: "+err.Error())
		os.Exit(0)
	}

	req, err := decodeChildRequest(data)
	if err != nil {
		writeContainerSetupFailed(resFile, "decode request: "+err.Error())
		os.Exit(0)
	}

	containerMgr := containerfs.NewManager()
	if err := containerMgr.Setup(req.ContainerConfig); err != nil {
		writeContainerSetupFailed(resFile, err.Error())
		os.Exit(0)
	}

	cgroupMgr := cgroup.NewManager()
	timeout := req.timeout()

	stepResults := make(result.TaskGroupResult, len(req.TaskGroup))
	for i, step := range req.TaskGroup {
		if step.IsParallel() {
			stepResults[i] = result.NewParallelResult(runParallel(step.Parallel, cgroupMgr, req.ContainerConfig, timeout))
		} else {
			stepResults[i] = result.NewSingleResult(executeSingleTask(*step.Single, cgroupMgr, req.ContainerConfig, timeout))
		}
	}

	rr := result.NewSuccess(stepResults)
	writeResult(resFile, rr)
	os.Exit(0)
}

// runParallel spawns one goroutine per task, joins all of them, and
// preserves input order in the output slice regardless of completion
// order. A panicking task goroutine is recovered and reported as a
// Failed result rather than bringing down the whole child process.
func runParallel(tasks []task.Task, cgroupMgr *cgroup.Manager, containerCfg task.ContainerConfig, timeout time.Duration) []result.TaskResult {
	results := make([]result.TaskResult, len(tasks))
	var eg errgroup.Group
	for i, t := range tasks {
		i, t := i, t
		eg.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					results[i] = result.NewFailed("Thread panicked during task execution", result.TaskResultStats{})
				}
			}()
			results[i] = executeSingleTask(t, cgroupMgr, containerCfg, timeout)
			return nil
		})
	}
	_ = eg.Wait()
	return results
}

func writeContainerSetupFailed(f *os.File, msg string) {
	writeResult(f, result.NewContainerSetupFailed(msg))
}

func writeResult(f *os.File, rr result.RuntimeResult) {
	data, err := rr.MarshalJSON()
	if err != nil {
		slog.Error("fabrigo: failed to marshal runtime result", "error", err)
		data = []byte(`{"ContainerSetupFailed":{"error":"failed to marshal runtime result"}}`)
	}
	if _, err := f.Write(data); err != nil {
		slog.Error("fabrigo: failed to write runtime result", "error", err)
	}
	_ = f.Close()
}
