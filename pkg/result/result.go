// Package result defines the wire-level description of execution
// outcomes: per-task results, the Single/Parallel result variant they
// compose into, and the top-level group and runtime results.
package result

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// TaskResultStats carries the resource usage figures measured for one
// task's cgroup plus its wall-clock execution time.
//
// CPUUsagePercent is, despite its name, populated directly from the
// cgroup's cpu.stat usage_usec field (CPU microseconds consumed), not a
// true percentage — the source this system is modeled on is itself
// inconsistent here (see the design notes on cpu_usage_percent). The
// field name is kept for wire compatibility with existing callers.
type TaskResultStats struct {
	MemoryPeakBytes  uint64  `json:"memory_peak_bytes"`
	CPUUsagePercent  float64 `json:"cpu_usage_percent"`
	ExecutionTimeMs  uint64  `json:"execution_time_ms"`
	PidsPeak         uint64  `json:"pids_peak"`
}

// TaskResult is a tagged variant: Completed (process ran to exit, set,
// or nonzero) or Failed (runtime error prevented a clean exit).
type TaskResult struct {
	// Completed fields.
	Completed bool
	Stdout    string
	Stderr    string
	ExitCode  int32

	// Failed fields.
	Error string

	Stats TaskResultStats
}

// NewCompleted builds a Completed TaskResult.
func NewCompleted(stdout, stderr string, exitCode int32, stats TaskResultStats) TaskResult {
	return TaskResult{Completed: true, Stdout: stdout, Stderr: stderr, ExitCode: exitCode, Stats: stats}
}

// NewFailed builds a Failed TaskResult.
func NewFailed(errMsg string, stats TaskResultStats) TaskResult {
	return TaskResult{Completed: false, Error: errMsg, Stats: stats}
}

type taskResultWire struct {
	Stdout   *string          `json:"stdout,omitempty"`
	Stderr   *string          `json:"stderr,omitempty"`
	ExitCode *int32           `json:"exit_code,omitempty"`
	Error    *string          `json:"error,omitempty"`
	Stats    TaskResultStats  `json:"stats"`
}

// MarshalJSON emits the Completed shape (stdout/stderr/exit_code/stats)
// or the Failed shape (error/stats); the distinguishing key on the wire
// is the presence of "error".
func (r TaskResult) MarshalJSON() ([]byte, error) {
	if r.Completed {
		stdout, stderr, code := r.Stdout, r.Stderr, r.ExitCode
		return json.Marshal(taskResultWire{
			Stdout:   &stdout,
			Stderr:   &stderr,
			ExitCode: &code,
			Stats:    r.Stats,
		})
	}
	errMsg := r.Error
	return json.Marshal(taskResultWire{Error: &errMsg, Stats: r.Stats})
}

// UnmarshalJSON dispatches on the presence of the "error" key.
func (r *TaskResult) UnmarshalJSON(data []byte) error {
	var wire taskResultWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("result: decode task result: %w", err)
	}
	if wire.Error != nil {
		r.Completed = false
		r.Error = *wire.Error
		r.Stats = wire.Stats
		r.Stdout, r.Stderr, r.ExitCode = "", "", 0
		return nil
	}
	r.Completed = true
	r.Stats = wire.Stats
	if wire.Stdout != nil {
		r.Stdout = *wire.Stdout
	}
	if wire.Stderr != nil {
		r.Stderr = *wire.Stderr
	}
	if wire.ExitCode != nil {
		r.ExitCode = *wire.ExitCode
	}
	r.Error = ""
	return nil
}

// ExecutionStepResult mirrors task.ExecutionStep's structural encoding:
// Single is a bare object, Parallel is a bare array.
type ExecutionStepResult struct {
	Single   *TaskResult
	Parallel []TaskResult
}

// NewSingleResult builds a Single-variant step result.
func NewSingleResult(r TaskResult) ExecutionStepResult {
	return ExecutionStepResult{Single: &r}
}

// NewParallelResult builds a Parallel-variant step result.
func NewParallelResult(rs []TaskResult) ExecutionStepResult {
	return ExecutionStepResult{Parallel: rs}
}

// IsParallel reports whether this step result is the Parallel variant.
func (s ExecutionStepResult) IsParallel() bool {
	return s.Parallel != nil || s.Single == nil
}

func (s ExecutionStepResult) MarshalJSON() ([]byte, error) {
	if s.Single != nil {
		return json.Marshal(s.Single)
	}
	if s.Parallel != nil {
		return json.Marshal(s.Parallel)
	}
	return json.Marshal([]TaskResult{})
}

func (s *ExecutionStepResult) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 {
		return fmt.Errorf("result: empty execution step result")
	}
	switch trimmed[0] {
	case '[':
		var results []TaskResult
		if err := json.Unmarshal(data, &results); err != nil {
			return fmt.Errorf("result: decode parallel step result: %w", err)
		}
		s.Single = nil
		s.Parallel = results
		return nil
	case '{':
		var r TaskResult
		if err := json.Unmarshal(data, &r); err != nil {
			return fmt.Errorf("result: decode single step result: %w", err)
		}
		s.Single = &r
		s.Parallel = nil
		return nil
	default:
		return fmt.Errorf("result: execution step result must be an object or array, got %q", trimmed[0])
	}
}

// TaskGroupResult is the ordered sequence of step results for one
// executed task group.
type TaskGroupResult []ExecutionStepResult

// RuntimeResult is the externally-tagged Success/ContainerSetupFailed
// variant returned by the runtime executor to its caller.
type RuntimeResult struct {
	Success             *TaskGroupResult `json:"Success,omitempty"`
	ContainerSetupError *string          `json:"-"`
}

type containerSetupFailedWire struct {
	Error string `json:"error"`
}

// NewSuccess builds a Success RuntimeResult.
func NewSuccess(r TaskGroupResult) RuntimeResult {
	return RuntimeResult{Success: &r}
}

// NewContainerSetupFailed builds a ContainerSetupFailed RuntimeResult.
func NewContainerSetupFailed(errMsg string) RuntimeResult {
	return RuntimeResult{ContainerSetupError: &errMsg}
}

// IsSuccess reports whether this is the Success variant.
func (r RuntimeResult) IsSuccess() bool {
	return r.Success != nil
}

func (r RuntimeResult) MarshalJSON() ([]byte, error) {
	if r.Success != nil {
		return json.Marshal(struct {
			Success TaskGroupResult `json:"Success"`
		}{Success: *r.Success})
	}
	errMsg := ""
	if r.ContainerSetupError != nil {
		errMsg = *r.ContainerSetupError
	}
	return json.Marshal(struct {
		ContainerSetupFailed containerSetupFailedWire `json:"ContainerSetupFailed"`
	}{ContainerSetupFailed: containerSetupFailedWire{Error: errMsg}})
}

func (r *RuntimeResult) UnmarshalJSON(data []byte) error {
	var probe struct {
		Success              *TaskGroupResult          `json:"Success"`
		ContainerSetupFailed *containerSetupFailedWire `json:"ContainerSetupFailed"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return fmt.Errorf("result: decode runtime result: %w", err)
	}
	switch {
	case probe.Success != nil:
		r.Success = probe.Success
		r.ContainerSetupError = nil
	case probe.ContainerSetupFailed != nil:
		r.Success = nil
		errMsg := probe.ContainerSetupFailed.Error
		r.ContainerSetupError = &errMsg
	default:
		return fmt.Errorf("result: runtime result has neither Success nor ContainerSetupFailed")
	}
	return nil
}
