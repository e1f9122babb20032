// Package task defines the wire-level description of work submitted to
// the sandbox: individual Task invocations, the Single/Parallel step
// variants they compose into, and the per-request Cgroup/Container
// configuration overrides.
package task

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Task is an immutable description of one command invocation.
type Task struct {
	Cmd        string            `json:"cmd"`
	Args       []string          `json:"args,omitempty"`
	Env        map[string]string `json:"env,omitempty"`
	Stdin      string            `json:"stdin,omitempty"`
	Files      map[string]string `json:"files,omitempty"`
	WorkingDir string            `json:"working_dir,omitempty"`
}

// ExecutionStep is either a single Task or a slice of Tasks meant to run
// in parallel. The wire encoding is structural: a JSON object means
// Single, a JSON array means Parallel. At most one of Single/Parallel is
// populated; a step with neither is an empty Parallel batch.
// IsParallel reports which variant a step is.
type ExecutionStep struct {
	Single   *Task
	Parallel []Task
}

// NewSingle builds a Single-variant step.
func NewSingle(t Task) ExecutionStep {
	return ExecutionStep{Single: &t}
}

// NewParallel builds a Parallel-variant step.
func NewParallel(tasks []Task) ExecutionStep {
	return ExecutionStep{Parallel: tasks}
}

// IsParallel reports whether this step is the Parallel variant.
func (s ExecutionStep) IsParallel() bool {
	return s.Parallel != nil || s.Single == nil
}

// MarshalJSON encodes Single as a bare object and Parallel as a bare
// array, matching the original structural (untagged) wire shape.
func (s ExecutionStep) MarshalJSON() ([]byte, error) {
	if s.Single != nil {
		return json.Marshal(s.Single)
	}
	if s.Parallel != nil {
		return json.Marshal(s.Parallel)
	}
	// A step with neither populated encodes as an empty parallel batch,
	// the only variant a JSON array can represent with zero elements.
	return json.Marshal([]Task{})
}

// UnmarshalJSON peeks at the first non-whitespace byte to decide between
// the Single (object) and Parallel (array) variants before delegating.
func (s *ExecutionStep) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 {
		return fmt.Errorf("task: empty execution step")
	}
	switch trimmed[0] {
	case '[':
		var tasks []Task
		if err := json.Unmarshal(data, &tasks); err != nil {
			return fmt.Errorf("task: decode parallel step: %w", err)
		}
		s.Single = nil
		s.Parallel = tasks
		return nil
	case '{':
		var t Task
		if err := json.Unmarshal(data, &t); err != nil {
			return fmt.Errorf("task: decode single step: %w", err)
		}
		s.Single = &t
		s.Parallel = nil
		return nil
	default:
		return fmt.Errorf("task: execution step must be an object or array, got %q", trimmed[0])
	}
}

// TaskGroup is an ordered sequence of execution steps.
type TaskGroup []ExecutionStep

// Validate enforces the one service-boundary rule spec-owned by the
// task model itself: a task group must contain at least one step. Empty
// Parallel steps inside a non-empty group are valid.
func (g TaskGroup) Validate() error {
	if len(g) == 0 {
		return fmt.Errorf("task: task group must not be empty")
	}
	return nil
}

// CgroupConfig holds the cpu/memory/pids limits for a task cgroup;
// cgroup.Manager.CreateTask fills empty fields from DefaultCgroupConfig.
// The runtime creates every task cgroup with DefaultCgroupConfig; a
// per-request CgroupConfig is not applied.
type CgroupConfig struct {
	CPUMax    string `json:"cpu_max,omitempty"`
	MemoryMax string `json:"memory_max,omitempty"`
	PidsMax   uint64 `json:"pids_max,omitempty"`
}

// DefaultCgroupConfig returns the spec-mandated defaults.
func DefaultCgroupConfig() CgroupConfig {
	return CgroupConfig{
		CPUMax:    "50000 100000",
		MemoryMax: "128M",
		PidsMax:   64,
	}
}

// ContainerConfig describes how a request's container root is assembled.
type ContainerConfig struct {
	ID                string   `json:"id,omitempty"`
	ContainerRootDir  string   `json:"container_root_dir,omitempty"`
	Workdir           string   `json:"workdir,omitempty"`
	TmpdirSize        string   `json:"tmpdir_size,omitempty"`
	WorkdirSize       string   `json:"workdir_size,omitempty"`
	BindMountsReadOnly []string `json:"bind_mounts_ro,omitempty"`
	BindMountsReadWrite []string `json:"bind_mounts_rw,omitempty"`
	Hostname          string   `json:"hostname,omitempty"`
}

// scratchPrefix is the directory fabrigo scratch areas live under on the
// host, mirroring the original's /tmp/faber/<id> convention.
const scratchPrefix = "/tmp/fabrigo"

// DefaultContainerConfig returns the spec-mandated defaults, deriving
// ID and ContainerRootDir from the supplied random id generator.
func DefaultContainerConfig(id string) ContainerConfig {
	return ContainerConfig{
		ID:                  id,
		ContainerRootDir:    fmt.Sprintf("%s/%s", scratchPrefix, id),
		Workdir:             "/faber",
		TmpdirSize:          "128M",
		WorkdirSize:         "128M",
		BindMountsReadOnly:  []string{"/bin", "/lib", "/lib64", "/usr"},
		BindMountsReadWrite: []string{},
		Hostname:            "faber",
	}
}
