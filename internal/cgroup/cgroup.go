//go:build linux

// Package cgroup owns the shared parent cgroup v2 subtree and the
// per-task leaf cgroups created beneath it, matching the
// creation/attachment/measurement/teardown protocol used by the
// original sandbox runtime this module replaces.
package cgroup

import (
	"bufio"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/fabrigo/fabrigo/internal/ferrors"
	"github.com/fabrigo/fabrigo/internal/ids"
	"github.com/fabrigo/fabrigo/pkg/task"
)

// Root is the cgroup v2 mount point on the host.
const Root = "/sys/fs/cgroup"

// ParentDir is the shared parent hierarchy every task cgroup is created
// beneath.
const ParentDir = Root + "/faber"

const subtreeControllers = "+cpu +memory +pids"

// Manager ensures the parent hierarchy exists exactly once per process
// and creates/destroys per-task cgroups beneath it.
type Manager struct {
	once    sync.Once
	onceErr error
}

// NewManager returns a ready-to-use Manager. Manager is safe for
// concurrent use; EnsureParentHierarchy performs its write-once setup
// exactly once regardless of how many goroutines call it.
func NewManager() *Manager {
	return &Manager{}
}

// EnsureParentHierarchy enables the cpu/memory/pids controllers on the
// cgroup v2 root and creates/enables them on ParentDir. It is idempotent
// and safe to call once per request; only the first call does any work,
// later callers observe its result.
func (m *Manager) EnsureParentHierarchy() error {
	m.once.Do(func() {
		m.onceErr = m.createParentHierarchy()
	})
	return m.onceErr
}

func (m *Manager) createParentHierarchy() error {
	if err := enableControllers(filepath.Join(Root, "cgroup.subtree_control")); err != nil {
		return err
	}
	if err := os.MkdirAll(ParentDir, 0o755); err != nil {
		return ferrors.Wrap(ferrors.KindCreateDir, "create parent cgroup "+ParentDir, err)
	}
	if err := enableControllers(filepath.Join(ParentDir, "cgroup.subtree_control")); err != nil {
		return err
	}
	return nil
}

// enableControllers writes the standard controller set into a
// cgroup.subtree_control file, tolerating EBUSY (controllers already
// enabled by a prior process or an earlier call in this one).
func enableControllers(path string) error {
	err := os.WriteFile(path, []byte(subtreeControllers), 0o644)
	if err == nil {
		return nil
	}
	if os.IsPermission(err) || strings.Contains(err.Error(), "device or resource busy") || os.IsExist(err) {
		return nil
	}
	// EBUSY surfaces as a plain *PathError wrapping syscall.EBUSY; treat
	// it the same way the string check above does, generically.
	if pe, ok := asPathError(err); ok && strings.Contains(strings.ToLower(pe.Err.Error()), "busy") {
		return nil
	}
	return ferrors.Wrap(ferrors.KindCgroupControllerEnable, "enable controllers on "+path, err)
}

func asPathError(err error) (*os.PathError, bool) {
	pe, ok := err.(*os.PathError)
	return pe, ok
}

// Handle identifies a live per-task cgroup.
type Handle struct {
	Path string
}

// CreateTask creates a new leaf cgroup beneath ParentDir and writes its
// resource limits, returning a Handle for later attach/measure/destroy
// calls.
func (m *Manager) CreateTask(cfg task.CgroupConfig) (Handle, error) {
	name := "task-" + ids.New(16)
	dir := filepath.Join(ParentDir, name)
	if err := os.Mkdir(dir, 0o755); err != nil {
		return Handle{}, ferrors.Wrap(ferrors.KindCreateDir, "create task cgroup "+dir, err)
	}
	h := Handle{Path: dir}

	cpuMax := cfg.CPUMax
	if cpuMax == "" {
		cpuMax = task.DefaultCgroupConfig().CPUMax
	}
	if err := os.WriteFile(filepath.Join(dir, "cpu.max"), []byte(cpuMax), 0o644); err != nil {
		return h, ferrors.Wrap(ferrors.KindWriteFile, "write cpu.max", err)
	}

	memMax := cfg.MemoryMax
	if memMax == "" {
		memMax = task.DefaultCgroupConfig().MemoryMax
	}
	memMaxBytes, err := ParseMemoryString(memMax)
	if err != nil {
		return h, err
	}
	memMaxWire := "max"
	if memMaxBytes != ^uint64(0) {
		memMaxWire = strconv.FormatUint(memMaxBytes, 10)
	}
	if err := os.WriteFile(filepath.Join(dir, "memory.max"), []byte(memMaxWire), 0o644); err != nil {
		return h, ferrors.Wrap(ferrors.KindWriteFile, "write memory.max", err)
	}

	pidsMax := cfg.PidsMax
	if pidsMax == 0 {
		pidsMax = task.DefaultCgroupConfig().PidsMax
	}
	if err := os.WriteFile(filepath.Join(dir, "pids.max"), []byte(strconv.FormatUint(pidsMax, 10)), 0o644); err != nil {
		return h, ferrors.Wrap(ferrors.KindWriteFile, "write pids.max", err)
	}

	return h, nil
}

// AttachProcess moves pid into the task cgroup.
func (m *Manager) AttachProcess(h Handle, pid int) error {
	path := filepath.Join(h.Path, "cgroup.procs")
	if err := os.WriteFile(path, []byte(strconv.Itoa(pid)), 0o644); err != nil {
		return ferrors.Wrap(ferrors.KindWriteFile, "attach pid to "+path, err)
	}
	return nil
}

// Stats is the raw resource usage sampled from a task cgroup just before
// it is destroyed.
type Stats struct {
	MemoryPeakBytes uint64
	CPUUsageUsec    uint64
	PidsPeak        uint64
}

// Measure reads cpu.stat/memory.peak/pids.peak from the task cgroup.
// Any individual file that is missing or unparsable collapses to zero
// rather than failing the whole measurement — the spec treats partial
// telemetry as an expected, non-fatal outcome.
func (m *Manager) Measure(h Handle) Stats {
	var s Stats
	s.CPUUsageUsec = readCPUUsageUsec(filepath.Join(h.Path, "cpu.stat"))
	s.MemoryPeakBytes = readUintFile(filepath.Join(h.Path, "memory.peak"))
	if peak := readUintFile(filepath.Join(h.Path, "pids.peak")); peak > 0 {
		s.PidsPeak = peak
	} else {
		s.PidsPeak = readUintFile(filepath.Join(h.Path, "pids.current"))
	}
	return s
}

// Destroy removes the task cgroup directory. It fails if processes
// still reside in it; callers are expected to have waited for the task
// process to exit before calling Destroy.
func (m *Manager) Destroy(h Handle) error {
	if err := os.Remove(h.Path); err != nil {
		return ferrors.Wrap(ferrors.KindRemoveDir, "destroy task cgroup "+h.Path, err)
	}
	return nil
}

func readCPUUsageUsec(path string) uint64 {
	f, err := os.Open(path)
	if err != nil {
		return 0
	}
	defer func() { _ = f.Close() }()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, "usage_usec ") {
			fields := strings.Fields(line)
			if len(fields) >= 2 {
				v, err := strconv.ParseUint(fields[1], 10, 64)
				if err == nil {
					return v
				}
			}
		}
	}
	return 0
}

func readUintFile(path string) uint64 {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "max" {
		return 0
	}
	v, err := strconv.ParseUint(trimmed, 10, 64)
	if err != nil {
		return 0
	}
	return v
}
