//go:build linux

// Package containerfs assembles and tears down the filesystem and
// mount-namespace view a sandboxed task runs inside: a read-only system
// tree bind-mounted from the host, a private /proc, /sys and cgroup2
// mount, a handful of device nodes, and writable tmp/work directories,
// entered via pivot_root.
//
// Namespace entry itself (UTS|NET|IPC|MOUNT) is not performed by this
// package: it happens at process-creation time via the clone flags the
// runtime package sets on the re-exec'd child (see internal/runtime),
// which is the only safe way to enter new namespaces from a
// multi-threaded Go process. Setup assumes it is already running inside
// those namespaces and only performs the mount/pivot_root sequence.
package containerfs

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/fabrigo/fabrigo/internal/ferrors"
)

// devNode describes one character device created under the container's
// /dev.
type devNode struct {
	name       string
	major      uint32
	minor      uint32
}

var standardDevNodes = []devNode{
	{"null", 1, 3},
	{"zero", 1, 5},
	{"full", 1, 7},
	{"random", 1, 8},
	{"urandom", 1, 9},
}

// Manager owns the container construction and teardown protocol for one
// request's container root.
type Manager struct{}

// NewManager returns a ready-to-use Manager. Manager holds no state: its
// methods operate purely on the Config passed to them.
func NewManager() *Manager {
	return &Manager{}
}

// PrepareRoot creates the container's scratch directory on the host.
// It runs before the task's namespaces are entered (the directory must
// exist as a bind-mount source/target before any unshare happens).
func (m *Manager) PrepareRoot(cfg Config) error {
	if err := os.MkdirAll(cfg.ContainerRootDir, 0o755); err != nil {
		return ferrors.Wrap(ferrors.KindCreateContainerRootDir, "mkdir "+cfg.ContainerRootDir, err)
	}
	return nil
}

// Setup performs the ordered mount/pivot_root sequence that turns the
// prepared root directory into the task's filesystem view. It must run
// inside the process that will exec the task, after that process has
// already entered new UTS/NET/IPC/MOUNT namespaces via clone flags.
func (m *Manager) Setup(cfg Config) error {
	root := cfg.ContainerRootDir

	if err := unix.Mount("", "/", "", unix.MS_REC|unix.MS_PRIVATE, ""); err != nil {
		return ferrors.Wrap(ferrors.KindMount, "remount / private", err)
	}

	if err := unix.Mount(root, root, "", unix.MS_BIND|unix.MS_REC, ""); err != nil {
		return ferrors.Wrap(ferrors.KindMount, "bind mount root onto itself", err)
	}

	for _, src := range cfg.BindMountsReadOnly {
		if _, err := os.Stat(src); err != nil {
			// Non-existent sources are skipped, not fatal: the spec's
			// default path list includes entries that may not exist on
			// every host (e.g. /lib64 on non-multilib systems).
			continue
		}
		target := filepath.Join(root, src)
		if err := os.MkdirAll(target, 0o755); err != nil {
			return ferrors.Wrap(ferrors.KindCreateDir, "create bind target "+target, err)
		}
		if err := unix.Mount(src, target, "", unix.MS_BIND, ""); err != nil {
			return ferrors.Wrap(ferrors.KindMount, "bind mount "+src, err)
		}
		if err := unix.Mount("", target, "", unix.MS_BIND|unix.MS_REMOUNT|unix.MS_RDONLY, ""); err != nil {
			return ferrors.Wrap(ferrors.KindMount, "remount ro "+target, err)
		}
	}

	for _, src := range cfg.BindMountsReadWrite {
		if src == "" {
			continue
		}
		if _, err := os.Stat(src); err != nil {
			continue
		}
		target := filepath.Join(root, src)
		if err := os.MkdirAll(target, 0o755); err != nil {
			return ferrors.Wrap(ferrors.KindCreateDir, "create bind target "+target, err)
		}
		if err := unix.Mount(src, target, "", unix.MS_BIND, ""); err != nil {
			return ferrors.Wrap(ferrors.KindMount, "bind mount "+src, err)
		}
	}

	if err := pivotRoot(root); err != nil {
		return err
	}

	if err := createDevNodes(); err != nil {
		return err
	}

	if err := mountKernelFS("/proc", "proc", unix.MS_NODEV|unix.MS_NOSUID|unix.MS_NOEXEC); err != nil {
		return err
	}
	if err := mountKernelFS("/sys", "sysfs", unix.MS_NODEV|unix.MS_NOSUID|unix.MS_NOEXEC); err != nil {
		return err
	}
	if err := os.MkdirAll("/sys/fs/cgroup", 0o755); err != nil {
		return ferrors.Wrap(ferrors.KindCreateDir, "create /sys/fs/cgroup", err)
	}
	if err := unix.Mount("cgroup2", "/sys/fs/cgroup", "cgroup2", unix.MS_RELATIME|unix.MS_NODEV|unix.MS_NOSUID|unix.MS_NOEXEC, ""); err != nil {
		return ferrors.Wrap(ferrors.KindMount, "mount cgroup2", err)
	}

	tmpdirSize := cfg.TmpdirSize
	if tmpdirSize == "" {
		tmpdirSize = "128M"
	}
	if err := os.MkdirAll("/tmp", 0o1777); err != nil {
		return ferrors.Wrap(ferrors.KindCreateDir, "create /tmp", err)
	}
	if err := unix.Mount("tmpfs", "/tmp", "tmpfs", 0, fmt.Sprintf("size=%s,mode=1777", tmpdirSize)); err != nil {
		return ferrors.Wrap(ferrors.KindMount, "mount tmpfs /tmp", err)
	}

	hostname := cfg.Hostname
	if hostname == "" {
		hostname = "faber"
	}
	if err := unix.Sethostname([]byte(hostname)); err != nil {
		return ferrors.Wrap(ferrors.KindSetHostname, "sethostname "+hostname, err)
	}

	workdir := cfg.Workdir
	if workdir == "" {
		workdir = "/faber"
	}
	workdirSize := cfg.WorkdirSize
	if workdirSize == "" {
		workdirSize = "128M"
	}
	if err := os.MkdirAll(workdir, 0o777); err != nil {
		return ferrors.Wrap(ferrors.KindCreateDir, "create workdir "+workdir, err)
	}
	if err := unix.Mount("tmpfs", workdir, "tmpfs", 0, fmt.Sprintf("size=%s,mode=0777", workdirSize)); err != nil {
		return ferrors.Wrap(ferrors.KindMount, "mount tmpfs workdir", err)
	}
	if err := unix.Chdir(workdir); err != nil {
		return ferrors.Wrap(ferrors.KindChdir, "chdir "+workdir, err)
	}

	return nil
}

func pivotRoot(root string) error {
	oldroot := filepath.Join(root, "oldroot")
	if err := os.MkdirAll(oldroot, 0o700); err != nil {
		return ferrors.Wrap(ferrors.KindCreateDir, "create oldroot", err)
	}
	if err := unix.PivotRoot(root, oldroot); err != nil {
		return ferrors.Wrap(ferrors.KindPivotRoot, "pivot_root", err)
	}
	if err := unix.Chdir("/"); err != nil {
		return ferrors.Wrap(ferrors.KindChdir, "chdir / after pivot_root", err)
	}
	if err := unix.Unmount("/oldroot", unix.MNT_DETACH); err != nil {
		return ferrors.Wrap(ferrors.KindUnmount, "detach /oldroot", err)
	}
	if err := os.Remove("/oldroot"); err != nil {
		return ferrors.Wrap(ferrors.KindRemoveDir, "remove /oldroot", err)
	}
	return nil
}

func createDevNodes() error {
	if err := os.MkdirAll("/dev", 0o755); err != nil {
		return ferrors.Wrap(ferrors.KindCreateDir, "create /dev", err)
	}
	for _, dn := range standardDevNodes {
		path := filepath.Join("/dev", dn.name)
		dev := int(unix.Mkdev(dn.major, dn.minor))
		if err := unix.Mknod(path, unix.S_IFCHR|0o666, dev); err != nil {
			return ferrors.Wrap(ferrors.KindMkDevDevice, "mknod "+path, err)
		}
	}
	return nil
}

func mountKernelFS(target, fstype string, flags uintptr) error {
	if err := os.MkdirAll(target, 0o755); err != nil {
		return ferrors.Wrap(ferrors.KindCreateDir, "create "+target, err)
	}
	if err := unix.Mount(fstype, target, fstype, flags, ""); err != nil {
		return ferrors.Wrap(ferrors.KindMount, "mount "+target, err)
	}
	return nil
}

// Teardown best-effort detaches and removes the container root directory
// on the host side. Cleanup failures are never fatal to the result
// already computed for the request.
func (m *Manager) Teardown(cfg Config) error {
	_ = unix.Unmount(cfg.ContainerRootDir, unix.MNT_DETACH)
	if err := os.RemoveAll(cfg.ContainerRootDir); err != nil {
		return ferrors.Wrap(ferrors.KindRemoveContainerRootDir, "remove "+cfg.ContainerRootDir, err)
	}
	return nil
}

// MaskPaths detaches /sys and /proc and remounts both as empty tmpfs,
// hiding host-visible kernel and process surfaces from the task. It is
// applied per-task, just before exec, inside the task's own private
// mount namespace.
func MaskPaths() error {
	for _, path := range []string{"/sys", "/proc"} {
		_ = unix.Unmount(path, unix.MNT_DETACH)
		if err := unix.Mount("tmpfs", path, "tmpfs", unix.MS_NODEV|unix.MS_NOSUID|unix.MS_NOEXEC, "size=0"); err != nil {
			return ferrors.Wrap(ferrors.KindMount, "mask "+path, err)
		}
	}
	return nil
}
