//go:build linux

package runtime

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/syndtr/gocapability/capability"
	"golang.org/x/sys/unix"

	"github.com/fabrigo/fabrigo/internal/containerfs"
	"github.com/fabrigo/fabrigo/internal/ferrors"
)

// nobodyID is the conventional unprivileged uid/gid a task's command
// drops to just before exec.
const nobodyID = 65534

// RunTaskShim is the entry point for the re-exec'd __task subcommand.
// It performs the per-task hardening pipeline — mask /proc and /sys,
// drop to nobody, flush all capability sets, apply the (reserved)
// seccomp filter — then execve's the real task command in place. It
// never returns on success; on failure it returns an error for the
// caller (cmd/fabrigod) to report to stderr before exiting nonzero,
// since by construction this process has nothing left to communicate
// failure back through (the __child process that spawned it reads the
// shim's exit status via cmd.Wait(), not a payload).
func RunTaskShim(args []string) error {
	if len(args) < 1 {
		return ferrors.New(ferrors.KindExecuteTask, "task shim: missing command")
	}
	cmdName := args[0]
	cmdArgs := args[1:]

	if err := containerfs.MaskPaths(); err != nil {
		return err
	}

	if err := unix.Setgid(nobodyID); err != nil {
		return ferrors.Wrap(ferrors.KindSetGroupID, "setgid nobody", err)
	}
	if err := unix.Setuid(nobodyID); err != nil {
		return ferrors.Wrap(ferrors.KindSetUserID, "setuid nobody", err)
	}

	if err := dropCapabilities(); err != nil {
		return err
	}

	applySeccompFilter()

	path := cmdName
	if !strings.Contains(cmdName, "/") {
		resolved, err := exec.LookPath(cmdName)
		if err != nil {
			return ferrors.Wrap(ferrors.KindExecuteTask, "resolve "+cmdName, err)
		}
		path = resolved
	}

	argv := append([]string{cmdName}, cmdArgs...)
	if err := unix.Exec(path, argv, os.Environ()); err != nil {
		return ferrors.Wrap(ferrors.KindExecuteTask, "exec "+path, err)
	}
	return fmt.Errorf("task shim: unreachable after successful exec")
}

// dropCapabilities clears the effective, permitted, and inheritable
// capability sets, matching the invariant that no child ever executes
// the user command with a non-empty effective capability set.
func dropCapabilities() error {
	caps, err := capability.NewPid2(0)
	if err != nil {
		return ferrors.Wrap(ferrors.KindDropCapabilities, "load process capabilities", err)
	}
	if err := caps.Load(); err != nil {
		return ferrors.Wrap(ferrors.KindDropCapabilities, "load process capabilities", err)
	}
	caps.Clear(capability.CAPS)
	if err := caps.Apply(capability.CAPS); err != nil {
		return ferrors.Wrap(ferrors.KindDropCapabilities, "apply cleared capabilities", err)
	}
	return nil
}
