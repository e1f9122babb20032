// Package ferrors defines the error taxonomy shared by the container,
// cgroup, and runtime layers. Every failure that crosses a package
// boundary in this module is wrapped into an *Error carrying a Kind, so
// callers can branch on failure category without string matching.
package ferrors

import "fmt"

// Kind enumerates the categories of failure a sandboxed execution can
// produce. Each value corresponds to a single call site family in the
// container/cgroup/runtime packages, mirroring the granularity the
// original implementation used for its own error enum.
type Kind int

const (
	KindUnknown Kind = iota
	KindWriteFile
	KindReadFile
	KindMkPipe
	KindCloseFD
	KindWaitPID
	KindSpawn
	KindUnshare
	KindMount
	KindUnmount
	KindPivotRoot
	KindChdir
	KindCreateContainerRootDir
	KindCreateDir
	KindRemoveContainerRootDir
	KindRemoveDir
	KindParseResult
	KindCgroupControllers
	KindMkDevDevice
	KindExecuteTask
	KindGetStdout
	KindGetStderr
	KindGetStdin
	KindWriteStdin
	KindGetExitCode
	KindSetUserID
	KindSetGroupID
	KindSetHostname
	KindCgroupControllerEnable
	KindTaskTimeout
	KindDropCapabilities
	KindParseMemory
	KindMarshalTaskGroup
)

var kindNames = map[Kind]string{
	KindUnknown:                "unknown",
	KindWriteFile:              "write_file",
	KindReadFile:               "read_file",
	KindMkPipe:                 "mk_pipe",
	KindCloseFD:                "close_fd",
	KindWaitPID:                "wait_pid",
	KindSpawn:                  "spawn",
	KindUnshare:                "unshare",
	KindMount:                  "mount",
	KindUnmount:                "unmount",
	KindPivotRoot:              "pivot_root",
	KindChdir:                  "chdir",
	KindCreateContainerRootDir: "create_container_root_dir",
	KindCreateDir:              "create_dir",
	KindRemoveContainerRootDir: "remove_container_root_dir",
	KindRemoveDir:              "remove_dir",
	KindParseResult:            "parse_result",
	KindCgroupControllers:      "cgroup_controllers",
	KindMkDevDevice:            "mk_dev_device",
	KindExecuteTask:            "execute_task",
	KindGetStdout:              "get_stdout",
	KindGetStderr:              "get_stderr",
	KindGetStdin:               "get_stdin",
	KindWriteStdin:             "write_stdin",
	KindGetExitCode:            "get_exit_code",
	KindSetUserID:              "set_user_id",
	KindSetGroupID:             "set_group_id",
	KindSetHostname:            "set_hostname",
	KindCgroupControllerEnable: "cgroup_controller_enable",
	KindTaskTimeout:            "task_timeout",
	KindDropCapabilities:       "drop_capabilities",
	KindParseMemory:            "parse_memory",
	KindMarshalTaskGroup:       "marshal_task_group",
}

// String renders the Kind as the snake_case name that prefixes
// Error()'s message.
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return kindNames[KindUnknown]
}

// Error is the module's canonical error value: a Kind plus a detail
// message and, where one exists, the underlying cause.
type Error struct {
	Kind   Kind
	Detail string
	Cause  error
}

// New builds an *Error with no underlying cause.
func New(kind Kind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

// Wrap builds an *Error around an existing error, preserving it for
// errors.Unwrap/errors.Is/errors.As.
func Wrap(kind Kind, detail string, cause error) *Error {
	return &Error{Kind: kind, Detail: detail, Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same Kind, enabling
// errors.Is(err, ferrors.New(ferrors.KindMount, "")) style checks against
// a zero-value sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}
