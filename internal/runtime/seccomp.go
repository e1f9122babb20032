//go:build linux

package runtime

// applySeccompFilter is reserved for the syscall denylist (namespace,
// mount, capability, module, and keyring syscalls) a future revision
// should install in the task's pre-exec hardening step. It is currently
// a documented no-op.
func applySeccompFilter() {
}
