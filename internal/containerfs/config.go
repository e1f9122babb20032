//go:build linux

package containerfs

import "github.com/fabrigo/fabrigo/pkg/task"

// Config is an alias for the wire-level container configuration,
// kept as its own name in this package so call sites read as
// containerfs.Config rather than reaching back into pkg/task.
type Config = task.ContainerConfig
