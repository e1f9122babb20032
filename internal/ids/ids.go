// Package ids provides identifier generation and anonymous pipe helpers
// used to name container roots and cgroup leaves, and to wire stdio
// between a task's own process and its supervising executor.
package ids

import (
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/fabrigo/fabrigo/internal/ferrors"
)

// New returns a random identifier of exactly n hex characters, derived
// from a UUIDv4's entropy rather than a hand-rolled charset RNG. Panics
// are never produced; uuid.New() only fails its internal read on an
// exhausted entropy source, which the stdlib crypto/rand backing makes
// unreachable in practice.
func New(n int) string {
	if n <= 0 {
		return ""
	}
	var sb strings.Builder
	for sb.Len() < n {
		sb.WriteString(strings.ReplaceAll(uuid.NewString(), "-", ""))
	}
	return sb.String()[:n]
}

// Pipe is a pair of os.Files behaving as an anonymous pipe, mirroring
// the original's mk_pipe/close_fd helpers built on nix::unistd::pipe.
type Pipe struct {
	Read  *os.File
	Write *os.File
}

// NewPipe opens an anonymous pipe for passing a task group payload (or a
// runtime result) between an executor and its re-exec'd child.
func NewPipe() (Pipe, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return Pipe{}, ferrors.Wrap(ferrors.KindMkPipe, "create pipe", err)
	}
	return Pipe{Read: r, Write: w}, nil
}

// CloseQuiet closes f and swallows the error, mirroring call sites where
// a close failure on an already-used pipe end is not actionable. Kept as
// a named helper, rather than an inlined `_ = f.Close()`, so every
// intentional ignore is grep-able.
func CloseQuiet(f *os.File) {
	if f == nil {
		return
	}
	_ = f.Close()
}
