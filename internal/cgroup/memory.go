//go:build linux

package cgroup

import (
	"strconv"
	"strings"

	"github.com/fabrigo/fabrigo/internal/ferrors"
)

// ParseMemoryString resolves a memory.max-style value into a byte count:
// "max" maps to the unsigned 64-bit maximum, a bare integer is taken as
// bytes, and a trailing K/M/G/T (case-insensitive) multiplies by the
// corresponding binary unit.
func ParseMemoryString(s string) (uint64, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0, ferrors.New(ferrors.KindParseMemory, "empty memory string")
	}
	if strings.EqualFold(trimmed, "max") {
		return ^uint64(0), nil
	}
	if v, err := strconv.ParseUint(trimmed, 10, 64); err == nil {
		return v, nil
	}

	unit := trimmed[len(trimmed)-1]
	numPart := trimmed[:len(trimmed)-1]
	n, err := strconv.ParseUint(numPart, 10, 64)
	if err != nil {
		return 0, ferrors.Wrap(ferrors.KindParseMemory, "unrecognized memory string "+strconv.Quote(s), err)
	}

	var multiplier uint64
	switch unit {
	case 'k', 'K':
		multiplier = 1 << 10
	case 'm', 'M':
		multiplier = 1 << 20
	case 'g', 'G':
		multiplier = 1 << 30
	case 't', 'T':
		multiplier = 1 << 40
	default:
		return 0, ferrors.New(ferrors.KindParseMemory, "unrecognized memory suffix in "+strconv.Quote(s))
	}
	return n * multiplier, nil
}
