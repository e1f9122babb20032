//go:build linux

package cgroup

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Version identifies which cgroup hierarchy layout the host exposes.
type Version int

const (
	Unsupported Version = iota
	V1
	V2
	Hybrid
)

func (v Version) String() string {
	switch v {
	case V1:
		return "cgroup v1"
	case V2:
		return "cgroup v2"
	case Hybrid:
		return "cgroup hybrid"
	default:
		return "unsupported"
	}
}

// Detect reports the cgroup layout mounted on this host by scanning
// /proc/self/mountinfo for cgroup/cgroup2 filesystem entries. It is used
// only for the startup diagnostic log line: the manager in this package
// always targets cgroup v2, and EnsureParentHierarchy does not consult
// the detected layout.
func Detect() (Version, string, error) {
	f, err := os.Open("/proc/self/mountinfo")
	if err != nil {
		return Unsupported, "", fmt.Errorf("open mountinfo: %w", err)
	}
	defer func() { _ = f.Close() }()

	var (
		hasV1, hasV2 bool
		v1Pts, v2Pts []string
		sc           = bufio.NewScanner(f)
	)
	for sc.Scan() {
		line := sc.Text()
		// mountinfo line shape: <fields> - <fstype> <source> <superopts>
		const sep = " - "
		i := strings.LastIndex(line, sep)
		if i < 0 {
			continue
		}
		tail := strings.Fields(line[i+len(sep):])
		if len(tail) < 1 {
			continue
		}
		fstype := tail[0]

		pre := strings.Fields(line[:i])
		if len(pre) < 5 {
			continue
		}
		mountPoint := pre[4]

		switch fstype {
		case "cgroup2":
			hasV2 = true
			v2Pts = append(v2Pts, mountPoint)
		case "cgroup":
			hasV1 = true
			v1Pts = append(v1Pts, mountPoint)
		}
	}
	if err := sc.Err(); err != nil {
		return Unsupported, "", fmt.Errorf("scan mountinfo: %w", err)
	}

	switch {
	case hasV1 && hasV2:
		return Hybrid, fmt.Sprintf("cgroup2 on %v; cgroup v1 on %v", v2Pts, v1Pts), nil
	case hasV2:
		return V2, fmt.Sprintf("cgroup2 on %v", v2Pts), nil
	case hasV1:
		return V1, fmt.Sprintf("cgroup v1 on %v", v1Pts), nil
	default:
		return Unsupported, "no cgroup mounts found", nil
	}
}
