//go:build linux

package runtime

import (
	"encoding/json"
	"time"

	"github.com/fabrigo/fabrigo/pkg/task"
)

// childRequestFD and childResultFD are the file descriptor numbers the re-exec'd
// __child subcommand finds its ExtraFiles at: ExtraFiles[0] lands on fd
// 3, ExtraFiles[1] on fd 4, in the order Executor.Execute wires them up.
const (
	childRequestFD = 3
	childResultFD  = 4
)

// childRequest is the payload written to the child's request pipe: the
// task group plus the per-request configuration, since the child is a
// separate OS process with no access to the parent's in-memory state.
// The child assembles its container from ContainerConfig. CgroupConfig
// is carried but not consulted: executeSingleTask creates every task
// cgroup with task.DefaultCgroupConfig.
type childRequest struct {
	TaskGroup       task.TaskGroup     `json:"task_group"`
	CgroupConfig    task.CgroupConfig  `json:"cgroup_config"`
	ContainerConfig task.ContainerConfig `json:"container_config"`
	TimeoutMs       int64              `json:"timeout_ms"`
}

func (r childRequest) timeout() time.Duration {
	if r.TimeoutMs <= 0 {
		return 10 * time.Second
	}
	return time.Duration(r.TimeoutMs) * time.Millisecond
}

func encodeChildRequest(req childRequest) ([]byte, error) {
	return json.Marshal(req)
}

func decodeChildRequest(data []byte) (childRequest, error) {
	var req childRequest
	err := json.Unmarshal(data, &req)
	return req, err
}
