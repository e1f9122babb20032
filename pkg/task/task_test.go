package task

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutionStepRoundTripSingle(t *testing.T) {
	step := NewSingle(Task{Cmd: "echo", Args: []string{"hi"}})

	data, err := json.Marshal(step)
	require.NoError(t, err)
	assert.Equal(t, '{', rune(data[0]))

	var decoded ExecutionStep
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.False(t, decoded.IsParallel())
	require.NotNil(t, decoded.Single)
	assert.Equal(t, "echo", decoded.Single.Cmd)
}

func TestExecutionStepRoundTripParallel(t *testing.T) {
	step := NewParallel([]Task{{Cmd: "sleep", Args: []string{"1"}}, {Cmd: "sleep", Args: []string{"1"}}})

	data, err := json.Marshal(step)
	require.NoError(t, err)
	assert.Equal(t, '[', rune(data[0]))

	var decoded ExecutionStep
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, decoded.IsParallel())
	assert.Len(t, decoded.Parallel, 2)
}

func TestExecutionStepEmptyParallel(t *testing.T) {
	step := NewParallel(nil)
	data, err := json.Marshal(step)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))

	var decoded ExecutionStep
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, decoded.IsParallel())
	assert.Empty(t, decoded.Parallel)
}

func TestTaskGroupDecodeExample(t *testing.T) {
	raw := `[
		{"cmd":"echo","args":["hello"]},
		[ {"cmd":"sleep","args":["1"]}, {"cmd":"sleep","args":["1"]} ]
	]`

	var group TaskGroup
	require.NoError(t, json.Unmarshal([]byte(raw), &group))
	require.Len(t, group, 2)
	assert.False(t, group[0].IsParallel())
	assert.True(t, group[1].IsParallel())
	assert.Len(t, group[1].Parallel, 2)
}

func TestTaskGroupValidateEmpty(t *testing.T) {
	var group TaskGroup
	assert.Error(t, group.Validate())

	group = TaskGroup{NewParallel(nil)}
	assert.NoError(t, group.Validate())
}

func TestUnmarshalRejectsScalar(t *testing.T) {
	var step ExecutionStep
	err := json.Unmarshal([]byte(`"not a step"`), &step)
	assert.Error(t, err)
}

func TestDefaultConfigs(t *testing.T) {
	cg := DefaultCgroupConfig()
	assert.Equal(t, "50000 100000", cg.CPUMax)
	assert.Equal(t, "128M", cg.MemoryMax)
	assert.EqualValues(t, 64, cg.PidsMax)

	cc := DefaultContainerConfig("abc123")
	assert.Equal(t, "/tmp/fabrigo/abc123", cc.ContainerRootDir)
	assert.Equal(t, "/faber", cc.Workdir)
	assert.Equal(t, []string{"/bin", "/lib", "/lib64", "/usr"}, cc.BindMountsReadOnly)
}
