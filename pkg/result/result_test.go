package result

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskResultCompletedRoundTrip(t *testing.T) {
	r := NewCompleted("hi\n", "", 0, TaskResultStats{MemoryPeakBytes: 1024, ExecutionTimeMs: 5})

	data, err := json.Marshal(r)
	require.NoError(t, err)

	var decoded TaskResult
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, decoded.Completed)
	assert.Equal(t, "hi\n", decoded.Stdout)
	assert.EqualValues(t, 0, decoded.ExitCode)
}

func TestTaskResultFailedRoundTrip(t *testing.T) {
	r := NewFailed("task timed out after 1s", TaskResultStats{})

	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"error"`)

	var decoded TaskResult
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.False(t, decoded.Completed)
	assert.Equal(t, "task timed out after 1s", decoded.Error)
}

func TestExecutionStepResultStructural(t *testing.T) {
	single := NewSingleResult(NewCompleted("a", "", 0, TaskResultStats{}))
	data, err := json.Marshal(single)
	require.NoError(t, err)
	assert.Equal(t, byte('{'), data[0])

	parallel := NewParallelResult([]TaskResult{
		NewCompleted("a", "", 0, TaskResultStats{}),
		NewCompleted("b", "", 0, TaskResultStats{}),
	})
	data, err = json.Marshal(parallel)
	require.NoError(t, err)
	assert.Equal(t, byte('['), data[0])

	var decoded ExecutionStepResult
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, decoded.IsParallel())
	assert.Len(t, decoded.Parallel, 2)
}

func TestRuntimeResultSuccessRoundTrip(t *testing.T) {
	group := TaskGroupResult{NewSingleResult(NewCompleted("hi\n", "", 0, TaskResultStats{}))}
	rr := NewSuccess(group)

	data, err := json.Marshal(rr)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"Success"`)

	var decoded RuntimeResult
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, decoded.IsSuccess())
	require.NotNil(t, decoded.Success)
	assert.Len(t, *decoded.Success, 1)
}

func TestRuntimeResultContainerSetupFailedRoundTrip(t *testing.T) {
	rr := NewContainerSetupFailed("bind mount /bin: no such file or directory")

	data, err := json.Marshal(rr)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"ContainerSetupFailed"`)

	var decoded RuntimeResult
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.False(t, decoded.IsSuccess())
	require.NotNil(t, decoded.ContainerSetupError)
	assert.Equal(t, "bind mount /bin: no such file or directory", *decoded.ContainerSetupError)
}

func TestTaskGroupResultWireExample(t *testing.T) {
	raw := `[
		{"stdout":"hello\n","stderr":"","exit_code":0,"stats":{"memory_peak_bytes":0,"cpu_usage_percent":0,"execution_time_ms":1,"pids_peak":1}},
		[ {"stdout":"","stderr":"","exit_code":0,"stats":{"memory_peak_bytes":0,"cpu_usage_percent":0,"execution_time_ms":1000,"pids_peak":1}},
		  {"stdout":"","stderr":"","exit_code":0,"stats":{"memory_peak_bytes":0,"cpu_usage_percent":0,"execution_time_ms":1000,"pids_peak":1}} ]
	]`

	var group TaskGroupResult
	require.NoError(t, json.Unmarshal([]byte(raw), &group))
	require.Len(t, group, 2)
	assert.False(t, group[0].IsParallel())
	assert.True(t, group[1].IsParallel())
	assert.Len(t, group[1].Parallel, 2)
}
