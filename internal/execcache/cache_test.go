package execcache

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabrigo/fabrigo/pkg/result"
	"github.com/fabrigo/fabrigo/pkg/task"
)

func TestFingerprintStableForEqualGroups(t *testing.T) {
	g1 := task.TaskGroup{task.NewSingle(task.Task{Cmd: "echo", Args: []string{"hi"}})}
	g2 := task.TaskGroup{task.NewSingle(task.Task{Cmd: "echo", Args: []string{"hi"}})}

	fp1, err := Fingerprint(g1)
	require.NoError(t, err)
	fp2, err := Fingerprint(g2)
	require.NoError(t, err)

	assert.Equal(t, fp1, fp2)
}

func TestFingerprintDiffersForDifferentGroups(t *testing.T) {
	g1 := task.TaskGroup{task.NewSingle(task.Task{Cmd: "echo", Args: []string{"hi"}})}
	g2 := task.TaskGroup{task.NewSingle(task.Task{Cmd: "echo", Args: []string{"bye"}})}

	fp1, _ := Fingerprint(g1)
	fp2, _ := Fingerprint(g2)

	assert.NotEqual(t, fp1, fp2)
}

func TestCacheGetPut(t *testing.T) {
	c := New()
	group := task.TaskGroup{task.NewSingle(task.Task{Cmd: "echo"})}
	fp, err := Fingerprint(group)
	require.NoError(t, err)

	_, ok := c.TryGet(fp)
	assert.False(t, ok)

	want := result.TaskGroupResult{result.NewSingleResult(result.NewCompleted("hi\n", "", 0, result.TaskResultStats{}))}
	c.Put(fp, want)

	got, ok := c.TryGet(fp)
	require.True(t, ok)
	assert.Equal(t, want, got)
	assert.Equal(t, 1, c.Len())
}

func TestCacheConcurrentAccess(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			group := task.TaskGroup{task.NewSingle(task.Task{Cmd: "echo", Args: []string{string(rune('a' + i%26))}})}
			fp, err := Fingerprint(group)
			require.NoError(t, err)
			c.Put(fp, result.TaskGroupResult{})
			_, _ = c.TryGet(fp)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Len(), 26)
}
