package ferrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorString(t *testing.T) {
	err := New(KindMount, "bind mount /bin")
	assert.Equal(t, "mount: bind mount /bin", err.Error())

	wrapped := Wrap(KindMount, "bind mount /bin", errors.New("permission denied"))
	assert.Equal(t, "mount: bind mount /bin: permission denied", wrapped.Error())
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(KindSpawn, "exec task", cause)
	require.ErrorIs(t, err, cause)
	assert.Equal(t, cause, errors.Unwrap(err))
}

func TestErrorIsByKind(t *testing.T) {
	a := New(KindTaskTimeout, "task t1")
	b := New(KindTaskTimeout, "task t2")
	c := New(KindMount, "task t1")

	assert.True(t, errors.Is(a, b), "same kind should match regardless of detail")
	assert.False(t, errors.Is(a, c), "different kind should not match")
}

func TestKindStringUnknown(t *testing.T) {
	var k Kind = 9999
	assert.Equal(t, "unknown", k.String())
}
