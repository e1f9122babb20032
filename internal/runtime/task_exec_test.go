//go:build linux

package runtime

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fabrigo/fabrigo/internal/ferrors"
)

func TestBuildEnvInjectsDefaultPath(t *testing.T) {
	env := buildEnv(map[string]string{"FOO": "bar"})
	assert.Contains(t, env, "FOO=bar")

	found := false
	for _, kv := range env {
		if kv == "PATH="+defaultPath {
			found = true
		}
	}
	assert.True(t, found, "expected default PATH to be injected, got %v", env)
}

func TestBuildEnvRespectsExplicitPath(t *testing.T) {
	env := buildEnv(map[string]string{"PATH": "/custom/bin"})
	assert.Contains(t, env, "PATH=/custom/bin")
	assert.NotContains(t, env, "PATH="+defaultPath)
}

func TestBuildEnvDeterministicOrder(t *testing.T) {
	env1 := buildEnv(map[string]string{"B": "2", "A": "1"})
	env2 := buildEnv(map[string]string{"A": "1", "B": "2"})
	assert.Equal(t, env1, env2)
}

func TestValidateUTF8OutputAcceptsValid(t *testing.T) {
	err := validateUTF8Output("echo", []byte("hello"), []byte("world"))
	assert.NoError(t, err)
}

func TestValidateUTF8OutputRejectsInvalidStdout(t *testing.T) {
	err := validateUTF8Output("echo", []byte{0xff, 0xfe}, []byte("ok"))
	assert.Error(t, err)
	assert.True(t, errors.Is(err, ferrors.New(ferrors.KindGetStdout, "")))
}

func TestValidateUTF8OutputRejectsInvalidStderr(t *testing.T) {
	err := validateUTF8Output("echo", []byte("ok"), []byte{0xff, 0xfe})
	assert.Error(t, err)
	assert.True(t, errors.Is(err, ferrors.New(ferrors.KindGetStderr, "")))
}
