//go:build linux

package sandbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBwrapWrapReadOnly(t *testing.T) {
	m := &bwrapManager{}
	env, err := m.Wrap(
		CommandSpec{Program: "ls", Args: []string{"-la"}, Cwd: "/work"},
		&Policy{Mode: ModeReadOnly},
	)
	require.NoError(t, err)

	assert.Equal(t, "bwrap", env.Command[0])
	assert.Contains(t, env.Command, "--ro-bind")
	assert.Contains(t, env.Command, "--unshare-net")
	assert.Contains(t, env.Command, "--chdir")
	assert.NotContains(t, env.Command, "--bind")
	assert.Equal(t, []string{"ls", "-la"}, env.Command[len(env.Command)-2:])
	assert.Equal(t, "1", env.Env["STEWARD_SANDBOX_NETWORK_DISABLED"])
}

func TestBwrapWrapWorkspaceWrite(t *testing.T) {
	m := &bwrapManager{}
	env, err := m.Wrap(
		CommandSpec{Program: "make", Cwd: "/work"},
		&Policy{Mode: ModeWorkspaceWrite, WritableRoots: []string{"/work"}, NetworkAccess: true},
	)
	require.NoError(t, err)

	assert.Contains(t, env.Command, "--bind")
	assert.NotContains(t, env.Command, "--unshare-net")
	_, disabled := env.Env["STEWARD_SANDBOX_NETWORK_DISABLED"]
	assert.False(t, disabled)
}

func TestBwrapWrapFullAccessPassesThrough(t *testing.T) {
	m := &bwrapManager{}
	env, err := m.Wrap(
		CommandSpec{Program: "ls", Cwd: "/work"},
		&Policy{Mode: ModeFullAccess},
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"ls"}, env.Command)
}
