package sandbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	for input, want := range map[string]Mode{
		"full-access":     ModeFullAccess,
		"full_access":     ModeFullAccess,
		"read-only":       ModeReadOnly,
		"read_only":       ModeReadOnly,
		"workspace-write": ModeWorkspaceWrite,
		"workspace_write": ModeWorkspaceWrite,
	} {
		mode, err := ParseMode(input)
		require.NoError(t, err)
		assert.Equal(t, want, mode)
	}

	_, err := ParseMode("everything")
	assert.Error(t, err)
}

func TestPolicyRestricted(t *testing.T) {
	assert.False(t, (*Policy)(nil).Restricted())
	assert.False(t, (&Policy{Mode: ModeFullAccess}).Restricted())
	assert.False(t, (&Policy{}).Restricted())
	assert.True(t, (&Policy{Mode: ModeReadOnly}).Restricted())
	assert.True(t, (&Policy{Mode: ModeWorkspaceWrite}).Restricted())
}
