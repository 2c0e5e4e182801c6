package handlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"steward/internal/models"
	"steward/internal/sandbox"
	"steward/internal/tools"
)

func newTestSandbox(t *testing.T) *sandbox.Service {
	t.Helper()
	svc, err := sandbox.NewService(models.SandboxConfig{Mode: "full-access"})
	require.NoError(t, err)
	t.Cleanup(svc.Cleanup)
	return svc
}

func TestShellToolSuccess(t *testing.T) {
	tool := NewShellTool(newTestSandbox(t))

	out, err := tool.Handle(context.Background(), &tools.ToolInvocation{
		Arguments: map[string]interface{}{"command": "echo hello"},
	})
	require.NoError(t, err)
	require.NotNil(t, out.Success)
	assert.True(t, *out.Success)
	assert.Contains(t, out.Content, "hello")
}

func TestShellToolFailureIsResultNotError(t *testing.T) {
	tool := NewShellTool(newTestSandbox(t))

	out, err := tool.Handle(context.Background(), &tools.ToolInvocation{
		Arguments: map[string]interface{}{"command": "ls /definitely/not/here"},
	})
	require.NoError(t, err)
	require.NotNil(t, out.Success)
	assert.False(t, *out.Success)
}

func TestShellToolTimeout(t *testing.T) {
	tool := NewShellTool(newTestSandbox(t))

	out, err := tool.Handle(context.Background(), &tools.ToolInvocation{
		Arguments: map[string]interface{}{
			"command":    "sleep 5",
			"timeout_ms": float64(100),
		},
	})
	require.NoError(t, err)
	assert.False(t, *out.Success)
	assert.Contains(t, out.Content, "timed out")
}

func TestShellToolValidation(t *testing.T) {
	tool := NewShellTool(newTestSandbox(t))

	_, err := tool.Handle(context.Background(), &tools.ToolInvocation{
		Arguments: map[string]interface{}{},
	})
	assert.True(t, tools.IsValidationError(err))

	_, err = tool.Handle(context.Background(), &tools.ToolInvocation{
		Arguments: map[string]interface{}{"command": 42},
	})
	assert.True(t, tools.IsValidationError(err))
}

func TestShellSessionToolLifecycle(t *testing.T) {
	svc := newTestSandbox(t)
	tool := NewShellSessionTool(svc)

	// Starting without a command is invalid.
	_, err := tool.Handle(context.Background(), &tools.ToolInvocation{
		Arguments: map[string]interface{}{"session_id": "s1"},
	})
	assert.True(t, tools.IsValidationError(err))

	out, err := tool.Handle(context.Background(), &tools.ToolInvocation{
		Arguments: map[string]interface{}{
			"session_id": "s1",
			"command":    "echo started",
			"timeout_ms": float64(3000),
		},
	})
	require.NoError(t, err)
	assert.Contains(t, out.Content, "started")
	assert.Contains(t, out.Content, "exited with code 0")
}
