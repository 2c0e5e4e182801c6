package handlers

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"steward/internal/tools"
)

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadFileNumbersLines(t *testing.T) {
	path := writeTempFile(t, "alpha\nbeta\ngamma\n")
	tool := NewReadFileTool()

	out, err := tool.Handle(context.Background(), &tools.ToolInvocation{
		Arguments: map[string]interface{}{"path": path},
	})
	require.NoError(t, err)
	assert.True(t, *out.Success)
	assert.Contains(t, out.Content, "File: "+path)
	assert.Contains(t, out.Content, "1\talpha")
	assert.Contains(t, out.Content, "3\tgamma")
}

func TestReadFileOffsetAndLimit(t *testing.T) {
	path := writeTempFile(t, "one\ntwo\nthree\nfour\n")
	tool := NewReadFileTool()

	out, err := tool.Handle(context.Background(), &tools.ToolInvocation{
		Arguments: map[string]interface{}{
			"path":   path,
			"offset": float64(1),
			"limit":  float64(2),
		},
	})
	require.NoError(t, err)
	assert.NotContains(t, out.Content, "one")
	assert.Contains(t, out.Content, "two")
	assert.Contains(t, out.Content, "three")
	assert.NotContains(t, out.Content, "four")
}

func TestReadFileMissingIsFailedResult(t *testing.T) {
	tool := NewReadFileTool()

	out, err := tool.Handle(context.Background(), &tools.ToolInvocation{
		Arguments: map[string]interface{}{"path": "/no/such/file"},
	})
	require.NoError(t, err)
	assert.False(t, *out.Success)
}

func TestReadFileEmptyFile(t *testing.T) {
	path := writeTempFile(t, "")
	tool := NewReadFileTool()

	out, err := tool.Handle(context.Background(), &tools.ToolInvocation{
		Arguments: map[string]interface{}{"path": path},
	})
	require.NoError(t, err)
	assert.Contains(t, out.Content, "(empty file)")
}
