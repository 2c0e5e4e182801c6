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

func makeTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "docs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "docs", "readme.md"), nil, 0o644))
	return root
}

func TestListDirShowsNestedEntries(t *testing.T) {
	root := makeTree(t)
	tool := NewListDirTool()

	out, err := tool.Handle(context.Background(), &tools.ToolInvocation{
		Arguments: map[string]interface{}{"dir_path": root},
	})
	require.NoError(t, err)
	assert.True(t, *out.Success)
	assert.Contains(t, out.Content, "Absolute path: "+root)
	assert.Contains(t, out.Content, "a.txt")
	assert.Contains(t, out.Content, "docs/")
	assert.Contains(t, out.Content, "readme.md")
}

func TestListDirDepthOne(t *testing.T) {
	root := makeTree(t)
	tool := NewListDirTool()

	out, err := tool.Handle(context.Background(), &tools.ToolInvocation{
		Arguments: map[string]interface{}{
			"dir_path": root,
			"depth":    float64(1),
		},
	})
	require.NoError(t, err)
	assert.NotContains(t, out.Content, "readme.md")
}

func TestListDirPagination(t *testing.T) {
	root := makeTree(t)
	tool := NewListDirTool()

	out, err := tool.Handle(context.Background(), &tools.ToolInvocation{
		Arguments: map[string]interface{}{
			"dir_path": root,
			"limit":    float64(1),
		},
	})
	require.NoError(t, err)
	assert.Contains(t, out.Content, "more entries not shown")
}

func TestListDirValidation(t *testing.T) {
	tool := NewListDirTool()

	_, err := tool.Handle(context.Background(), &tools.ToolInvocation{
		Arguments: map[string]interface{}{"dir_path": "relative/path"},
	})
	assert.True(t, tools.IsValidationError(err))

	_, err = tool.Handle(context.Background(), &tools.ToolInvocation{
		Arguments: map[string]interface{}{"dir_path": "/tmp", "offset": float64(0)},
	})
	assert.True(t, tools.IsValidationError(err))
}
