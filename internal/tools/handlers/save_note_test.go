package handlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"steward/internal/memory"
	"steward/internal/tools"
)

func TestSaveNotePersists(t *testing.T) {
	store := memory.NewStore(t.TempDir())
	tool := NewSaveNoteTool(store)

	out, err := tool.Handle(context.Background(), &tools.ToolInvocation{
		Arguments: map[string]interface{}{
			"title":   "Gym schedule",
			"content": "Tuesdays and Thursdays at 7am",
		},
	})
	require.NoError(t, err)
	assert.True(t, *out.Success)

	notes, err := store.List()
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "Gym schedule", notes[0].Title)
}

func TestSaveNoteValidation(t *testing.T) {
	tool := NewSaveNoteTool(memory.NewStore(t.TempDir()))

	_, err := tool.Handle(context.Background(), &tools.ToolInvocation{
		Arguments: map[string]interface{}{"title": "no content"},
	})
	assert.True(t, tools.IsValidationError(err))
}
