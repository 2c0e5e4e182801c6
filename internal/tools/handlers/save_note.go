package handlers

import (
	"context"
	"fmt"

	"steward/internal/memory"
	"steward/internal/tools"
)

// SaveNoteTool persists a long-term memory note.
type SaveNoteTool struct {
	store *memory.Store
}

// NewSaveNoteTool creates the save_note handler over the session's note
// store.
func NewSaveNoteTool(store *memory.Store) *SaveNoteTool {
	return &SaveNoteTool{store: store}
}

func (t *SaveNoteTool) Name() string {
	return "save_note"
}

func (t *SaveNoteTool) Kind() tools.ToolKind {
	return tools.ToolKindFunction
}

func (t *SaveNoteTool) Mutating(_ *tools.ToolInvocation) bool {
	return true
}

func (t *SaveNoteTool) Handle(_ context.Context, invocation *tools.ToolInvocation) (*tools.ToolOutput, error) {
	title, err := invocation.StringArg("title")
	if err != nil {
		return nil, err
	}
	content, err := invocation.StringArg("content")
	if err != nil {
		return nil, err
	}

	name, err := t.store.Save(title, content)
	if err != nil {
		failed := false
		return &tools.ToolOutput{
			Content: fmt.Sprintf("failed to save note: %v", err),
			Success: &failed,
		}, nil
	}

	success := true
	return &tools.ToolOutput{
		Content: fmt.Sprintf("Saved note %q", name),
		Success: &success,
	}, nil
}
