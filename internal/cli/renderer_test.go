package cli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"steward/internal/models"
	"steward/internal/workflow"
)

func newTestRenderer() *ItemRenderer {
	return NewItemRenderer(80, true, true, NoColorStyles()) // noColor=true, noMarkdown=true
}

func TestItemRenderer_RenderAssistantMessage(t *testing.T) {
	r := newTestRenderer()
	result := r.RenderItem(models.ConversationItem{
		Type:    models.ItemTypeAssistantMessage,
		Content: "Hello, world!",
	}, false)

	assert.NotEmpty(t, result)
	assert.Contains(t, result, "Hello, world!")
}

func TestItemRenderer_RenderFunctionCall(t *testing.T) {
	r := newTestRenderer()
	result := r.RenderItem(models.ConversationItem{
		Type:      models.ItemTypeFunctionCall,
		Name:      "shell",
		Arguments: `{"command": "echo hello"}`,
	}, false)

	assert.NotEmpty(t, result)
	assert.Contains(t, result, "Ran")
	assert.Contains(t, result, "echo hello")
	assert.Contains(t, result, "•")
}

func TestItemRenderer_RenderFunctionCallOutput_Failure(t *testing.T) {
	r := newTestRenderer()
	success := false
	result := r.RenderItem(models.ConversationItem{
		Type:   models.ItemTypeFunctionCallOutput,
		CallID: "call-1",
		Output: &models.FunctionCallOutputPayload{
			Content: "permission denied",
			Success: &success,
		},
	}, false)

	assert.Contains(t, result, "└")
	assert.Contains(t, result, "permission denied")
}

func TestItemRenderer_RenderFunctionCallOutput_TruncatesMiddle(t *testing.T) {
	r := newTestRenderer()
	lines := make([]string, 20)
	for i := range lines {
		lines[i] = "line"
	}
	result := r.RenderItem(models.ConversationItem{
		Type:   models.ItemTypeFunctionCallOutput,
		CallID: "call-1",
		Output: &models.FunctionCallOutputPayload{Content: strings.Join(lines, "\n")},
	}, false)

	assert.Contains(t, result, "… +16 lines")
	assert.Equal(t, 5, strings.Count(result, "\n"))
}

func TestItemRenderer_RenderSystemNote(t *testing.T) {
	r := newTestRenderer()
	result := r.RenderItem(models.ConversationItem{
		Type:    models.ItemTypeSystemNote,
		Content: "You appear to be repeating yourself.",
	}, false)

	assert.Contains(t, result, "◆")
	assert.Contains(t, result, "repeating yourself")
}

func TestItemRenderer_RenderCompactionSummary(t *testing.T) {
	r := newTestRenderer()
	result := r.RenderItem(models.ConversationItem{
		Type:    models.ItemTypeCompactionSummary,
		Content: "A very long summary that the viewport should not show in full.",
	}, false)

	assert.Contains(t, result, "older history compacted")
	assert.NotContains(t, result, "very long summary")
}

func TestItemRenderer_UserMessageOnlyOnResume(t *testing.T) {
	r := newTestRenderer()
	item := models.ConversationItem{
		Type:    models.ItemTypeUserMessage,
		Content: "hi there",
	}

	assert.Empty(t, r.RenderItem(item, false))
	assert.Contains(t, r.RenderItem(item, true), "hi there")
}

func TestItemRenderer_TurnMarkers(t *testing.T) {
	r := newTestRenderer()

	started := r.RenderItem(models.ConversationItem{
		Type:   models.ItemTypeTurnStarted,
		TurnID: "turn-3",
	}, false)
	assert.Contains(t, started, "turn-3")

	complete := r.RenderItem(models.ConversationItem{
		Type: models.ItemTypeTurnComplete,
	}, false)
	assert.Empty(t, complete)
}

func TestFormatToolCall(t *testing.T) {
	verb, detail := formatToolCall("shell", `{"command": "ls -la"}`)
	assert.Equal(t, "Ran", verb)
	assert.Equal(t, "ls -la", detail)

	verb, detail = formatToolCall("read_file", `{"path": "/tmp/notes.md"}`)
	assert.Equal(t, "Read", verb)
	assert.Equal(t, "/tmp/notes.md", detail)

	verb, detail = formatToolCall("list_dir", `{"dir_path": "/home"}`)
	assert.Equal(t, "Listed", verb)
	assert.Equal(t, "/home", detail)

	verb, detail = formatToolCall("save_note", `{"title": "preferred editor", "content": "vim"}`)
	assert.Equal(t, "Saved note", verb)
	assert.Equal(t, "preferred editor", detail)

	verb, detail = formatToolCall("run_focused_task", `{"task": "Count markdown files"}`)
	assert.Equal(t, "Delegated", verb)
	assert.Equal(t, "Count markdown files", detail)

	verb, detail = formatToolCall("jira_create_issue", `{"summary": "bug"}`)
	assert.Equal(t, "Called", verb)
	assert.Contains(t, detail, "jira_create_issue(")
}

func TestRenderApprovalContext(t *testing.T) {
	r := newTestRenderer()
	result := r.RenderApprovalContext([]workflow.PendingApproval{
		{CallID: "c1", ToolName: "shell", Arguments: `{"command": "rm -rf build"}`, Reason: "Removes files"},
	})

	assert.Contains(t, result, "[1]")
	assert.Contains(t, result, "shell")
	assert.Contains(t, result, "rm -rf build")
	assert.Contains(t, result, "Removes files")
}

func TestPhaseMessage(t *testing.T) {
	assert.Equal(t, "Thinking...", PhaseMessage(workflow.PhaseLLMCalling, nil))
	assert.Equal(t, "Running shell...", PhaseMessage(workflow.PhaseToolExecuting, []string{"shell"}))
	assert.Equal(t, "Waiting for approval...", PhaseMessage(workflow.PhaseApprovalPending, nil))
	assert.Equal(t, "Compacting context...", PhaseMessage(workflow.PhaseCompacting, nil))
	assert.Equal(t, "Working on a focused task...", PhaseMessage(workflow.PhaseDelegating, nil))
	assert.Equal(t, "Working...", PhaseMessage(workflow.PhaseWaitingForInput, nil))
}

func TestTruncateMiddle(t *testing.T) {
	lines := []string{"a", "b", "c", "d", "e", "f", "g"}

	result, omitted := truncateMiddle(lines, 5)
	assert.Equal(t, 3, omitted)
	assert.Equal(t, []string{"a", "b", "… +3 lines", "f", "g"}, result)

	result, omitted = truncateMiddle(lines[:5], 5)
	assert.Equal(t, 0, omitted)
	assert.Len(t, result, 5)
}

func TestFormatTokens(t *testing.T) {
	assert.Equal(t, "512", formatTokens(512))
	assert.Equal(t, "12,345", formatTokens(12345))
}
