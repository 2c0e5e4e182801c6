// Package cli implements the interactive terminal frontend for steward.
package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"

	"steward/internal/models"
	"steward/internal/workflow"
)

// ItemRenderer renders conversation items as styled strings for the viewport.
type ItemRenderer struct {
	width      int
	noColor    bool
	noMarkdown bool
	styles     Styles
	mdRenderer *glamour.TermRenderer
}

// NewItemRenderer creates a renderer for conversation items.
func NewItemRenderer(width int, noColor, noMarkdown bool, styles Styles) *ItemRenderer {
	r := &ItemRenderer{
		width:      width,
		noColor:    noColor,
		noMarkdown: noMarkdown,
		styles:     styles,
	}
	if !noMarkdown {
		w := width
		if w <= 0 {
			w = 80
			if tw, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && tw > 0 {
				w = tw
			}
		}
		md, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle("dark"),
			glamour.WithWordWrap(w),
		)
		if err == nil {
			r.mdRenderer = md
		}
	}
	return r
}

// RenderItem renders a single conversation item as a string.
// isResume controls whether user messages are shown (they are during resume,
// since live input is echoed by the input handler before submission).
// Returns empty string if the item produces no visible output.
func (r *ItemRenderer) RenderItem(item models.ConversationItem, isResume bool) string {
	switch item.Type {
	case models.ItemTypeTurnStarted:
		return r.RenderTurnStarted(item)
	case models.ItemTypeUserMessage:
		if isResume {
			return r.RenderUserMessage(item)
		}
		return ""
	case models.ItemTypeAssistantMessage:
		return r.RenderAssistantMessage(item)
	case models.ItemTypeFunctionCall:
		return r.RenderFunctionCall(item)
	case models.ItemTypeFunctionCallOutput:
		return r.RenderFunctionCallOutput(item)
	case models.ItemTypeSystemNote:
		return r.RenderSystemNote(item)
	case models.ItemTypeCompactionSummary:
		return r.RenderCompactionSummary(item)
	case models.ItemTypeTurnComplete:
		return ""
	default:
		return ""
	}
}

// RenderTurnStarted renders a turn separator.
func (r *ItemRenderer) RenderTurnStarted(item models.ConversationItem) string {
	line := fmt.Sprintf("── Turn %s ──", item.TurnID)
	return r.styles.TurnSeparator.Render(line) + "\n"
}

// RenderUserMessage renders a user message.
func (r *ItemRenderer) RenderUserMessage(item models.ConversationItem) string {
	return r.styles.UserMessage.Render("> "+item.Content) + "\n"
}

// RenderAssistantMessage renders an assistant message with optional markdown.
func (r *ItemRenderer) RenderAssistantMessage(item models.ConversationItem) string {
	content := item.Content
	if content == "" {
		return ""
	}
	if r.mdRenderer != nil {
		rendered, err := r.mdRenderer.Render(content)
		if err == nil {
			return rendered
		}
	}
	return "\n" + content + "\n\n"
}

// RenderFunctionCall renders a tool invocation as a single bullet line.
// Example: "• Ran echo hello"
func (r *ItemRenderer) RenderFunctionCall(item models.ConversationItem) string {
	verb, detail := formatToolCall(item.Name, item.Arguments)
	bullet := r.styles.ToolBullet.Render("•")
	styledVerb := r.styles.ToolVerb.Render(verb)
	if detail != "" {
		return bullet + " " + styledVerb + " " + detail + "\n"
	}
	return bullet + " " + styledVerb + "\n"
}

// RenderFunctionCallOutput renders tool output with a 5-line limit, middle
// truncation, and tree-style prefixes.
func (r *ItemRenderer) RenderFunctionCallOutput(item models.ConversationItem) string {
	if item.Output == nil {
		return ""
	}

	isFailure := item.Output.Success != nil && !*item.Output.Success
	content := strings.TrimRight(item.Output.Content, "\n")

	if content == "" {
		line := r.styles.OutputPrefix.Render("  └ ") + r.styles.OutputDim.Render("(no output)")
		return line + "\n"
	}

	lines := strings.Split(content, "\n")
	displayed, _ := truncateMiddle(lines, 5)

	var b strings.Builder
	for i, line := range displayed {
		var prefix string
		if i == 0 {
			prefix = r.styles.OutputPrefix.Render("  └ ")
		} else {
			prefix = r.styles.OutputPrefix.Render("    ")
		}
		if isFailure {
			b.WriteString(prefix + r.styles.OutputFailure.Render(line) + "\n")
		} else {
			b.WriteString(prefix + r.styles.OutputDim.Render(line) + "\n")
		}
	}

	return b.String()
}

// RenderSystemNote renders an orchestrator note (steering, interruption
// markers, recalled memory).
func (r *ItemRenderer) RenderSystemNote(item models.ConversationItem) string {
	if item.Content == "" {
		return ""
	}
	lines := strings.Split(strings.TrimRight(item.Content, "\n"), "\n")
	displayed, _ := truncateMiddle(lines, 3)
	var b strings.Builder
	for i, line := range displayed {
		if i == 0 {
			b.WriteString(r.styles.SystemNote.Render("◆ "+line) + "\n")
		} else {
			b.WriteString(r.styles.SystemNote.Render("  "+line) + "\n")
		}
	}
	return b.String()
}

// RenderCompactionSummary renders the marker left behind after older history
// was compacted. The summary body stays in the model context; the viewport
// only shows that compaction happened.
func (r *ItemRenderer) RenderCompactionSummary(item models.ConversationItem) string {
	return r.styles.CompactionMarker.Render("── older history compacted ──") + "\n"
}

// RenderSystemMessage renders a frontend status line (not a conversation item).
func (r *ItemRenderer) RenderSystemMessage(text string) string {
	return r.styles.Hint.Render(text) + "\n"
}

// RenderApprovalContext renders the approval details for the viewport without
// the prompt line (the selector handles the options).
func (r *ItemRenderer) RenderApprovalContext(approvals []workflow.PendingApproval) string {
	var b strings.Builder
	b.WriteString("\n")
	for i, ap := range approvals {
		idx := r.styles.ApprovalIndex.Render(fmt.Sprintf("[%d]", i+1))
		tool := r.styles.ApprovalTool.Render("Tool:") + " " + ap.ToolName
		b.WriteString(fmt.Sprintf("  %s %s\n", idx, tool))
		b.WriteString(fmt.Sprintf("      %s\n", formatApprovalDetail(ap.ToolName, ap.Arguments)))
		if ap.Reason != "" {
			reason := r.styles.ApprovalReason.Render("Reason:") + " " + ap.Reason
			b.WriteString(fmt.Sprintf("      %s\n", reason))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// PhaseMessage returns a human-friendly message for a turn phase.
func PhaseMessage(phase workflow.TurnPhase, toolsInFlight []string) string {
	switch phase {
	case workflow.PhaseLLMCalling:
		return "Thinking..."
	case workflow.PhaseToolExecuting:
		if len(toolsInFlight) > 0 {
			return fmt.Sprintf("Running %s...", toolsInFlight[0])
		}
		return "Running tool..."
	case workflow.PhaseApprovalPending:
		return "Waiting for approval..."
	case workflow.PhaseCompacting:
		return "Compacting context..."
	case workflow.PhaseDelegating:
		return "Working on a focused task..."
	default:
		return "Working..."
	}
}

// formatToolCall parses the tool name and JSON arguments, returning a
// human-readable verb and detail string.
//
//	shell            → ("Ran", "echo hello")
//	shell_session    → ("Ran", "session build: make")
//	read_file        → ("Read", "/tmp/foo.txt")
//	list_dir         → ("Listed", "/tmp")
//	save_note        → ("Saved note", "preferred editor")
//	run_focused_task → ("Delegated", "Count the markdown files…")
//	unknown          → ("Called", "jira_create_issue(…)")
func formatToolCall(name, argsJSON string) (verb, detail string) {
	var args map[string]interface{}
	_ = json.Unmarshal([]byte(argsJSON), &args)

	switch name {
	case "shell":
		if cmd, ok := args["command"].(string); ok {
			return "Ran", truncateString(cmd, 120)
		}
		return "Ran", truncateString(argsJSON, 120)
	case "shell_session":
		var parts []string
		if sid, ok := args["session_id"].(string); ok {
			parts = append(parts, "session "+sid)
		}
		if cmd, ok := args["command"].(string); ok && cmd != "" {
			parts = append(parts, truncateString(cmd, 80))
		} else if in, ok := args["input"].(string); ok && in != "" {
			parts = append(parts, "« "+truncateString(strings.TrimRight(in, "\n"), 80))
		}
		return "Ran", strings.Join(parts, ": ")
	case "read_file":
		if fp, ok := args["path"].(string); ok {
			return "Read", fp
		}
		return "Read", ""
	case "list_dir":
		if dp, ok := args["dir_path"].(string); ok {
			return "Listed", dp
		}
		return "Listed", ""
	case "save_note":
		if title, ok := args["title"].(string); ok {
			return "Saved note", truncateString(title, 80)
		}
		return "Saved note", ""
	case "run_focused_task":
		if task, ok := args["task"].(string); ok {
			return "Delegated", truncateString(task, 120)
		}
		return "Delegated", ""
	default:
		return "Called", name + "(" + truncateString(argsJSON, 80) + ")"
	}
}

// formatApprovalDetail extracts the salient argument for an approval prompt.
func formatApprovalDetail(toolName, arguments string) string {
	var args map[string]interface{}
	if json.Unmarshal([]byte(arguments), &args) == nil {
		switch toolName {
		case "shell", "shell_session":
			if cmd, ok := args["command"].(string); ok && cmd != "" {
				return "Shell: " + cmd
			}
			if in, ok := args["input"].(string); ok && in != "" {
				return "Input: " + truncateString(strings.TrimRight(in, "\n"), 200)
			}
		}
	}
	display := arguments
	if len(display) > 300 {
		display = display[:300] + "..."
	}
	return toolName + ": " + display
}

// truncateMiddle returns at most limit lines. When the input exceeds the limit,
// it keeps the first 2 and last 2 lines with a "… +N lines" placeholder in
// between. The returned omitted count reflects lines replaced by the placeholder.
func truncateMiddle(lines []string, limit int) (result []string, omitted int) {
	if len(lines) <= limit {
		return lines, 0
	}
	head := 2
	tail := 2
	if limit < head+tail+1 {
		head = 1
		tail = 1
	}
	omitted = len(lines) - head - tail
	result = make([]string, 0, head+1+tail)
	result = append(result, lines[:head]...)
	result = append(result, fmt.Sprintf("… +%d lines", omitted))
	result = append(result, lines[len(lines)-tail:]...)
	return result, omitted
}

// truncateString truncates s to maxLen characters, appending "…" if truncated.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "…"
}

func formatTokens(n int) string {
	if n >= 1000 {
		return fmt.Sprintf("%d,%03d", n/1000, n%1000)
	}
	return fmt.Sprintf("%d", n)
}
