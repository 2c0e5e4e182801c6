package llm

import (
	"fmt"
	"strings"

	"steward/internal/models"
)

// maxRenderedOutputBytes caps how much of each tool output makes it into
// the summarizer input. Full outputs are already bounded elsewhere; the
// summarizer only needs enough to understand what happened.
const maxRenderedOutputBytes = 4096

// RenderHistoryForSummary flattens a span of conversation items into the
// plain-text transcript handed to the summarizer model. The transcript is
// framed as untrusted data so instructions embedded in tool outputs are
// not followed.
func RenderHistoryForSummary(items []models.ConversationItem) string {
	var sb strings.Builder
	sb.WriteString("<conversation-to-summarize>\n")

	for _, item := range items {
		switch item.Type {
		case models.ItemTypeUserMessage:
			fmt.Fprintf(&sb, "[user]\n%s\n\n", item.Content)
		case models.ItemTypeAssistantMessage:
			fmt.Fprintf(&sb, "[assistant]\n%s\n\n", item.Content)
		case models.ItemTypeSystemNote:
			fmt.Fprintf(&sb, "[note]\n%s\n\n", item.Content)
		case models.ItemTypeCompactionSummary:
			fmt.Fprintf(&sb, "[earlier summary]\n%s\n\n", item.Content)
		case models.ItemTypeFunctionCall:
			fmt.Fprintf(&sb, "[tool call %s] %s(%s)\n\n", item.CallID, item.Name, item.Arguments)
		case models.ItemTypeFunctionCallOutput:
			content := ""
			if item.Output != nil {
				content = item.Output.Content
			}
			if len(content) > maxRenderedOutputBytes {
				content = content[:maxRenderedOutputBytes] + "\n[output truncated]"
			}
			fmt.Fprintf(&sb, "[tool result %s]\n%s\n\n", item.CallID, content)
		}
	}

	sb.WriteString("</conversation-to-summarize>")
	return sb.String()
}
