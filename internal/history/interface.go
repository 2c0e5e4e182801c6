// Package history provides conversation sequence management.
package history

import "steward/internal/models"

// ContextManager manages the ordered, append-only conversation sequence for
// one session. Items are never mutated after append; compaction and pruning
// are the only operations that replace or rewrite them.
type ContextManager interface {
	// AddItem appends a new conversation item, assigning its Seq.
	AddItem(item models.ConversationItem) error

	// GetForPrompt returns the items to send to the model.
	GetForPrompt() ([]models.ConversationItem, error)

	// EstimateTokenCount estimates the token size of the sequence.
	EstimateTokenCount() (int, error)

	// GetRawItems returns a copy of all items.
	GetRawItems() ([]models.ConversationItem, error)

	// GetItemsSince returns items with Seq > sinceSeq. The bool result is
	// true when compaction reset the sequence space and the caller must
	// re-sync from the full list returned.
	GetItemsSince(sinceSeq int) ([]models.ConversationItem, bool, error)

	// GetTurnCount returns the number of user messages.
	GetTurnCount() (int, error)

	// DanglingCalls returns function calls with no matching output yet.
	DanglingCalls() ([]models.ConversationItem, error)

	// ReplaceOldest replaces items[0:cut] with the given summary item,
	// keeping everything from cut onward. Seq numbers are reassigned.
	ReplaceOldest(summary models.ConversationItem, cut int) error

	// PruneOldToolOutputs truncates tool outputs older than the most recent
	// keepRecent outputs down to maxBytes each. Returns how many outputs
	// were truncated.
	PruneOldToolOutputs(keepRecent, maxBytes int) (int, error)
}
