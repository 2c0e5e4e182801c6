package history

import (
	"fmt"
	"strings"
	"sync"

	"steward/internal/models"
)

// truncationMarker is appended to pruned tool outputs. Its presence marks
// an output as already pruned.
const truncationMarker = "\n[output truncated by history governor]"

// InMemoryHistory is the in-process implementation of ContextManager.
// Conversation state lives only for the session's lifetime; nothing is
// persisted between process runs.
type InMemoryHistory struct {
	items []models.ConversationItem
	mu    sync.RWMutex
}

// NewInMemoryHistory creates an empty history.
func NewInMemoryHistory() *InMemoryHistory {
	return &InMemoryHistory{items: make([]models.ConversationItem, 0)}
}

// AddItem appends a new conversation item, assigning a monotonically
// increasing Seq number.
func (h *InMemoryHistory) AddItem(item models.ConversationItem) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	item.Seq = len(h.items)
	h.items = append(h.items, item)
	return nil
}

// GetForPrompt returns the items to send to the model.
func (h *InMemoryHistory) GetForPrompt() ([]models.ConversationItem, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	result := make([]models.ConversationItem, len(h.items))
	copy(result, h.items)
	return result, nil
}

// EstimateTokenCount estimates tokens with a 4-characters-per-token
// heuristic. Cheap and deliberately rough; only the compaction trigger
// consumes it.
func (h *InMemoryHistory) EstimateTokenCount() (int, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	totalChars := 0
	for _, item := range h.items {
		totalChars += len(item.Content)
		totalChars += len(item.Name)
		totalChars += len(item.Arguments)
		if item.Output != nil {
			totalChars += len(item.Output.Content)
		}
	}
	return totalChars / 4, nil
}

// GetRawItems returns a copy of all items.
func (h *InMemoryHistory) GetRawItems() ([]models.ConversationItem, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	result := make([]models.ConversationItem, len(h.items))
	copy(result, h.items)
	return result, nil
}

// GetItemsSince returns items with Seq > sinceSeq. If sinceSeq is beyond the
// current range, compaction has reset the sequence space; all items are
// returned with compacted=true so the caller can re-sync.
func (h *InMemoryHistory) GetItemsSince(sinceSeq int) ([]models.ConversationItem, bool, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if sinceSeq >= len(h.items) {
		result := make([]models.ConversationItem, len(h.items))
		copy(result, h.items)
		return result, true, nil
	}

	startIdx := sinceSeq + 1
	if startIdx < 0 {
		startIdx = 0
	}
	result := make([]models.ConversationItem, len(h.items)-startIdx)
	copy(result, h.items[startIdx:])
	return result, false, nil
}

// GetLatestSeq returns the Seq of the most recent item, or -1 if empty.
func (h *InMemoryHistory) GetLatestSeq() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.items) == 0 {
		return -1
	}
	return len(h.items) - 1
}

// GetTurnCount returns the number of user messages.
func (h *InMemoryHistory) GetTurnCount() (int, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	count := 0
	for _, item := range h.items {
		if item.Type == models.ItemTypeUserMessage {
			count++
		}
	}
	return count, nil
}

// DanglingCalls returns function calls that have no matching output item.
// A non-empty result means the sequence is malformed for the next model
// request until synthetic results close the calls.
func (h *InMemoryHistory) DanglingCalls() ([]models.ConversationItem, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	answered := make(map[string]bool)
	for _, item := range h.items {
		if item.Type == models.ItemTypeFunctionCallOutput {
			answered[item.CallID] = true
		}
	}

	var dangling []models.ConversationItem
	for _, item := range h.items {
		if item.Type == models.ItemTypeFunctionCall && !answered[item.CallID] {
			dangling = append(dangling, item)
		}
	}
	return dangling, nil
}

// ReplaceOldest replaces items[0:cut] with the summary item. Seq numbers
// are reassigned from zero. cut<=0 is a no-op.
func (h *InMemoryHistory) ReplaceOldest(summary models.ConversationItem, cut int) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if cut <= 0 {
		return nil
	}
	if cut > len(h.items) {
		return fmt.Errorf("cut %d exceeds history length %d", cut, len(h.items))
	}

	newItems := make([]models.ConversationItem, 0, 1+len(h.items)-cut)
	newItems = append(newItems, summary)
	newItems = append(newItems, h.items[cut:]...)
	for i := range newItems {
		newItems[i].Seq = i
	}
	h.items = newItems
	return nil
}

// PruneOldToolOutputs truncates tool outputs other than the most recent
// keepRecent down to maxBytes each. Already-truncated outputs are skipped,
// so repeated pruning is idempotent.
func (h *InMemoryHistory) PruneOldToolOutputs(keepRecent, maxBytes int) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// Collect output indices, newest last.
	var outputIdx []int
	for i, item := range h.items {
		if item.Type == models.ItemTypeFunctionCallOutput && item.Output != nil {
			outputIdx = append(outputIdx, i)
		}
	}
	if len(outputIdx) <= keepRecent {
		return 0, nil
	}

	pruned := 0
	for _, i := range outputIdx[:len(outputIdx)-keepRecent] {
		out := h.items[i].Output
		if len(out.Content) <= maxBytes || strings.HasSuffix(out.Content, truncationMarker) {
			continue
		}
		truncated := *out
		truncated.Content = out.Content[:maxBytes] + truncationMarker
		h.items[i].Output = &truncated
		pruned++
	}
	return pruned, nil
}
