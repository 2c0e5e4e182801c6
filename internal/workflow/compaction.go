// compaction.go implements sliding-window compaction: a summarization call
// rewrites the oldest contiguous block of the conversation into one
// compaction summary that replaces it in place.
package workflow

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"steward/internal/activities"
	"steward/internal/models"
)

// minItemsForCompaction is the history size below which compaction is a
// no-op. Makes an immediate re-trigger after a compaction harmless.
const minItemsForCompaction = 6

// performCompaction summarizes the oldest contiguous block of history and
// replaces it with a single summary item. Order afterward is [summary,
// untouched recent items]. Safe to call again immediately; a history too
// small to compact is left unchanged.
func (s *SessionState) performCompaction(ctx workflow.Context, ctrl *LoopControl) error {
	logger := workflow.GetLogger(ctx)

	items, err := s.History.GetRawItems()
	if err != nil {
		return err
	}
	cut := compactionCut(items)
	if cut <= 1 {
		logger.Info("History too small to compact, skipping", "items", len(items))
		return nil
	}

	prevPhase := ctrl.Phase()
	ctrl.SetPhase(PhaseCompacting)
	defer ctrl.SetPhase(prevPhase)

	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 3 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    2,
		},
	}
	compactCtx := workflow.WithActivityOptions(ctx, actOpts)

	var result activities.CompactActivityOutput
	err = workflow.ExecuteActivity(compactCtx, "ExecuteCompact", activities.CompactActivityInput{
		ModelConfig: s.Config.Model,
		Input:       items[:cut],
	}).Get(ctx, &result)
	if err != nil {
		logger.Warn("Compaction activity failed", "error", err)
		return err
	}

	summary := models.ConversationItem{
		Type:    models.ItemTypeCompactionSummary,
		Content: result.Summary,
	}
	if err := s.History.ReplaceOldest(summary, cut); err != nil {
		logger.Error("Failed to replace history after compaction", "error", err)
		return err
	}

	s.CompactionCount++
	s.TotalTokens += result.TokenUsage.TotalTokens
	s.TotalCachedTokens += result.TokenUsage.CachedTokens
	ctrl.NotifyItemAdded()

	logger.Info("Context compaction completed",
		"compaction_count", s.CompactionCount,
		"compacted_items", cut,
		"compaction_tokens", result.TokenUsage.TotalTokens)
	return nil
}

// compactionCut picks the boundary of the oldest contiguous block: roughly
// the older half, advanced so a function call is never separated from its
// output. Returns 0 when the history is too small.
func compactionCut(items []models.ConversationItem) int {
	if len(items) < minItemsForCompaction {
		return 0
	}
	cut := len(items) / 2
	for cut < len(items) && items[cut].Type == models.ItemTypeFunctionCallOutput {
		cut++
	}
	if cut >= len(items) {
		cut = len(items) - 1
	}
	return cut
}
