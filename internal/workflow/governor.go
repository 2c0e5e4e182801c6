// governor.go implements the history governor: the ordered transforms
// applied to the conversation before every model request.
package workflow

import (
	"fmt"
	"strings"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"steward/internal/activities"
	"steward/internal/models"
)

const (
	// recallDebounce is the minimum number of model requests between
	// memory recall injections.
	recallDebounce = 4

	// recallOverlapThreshold is the keyword-overlap fraction below which
	// the topic is considered to have shifted.
	recallOverlapThreshold = 0.2

	// keepRecentToolResults is how many of the newest tool outputs stay
	// untouched by pruning.
	keepRecentToolResults = 3

	// prunedToolOutputBytes is the size older tool outputs are cut to.
	prunedToolOutputBytes = 2048
)

// applyGovernorTransforms runs the governor's ordered transforms:
// memory recall, old tool-output pruning, safety-note injection, and
// threshold compaction. Called before every model request.
func (s *SessionState) applyGovernorTransforms(
	ctx workflow.Context,
	ctrl *LoopControl,
	guard *SafetyGuard,
	budget *UsageBudget,
	userMessage string,
) {
	logger := workflow.GetLogger(ctx)

	s.maybeRecallMemory(ctx, ctrl, userMessage)

	if pruned, err := s.History.PruneOldToolOutputs(keepRecentToolResults, prunedToolOutputBytes); err == nil && pruned > 0 {
		logger.Info("Pruned old tool outputs", "count", pruned)
		ctrl.NotifyItemAdded()
	}

	if note, ok := guard.PendingNote(); ok {
		_ = s.History.AddItem(models.ConversationItem{
			Type:    models.ItemTypeSystemNote,
			Content: note,
			TurnID:  ctrl.CurrentTurnID(),
		})
		ctrl.NotifyItemAdded()
	}

	if s.overCompactThreshold() {
		// Summarization is a model request; it draws from the same budget.
		if !budget.Charge() {
			logger.Warn("Compaction needed but budget exhausted, skipping")
			return
		}
		ctrl.SetBudgetRemaining(budget.Remaining())
		if err := s.performCompaction(ctx, ctrl); err != nil {
			logger.Warn("Threshold compaction failed, continuing without", "error", err)
		}
	}
}

// overCompactThreshold reports whether the estimated context size exceeds
// the configured fraction of the model's context window.
func (s *SessionState) overCompactThreshold() bool {
	estimated, err := s.History.EstimateTokenCount()
	if err != nil {
		return false
	}
	return float64(estimated) >= s.Config.CompactFraction*float64(s.Config.Model.ContextWindow)
}

// maybeRecallMemory injects relevant long-term notes as a system note. It
// fires on the first model request of the session and again when the
// topic shifts, debounced so recall never runs more than once per
// recallDebounce requests.
func (s *SessionState) maybeRecallMemory(ctx workflow.Context, ctrl *LoopControl, userMessage string) {
	defer func() { s.RequestsSinceRecall++ }()

	if s.Depth > 0 || userMessage == "" {
		return
	}
	if s.LastRecallQuery != "" {
		if s.RequestsSinceRecall < recallDebounce {
			return
		}
		if keywordOverlap(userMessage, s.LastRecallQuery) >= recallOverlapThreshold {
			return
		}
	}

	logger := workflow.GetLogger(ctx)

	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 15 * time.Second,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 2},
	}
	if s.Config.SessionTaskQueue != "" {
		actOpts.TaskQueue = s.Config.SessionTaskQueue
	}
	recallCtx := workflow.WithActivityOptions(ctx, actOpts)

	var result activities.SearchNotesOutput
	err := workflow.ExecuteActivity(recallCtx, "SearchNotes", activities.SearchNotesInput{
		Query: userMessage,
	}).Get(ctx, &result)
	if err != nil {
		logger.Warn("Memory recall failed, continuing without", "error", err)
		return
	}

	s.LastRecallQuery = userMessage
	s.RequestsSinceRecall = 0

	if len(result.Notes) == 0 {
		return
	}

	var b strings.Builder
	b.WriteString("Relevant notes from long-term memory:\n")
	for _, note := range result.Notes {
		fmt.Fprintf(&b, "- %s: %s\n", note.Title, note.Content)
	}
	_ = s.History.AddItem(models.ConversationItem{
		Type:    models.ItemTypeSystemNote,
		Content: b.String(),
		TurnID:  ctrl.CurrentTurnID(),
	})
	ctrl.NotifyItemAdded()
	logger.Info("Injected recalled notes", "count", len(result.Notes))
}

// keywordOverlap is the cheap topical-overlap heuristic: the fraction of
// the current message's significant words that also appear in the previous
// recall query. Not semantic.
func keywordOverlap(current, previous string) float64 {
	currentWords := significantWords(current)
	if len(currentWords) == 0 {
		return 1 // nothing to compare; treat as same topic
	}
	previousWords := make(map[string]bool)
	for _, w := range significantWords(previous) {
		previousWords[w] = true
	}

	shared := 0
	for _, w := range currentWords {
		if previousWords[w] {
			shared++
		}
	}
	return float64(shared) / float64(len(currentWords))
}

func significantWords(text string) []string {
	var words []string
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,!?;:\"'()[]")
		if len(w) > 3 {
			words = append(words, w)
		}
	}
	return words
}
