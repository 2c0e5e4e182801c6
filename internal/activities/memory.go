package activities

import (
	"context"

	"steward/internal/memory"
)

// MemoryActivities reads the durable note store on the worker.
type MemoryActivities struct {
	store *memory.Store
}

// NewMemoryActivities creates a MemoryActivities instance.
func NewMemoryActivities(store *memory.Store) *MemoryActivities {
	return &MemoryActivities{store: store}
}

// SearchNotesInput is the input for SearchNotes.
type SearchNotesInput struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

// RecalledNote is one note relevant to the query.
type RecalledNote struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// SearchNotesOutput carries the recalled notes, best match first.
type SearchNotesOutput struct {
	Notes []RecalledNote `json:"notes,omitempty"`
}

// SearchNotes recalls saved notes whose keywords overlap the query.
// An empty store or no overlap yields an empty result, not an error.
func (a *MemoryActivities) SearchNotes(_ context.Context, input SearchNotesInput) (SearchNotesOutput, error) {
	notes, err := a.store.List()
	if err != nil {
		return SearchNotesOutput{}, err
	}

	limit := input.Limit
	if limit <= 0 {
		limit = memory.DefaultRecallLimit
	}

	var output SearchNotesOutput
	for _, note := range memory.Recall(notes, input.Query, limit) {
		output.Notes = append(output.Notes, RecalledNote{
			Title:   note.Title,
			Content: note.Content,
		})
	}
	return output, nil
}
