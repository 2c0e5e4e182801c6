package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"steward/internal/models"
)

func TestKeywordOverlap(t *testing.T) {
	assert.Equal(t, 1.0, keywordOverlap(
		"deploy the staging cluster",
		"deploy the staging cluster"))

	assert.Equal(t, 0.0, keywordOverlap(
		"summarize quarterly revenue numbers",
		"restart the postgres container"))

	// Short filler words are not significant.
	assert.Equal(t, 1.0, keywordOverlap("fix it now and here", "anything"))

	// Punctuation and case do not count as differences.
	assert.Equal(t, 1.0, keywordOverlap("Check DISK usage!", "check disk usage"))

	overlap := keywordOverlap(
		"check disk usage on staging",
		"check memory usage on production")
	assert.Greater(t, overlap, 0.0)
	assert.Less(t, overlap, 1.0)
}

func plainItems(n int) []models.ConversationItem {
	items := make([]models.ConversationItem, n)
	for i := range items {
		items[i] = models.ConversationItem{Type: models.ItemTypeAssistantMessage, Content: "x"}
	}
	return items
}

func TestCompactionCutSkipsSmallHistories(t *testing.T) {
	assert.Equal(t, 0, compactionCut(nil))
	assert.Equal(t, 0, compactionCut(plainItems(minItemsForCompaction-1)))
}

func TestCompactionCutTakesOlderHalf(t *testing.T) {
	assert.Equal(t, 4, compactionCut(plainItems(8)))
}

func TestCompactionCutNeverSplitsCallFromOutput(t *testing.T) {
	items := plainItems(8)
	items[3].Type = models.ItemTypeFunctionCall
	items[4].Type = models.ItemTypeFunctionCallOutput
	items[5].Type = models.ItemTypeFunctionCallOutput

	// The midpoint lands inside the outputs; the cut advances past them.
	assert.Equal(t, 6, compactionCut(items))
}

func TestCompactionCutAlwaysLeavesTheNewestItem(t *testing.T) {
	items := plainItems(6)
	for i := 3; i < 6; i++ {
		items[i].Type = models.ItemTypeFunctionCallOutput
	}
	assert.Equal(t, 5, compactionCut(items))
}
