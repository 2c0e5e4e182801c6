package memory

import (
	"sort"
	"strings"
	"unicode"
)

// MinOverlap is the smallest keyword overlap for a note to be recalled.
const MinOverlap = 2

// DefaultRecallLimit bounds how many notes one recall returns.
const DefaultRecallLimit = 5

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true,
	"of": true, "to": true, "in": true, "on": true, "for": true,
	"is": true, "are": true, "was": true, "be": true, "it": true,
	"that": true, "this": true, "with": true, "as": true, "at": true,
	"my": true, "me": true, "i": true, "you": true, "your": true,
	"do": true, "does": true, "can": true, "what": true, "how": true,
	"please": true,
}

// Keywords tokenizes text into lowercase terms, dropping stopwords and
// one-character tokens.
func Keywords(text string) map[string]bool {
	terms := make(map[string]bool)
	var b strings.Builder
	flush := func() {
		if b.Len() > 1 {
			term := b.String()
			if !stopwords[term] {
				terms[term] = true
			}
		}
		b.Reset()
	}
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return terms
}

// Overlap counts terms present in both sets.
func Overlap(a, b map[string]bool) int {
	if len(b) < len(a) {
		a, b = b, a
	}
	n := 0
	for term := range a {
		if b[term] {
			n++
		}
	}
	return n
}

// Recall scores every note by keyword overlap with the query and returns
// up to limit notes meeting MinOverlap, best first.
func Recall(notes []Note, query string, limit int) []Note {
	if limit <= 0 {
		limit = DefaultRecallLimit
	}
	queryTerms := Keywords(query)
	if len(queryTerms) == 0 {
		return nil
	}

	type scored struct {
		note  Note
		score int
	}
	var candidates []scored
	for _, note := range notes {
		score := Overlap(queryTerms, Keywords(note.Title+" "+note.Content))
		if score >= MinOverlap {
			candidates = append(candidates, scored{note: note, score: score})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	out := make([]Note, len(candidates))
	for i, c := range candidates {
		out[i] = c.note
	}
	return out
}
