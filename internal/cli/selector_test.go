package cli

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
)

func testSelectorOptions() []SelectorOption {
	return []SelectorOption{
		{Label: "Yes, allow", Shortcut: "y", ShortcutKey: 'y'},
		{Label: "Yes, for the rest of this session", Shortcut: "a", ShortcutKey: 'a'},
		{Label: "No, deny with a reason...", Shortcut: "n", ShortcutKey: 'n'},
	}
}

func newTestSelector() *SelectorModel {
	return NewSelectorModel(testSelectorOptions(), NoColorStyles())
}

func TestSelector_InitialState(t *testing.T) {
	s := newTestSelector()
	assert.Equal(t, 0, s.Selected())
	assert.False(t, s.Confirmed())
	assert.False(t, s.Cancelled())
	assert.Equal(t, 3, s.Height())
}

func TestSelector_Navigation(t *testing.T) {
	s := newTestSelector()

	done := s.Update(tea.KeyMsg{Type: tea.KeyDown})
	assert.False(t, done)
	assert.Equal(t, 1, s.Selected())

	s.Update(tea.KeyMsg{Type: tea.KeyDown})
	s.Update(tea.KeyMsg{Type: tea.KeyDown}) // wraps
	assert.Equal(t, 0, s.Selected())

	s.Update(tea.KeyMsg{Type: tea.KeyUp}) // wraps backwards
	assert.Equal(t, 2, s.Selected())
}

func TestSelector_JKNavigation(t *testing.T) {
	s := newTestSelector()

	s.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'j'}})
	assert.Equal(t, 1, s.Selected())

	s.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'k'}})
	assert.Equal(t, 0, s.Selected())
}

func TestSelector_EnterConfirms(t *testing.T) {
	s := newTestSelector()
	s.Update(tea.KeyMsg{Type: tea.KeyDown})

	done := s.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.True(t, done)
	assert.True(t, s.Confirmed())
	assert.Equal(t, 1, s.Selected())
}

func TestSelector_EscCancels(t *testing.T) {
	s := newTestSelector()

	done := s.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.True(t, done)
	assert.True(t, s.Cancelled())
}

func TestSelector_NumberSelectsDirectly(t *testing.T) {
	s := newTestSelector()

	done := s.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'3'}})
	assert.True(t, done)
	assert.True(t, s.Confirmed())
	assert.Equal(t, 2, s.Selected())

	// Out of range is ignored
	s2 := newTestSelector()
	done = s2.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'9'}})
	assert.False(t, done)
}

func TestSelector_ShortcutSelects(t *testing.T) {
	s := newTestSelector()

	done := s.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'n'}})
	assert.True(t, done)
	assert.True(t, s.Confirmed())
	assert.Equal(t, 2, s.Selected())
}

func TestSelector_ViewShowsAllOptions(t *testing.T) {
	s := newTestSelector()
	view := s.View()

	assert.Contains(t, view, "1. Yes, allow")
	assert.Contains(t, view, "3. No, deny with a reason...")
	assert.Contains(t, view, "(y)")
	assert.Equal(t, 2, strings.Count(view, "\n"))
}
