package workflow

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"steward/internal/models"
)

// Steering notes injected by the safety guard. System-only: the model sees
// them as orchestrator notes, never as user text.
const (
	doomLoopNote = "You have issued the same tool call with identical arguments %d times in a row. " +
		"You appear to be repeating yourself. Change your approach, or explain to the user why " +
		"repeating this exact call is necessary."

	reflectionNote = "The last %d shell commands all failed. Stop retrying shell commands. " +
		"Either ask the user for guidance or change strategy entirely."
)

// SafetyGuard detects doom loops (identical tool calls repeated) and
// reflection-cap breaches (consecutive failing shell commands). It only
// queues steering notes; it never blocks execution. Constructed fresh per
// turn, so both counters reset between turns.
type SafetyGuard struct {
	doomWindow    int
	reflectionCap int

	lastCallHash string
	runLength    int
	doomNoted    bool

	shellFailures   int
	reflectionNoted bool

	pendingNotes []string
}

// NewSafetyGuard creates a guard with the given thresholds.
func NewSafetyGuard(doomWindow, reflectionCap int) *SafetyGuard {
	return &SafetyGuard{doomWindow: doomWindow, reflectionCap: reflectionCap}
}

// Observe feeds the current batch of tool calls into the doom-loop
// detector. A streak of doomWindow identical hashes queues one steering
// note; the streak must break before another can be queued.
func (g *SafetyGuard) Observe(calls []models.ToolCall) {
	for _, call := range calls {
		hash := hashToolCall(call)
		if hash == g.lastCallHash {
			g.runLength++
		} else {
			g.lastCallHash = hash
			g.runLength = 1
			g.doomNoted = false
		}
		if g.runLength >= g.doomWindow && !g.doomNoted {
			g.pendingNotes = append(g.pendingNotes, fmt.Sprintf(doomLoopNote, g.runLength))
			g.doomNoted = true
		}
	}
}

// NoteShellResult feeds one shell command result into the reflection
// counter. A success resets the streak; reflectionCap consecutive failures
// queue one steering note for the streak.
func (g *SafetyGuard) NoteShellResult(ok bool) {
	if ok {
		g.shellFailures = 0
		g.reflectionNoted = false
		return
	}
	g.shellFailures++
	if g.shellFailures >= g.reflectionCap && !g.reflectionNoted {
		g.pendingNotes = append(g.pendingNotes, fmt.Sprintf(reflectionNote, g.shellFailures))
		g.reflectionNoted = true
	}
}

// PendingNote pops at most one queued steering note. Called once before
// each model request, so concurrent detections drain across requests
// instead of flooding a single prompt.
func (g *SafetyGuard) PendingNote() (string, bool) {
	if len(g.pendingNotes) == 0 {
		return "", false
	}
	note := g.pendingNotes[0]
	g.pendingNotes = g.pendingNotes[1:]
	return note, true
}

// hashToolCall hashes a tool call's name plus canonicalized arguments.
// json.Marshal sorts map keys at every level, so two calls with the same
// arguments in different order hash identically.
func hashToolCall(call models.ToolCall) string {
	args, err := json.Marshal(call.Arguments)
	if err != nil {
		args = []byte(fmt.Sprintf("%v", call.Arguments))
	}
	h := sha256.New()
	h.Write([]byte(call.Name))
	h.Write([]byte{0})
	h.Write(args)
	return hex.EncodeToString(h.Sum(nil))
}
