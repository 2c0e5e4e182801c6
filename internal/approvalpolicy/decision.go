// Package approvalpolicy evaluates tool invocations against user-authored
// Starlark rules. Rules classify shell commands as allow, prompt, or forbid;
// the approval gate consults the verdict before dispatching a command.
package approvalpolicy

import (
	"fmt"
	"strings"
)

// Decision is the verdict a rule assigns to a matching command. Decisions
// are ordered by severity; when several rules match, the most severe wins.
type Decision int

const (
	// DecisionAllow lets the command run without asking the user.
	DecisionAllow Decision = iota
	// DecisionPrompt requires explicit user approval.
	DecisionPrompt
	// DecisionForbid blocks the command outright.
	DecisionForbid
)

func (d Decision) String() string {
	switch d {
	case DecisionAllow:
		return "allow"
	case DecisionPrompt:
		return "prompt"
	case DecisionForbid:
		return "forbid"
	default:
		return fmt.Sprintf("Decision(%d)", int(d))
	}
}

// ParseDecision parses a decision keyword, case-insensitively.
// "forbidden" is accepted as an alias for "forbid".
func ParseDecision(s string) (Decision, error) {
	switch strings.ToLower(s) {
	case "allow":
		return DecisionAllow, nil
	case "prompt":
		return DecisionPrompt, nil
	case "forbid", "forbidden":
		return DecisionForbid, nil
	default:
		return DecisionPrompt, fmt.Errorf("invalid decision %q: must be allow, prompt, or forbid", s)
	}
}
