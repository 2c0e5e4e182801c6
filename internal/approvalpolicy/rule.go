package approvalpolicy

// patternToken matches one argv position: either an exact string or any of
// a set of alternatives.
type patternToken struct {
	single string
	alts   []string
}

func (t patternToken) matches(s string) bool {
	if t.alts == nil {
		return t.single == s
	}
	for _, a := range t.alts {
		if a == s {
			return true
		}
	}
	return false
}

// PrefixRule matches a command whose leading argv tokens satisfy the
// pattern, and carries the decision to apply when it does.
type PrefixRule struct {
	pattern       []patternToken
	Decision      Decision
	Justification string
}

// Matches reports whether the rule's pattern is a prefix of cmd.
func (r *PrefixRule) Matches(cmd []string) bool {
	if len(cmd) < len(r.pattern) {
		return false
	}
	for i, tok := range r.pattern {
		if !tok.matches(cmd[i]) {
			return false
		}
	}
	return true
}

// programName returns the literal first token, or "" when the first token
// is an alternative set and the rule cannot be indexed by program.
func (r *PrefixRule) programName() string {
	if len(r.pattern) == 0 || r.pattern[0].alts != nil {
		return ""
	}
	return r.pattern[0].single
}
