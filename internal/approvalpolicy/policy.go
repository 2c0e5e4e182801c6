package approvalpolicy

// Evaluation is the result of checking one or more commands against a
// policy.
type Evaluation struct {
	Decision      Decision
	Justification string
	// RuleMatched is false when no rule applied and the fallback decided.
	RuleMatched bool
}

// Policy is a set of prefix rules indexed by program name. Rules whose
// first pattern token is an alternative set live under the empty key.
type Policy struct {
	byProgram map[string][]*PrefixRule
}

// NewPolicy returns an empty policy.
func NewPolicy() *Policy {
	return &Policy{byProgram: make(map[string][]*PrefixRule)}
}

// Add indexes a rule for lookup.
func (p *Policy) Add(r *PrefixRule) {
	name := r.programName()
	p.byProgram[name] = append(p.byProgram[name], r)
}

// Merge adds every rule from other into p.
func (p *Policy) Merge(other *Policy) {
	for name, rules := range other.byProgram {
		p.byProgram[name] = append(p.byProgram[name], rules...)
	}
}

// RuleCount returns the number of rules in the policy.
func (p *Policy) RuleCount() int {
	n := 0
	for _, rules := range p.byProgram {
		n += len(rules)
	}
	return n
}

// Check evaluates a single command. When no rule matches, fallback decides;
// a nil fallback defaults to prompt.
func (p *Policy) Check(cmd []string, fallback func([]string) Decision) Evaluation {
	if len(cmd) == 0 {
		return Evaluation{Decision: fallbackDecision(fallback, cmd)}
	}

	matched := false
	verdict := DecisionAllow
	justification := ""

	for _, key := range []string{cmd[0], ""} {
		for _, r := range p.byProgram[key] {
			if !r.Matches(cmd) {
				continue
			}
			matched = true
			if r.Decision >= verdict {
				verdict = r.Decision
				justification = r.Justification
			}
		}
	}

	if !matched {
		return Evaluation{Decision: fallbackDecision(fallback, cmd)}
	}
	return Evaluation{Decision: verdict, Justification: justification, RuleMatched: true}
}

// CheckAll evaluates every command from a decomposed shell script and
// returns the most severe verdict.
func (p *Policy) CheckAll(cmds [][]string, fallback func([]string) Decision) Evaluation {
	if len(cmds) == 0 {
		return Evaluation{Decision: fallbackDecision(fallback, nil)}
	}

	aggregate := Evaluation{Decision: DecisionAllow}
	for _, cmd := range cmds {
		eval := p.Check(cmd, fallback)
		if eval.RuleMatched {
			aggregate.RuleMatched = true
		}
		if eval.Decision > aggregate.Decision {
			aggregate.Decision = eval.Decision
			aggregate.Justification = eval.Justification
		}
	}
	return aggregate
}

func fallbackDecision(fallback func([]string) Decision, cmd []string) Decision {
	if fallback == nil {
		return DecisionPrompt
	}
	return fallback(cmd)
}
