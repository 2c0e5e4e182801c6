package approvalpolicy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRulesAllow(t *testing.T) {
	p, err := ParseRules("test.rules", `prefix_rule(pattern=["echo"], decision="allow")`)
	require.NoError(t, err)

	eval := p.Check([]string{"echo", "hi"}, nil)
	assert.Equal(t, DecisionAllow, eval.Decision)
	assert.True(t, eval.RuleMatched)
}

func TestParseRulesDefaultDecisionIsAllow(t *testing.T) {
	p, err := ParseRules("test.rules", `prefix_rule(pattern=["date"])`)
	require.NoError(t, err)

	eval := p.Check([]string{"date"}, nil)
	assert.Equal(t, DecisionAllow, eval.Decision)
}

func TestParseRulesForbid(t *testing.T) {
	p, err := ParseRules("test.rules", `prefix_rule(pattern=["git", "reset"], decision="forbid")`)
	require.NoError(t, err)

	eval := p.Check([]string{"git", "reset", "--hard"}, nil)
	assert.Equal(t, DecisionForbid, eval.Decision)
}

func TestParseRulesForbiddenAlias(t *testing.T) {
	p, err := ParseRules("test.rules", `prefix_rule(pattern=["shutdown"], decision="forbidden")`)
	require.NoError(t, err)

	eval := p.Check([]string{"shutdown", "now"}, nil)
	assert.Equal(t, DecisionForbid, eval.Decision)
}

func TestParseRulesAlternatives(t *testing.T) {
	p, err := ParseRules("test.rules", `prefix_rule(pattern=["npm", ["install", "ci"]], decision="prompt")`)
	require.NoError(t, err)

	assert.Equal(t, DecisionPrompt, p.Check([]string{"npm", "install"}, nil).Decision)
	assert.Equal(t, DecisionPrompt, p.Check([]string{"npm", "ci"}, nil).Decision)
	assert.False(t, p.Check([]string{"npm", "run"}, nil).RuleMatched)
}

func TestParseRulesRejectsBadInput(t *testing.T) {
	bad := []string{
		`prefix_rule(pattern=[], decision="allow")`,
		`prefix_rule(pattern=["x"], decision="maybe")`,
		`prefix_rule(pattern=[42])`,
		`prefix_rule(pattern=["x", []])`,
		`not valid starlark ((`,
	}
	for _, source := range bad {
		_, err := ParseRules("test.rules", source)
		assert.Error(t, err, "expected error for %q", source)
	}
}

func TestCheckMostSevereWins(t *testing.T) {
	source := `
prefix_rule(pattern=["git"], decision="allow")
prefix_rule(pattern=["git", "push"], decision="prompt", justification="remote write")
`
	p, err := ParseRules("test.rules", source)
	require.NoError(t, err)

	eval := p.Check([]string{"git", "push", "origin"}, nil)
	assert.Equal(t, DecisionPrompt, eval.Decision)
	assert.Equal(t, "remote write", eval.Justification)

	eval = p.Check([]string{"git", "status"}, nil)
	assert.Equal(t, DecisionAllow, eval.Decision)
}

func TestCheckFallbackWhenNoRuleMatches(t *testing.T) {
	p := NewPolicy()

	eval := p.Check([]string{"anything"}, nil)
	assert.Equal(t, DecisionPrompt, eval.Decision)
	assert.False(t, eval.RuleMatched)

	eval = p.Check([]string{"anything"}, func([]string) Decision { return DecisionAllow })
	assert.Equal(t, DecisionAllow, eval.Decision)
}

func TestCheckAllAggregates(t *testing.T) {
	source := `
prefix_rule(pattern=["ls"], decision="allow")
prefix_rule(pattern=["rm"], decision="forbid")
`
	p, err := ParseRules("test.rules", source)
	require.NoError(t, err)

	eval := p.CheckAll([][]string{{"ls"}, {"rm", "-rf", "/"}}, nil)
	assert.Equal(t, DecisionForbid, eval.Decision)
}

func TestMerge(t *testing.T) {
	a, err := ParseRules("a.rules", `prefix_rule(pattern=["ls"])`)
	require.NoError(t, err)
	b, err := ParseRules("b.rules", `prefix_rule(pattern=["pwd"])`)
	require.NoError(t, err)

	a.Merge(b)
	assert.Equal(t, 2, a.RuleCount())
	assert.True(t, a.Check([]string{"pwd"}, nil).RuleMatched)
}
