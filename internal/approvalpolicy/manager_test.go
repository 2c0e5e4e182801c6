package approvalpolicy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerEvaluateDecomposesShellScript(t *testing.T) {
	m, err := LoadSource(`prefix_rule(pattern=["rm"], decision="forbid")`)
	require.NoError(t, err)

	// One forbidden component poisons the script.
	eval := m.Evaluate([]string{"bash", "-c", "ls && rm -rf /tmp/x"})
	assert.Equal(t, DecisionForbid, eval.Decision)

	// All components safe or allowed.
	eval = m.Evaluate([]string{"bash", "-c", "ls && pwd"})
	assert.Equal(t, DecisionAllow, eval.Decision)
}

func TestManagerHeuristicFallback(t *testing.T) {
	m, err := LoadSource("")
	require.NoError(t, err)

	assert.Equal(t, DecisionAllow, m.Evaluate([]string{"ls", "-la"}).Decision)
	assert.Equal(t, DecisionPrompt, m.Evaluate([]string{"curl", "http://x"}).Decision)

	// Undecomposable scripts are judged whole and fall back to prompt.
	assert.Equal(t, DecisionPrompt, m.Evaluate([]string{"bash", "-c", "ls > out"}).Decision)
}

func TestManagerRuleOverridesHeuristic(t *testing.T) {
	m, err := LoadSource(`prefix_rule(pattern=["ls"], decision="prompt")`)
	require.NoError(t, err)

	assert.Equal(t, DecisionPrompt, m.Evaluate([]string{"ls"}).Decision)
}

func TestLoadDirMissingIsEmpty(t *testing.T) {
	m, err := LoadDir(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 0, m.policy.RuleCount())
}

func TestLoadDirMergesRuleFiles(t *testing.T) {
	home := t.TempDir()
	rulesDir := filepath.Join(home, "rules")
	require.NoError(t, os.MkdirAll(rulesDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(rulesDir, "a.rules"),
		[]byte(`prefix_rule(pattern=["docker"], decision="prompt")`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(rulesDir, "b.rules"),
		[]byte(`prefix_rule(pattern=["kubectl", "delete"], decision="forbid")`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(rulesDir, "ignored.txt"),
		[]byte(`garbage`), 0o644))

	m, err := LoadDir(home)
	require.NoError(t, err)
	assert.Equal(t, 2, m.policy.RuleCount())
	assert.Equal(t, DecisionForbid, m.Evaluate([]string{"kubectl", "delete", "pod", "x"}).Decision)
}

func TestAppendAllowRule(t *testing.T) {
	home := t.TempDir()
	m, err := LoadDir(home)
	require.NoError(t, err)

	assert.Equal(t, DecisionPrompt, m.Evaluate([]string{"terraform", "plan"}).Decision)

	require.NoError(t, m.AppendAllowRule(home, []string{"terraform", "plan"}))
	assert.Equal(t, DecisionAllow, m.Evaluate([]string{"terraform", "plan"}).Decision)

	// Appending the same prefix twice does not duplicate the rule.
	require.NoError(t, m.AppendAllowRule(home, []string{"terraform", "plan"}))
	data, err := os.ReadFile(filepath.Join(home, "rules", "default.rules"))
	require.NoError(t, err)
	assert.Equal(t, 1, countOccurrences(string(data), "terraform"))
}

func countOccurrences(s, sub string) int {
	n := 0
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			n++
		}
	}
	return n
}
