package approvalpolicy

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"steward/internal/command_safety"
)

// Manager holds a parsed policy and answers approval questions about shell
// commands. It is safe for concurrent use.
type Manager struct {
	mu     sync.RWMutex
	policy *Policy
}

// NewManager wraps a pre-built policy.
func NewManager(policy *Policy) *Manager {
	return &Manager{policy: policy}
}

// LoadDir reads every *.rules file under {home}/rules and merges them.
// A missing rules directory yields an empty policy, not an error.
func LoadDir(home string) (*Manager, error) {
	rulesDir := filepath.Join(home, "rules")

	entries, err := os.ReadDir(rulesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return NewManager(NewPolicy()), nil
		}
		return nil, err
	}

	merged := NewPolicy()
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".rules") {
			continue
		}
		path := filepath.Join(rulesDir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		p, err := ParseRules(path, string(data))
		if err != nil {
			return nil, err
		}
		merged.Merge(p)
	}
	return NewManager(merged), nil
}

// ReadRulesSource concatenates every *.rules file under {home}/rules as
// raw text, so the source can be carried into a workflow and parsed there
// deterministically. Unreadable files are skipped.
func ReadRulesSource(home string) string {
	rulesDir := filepath.Join(home, "rules")
	entries, err := os.ReadDir(rulesDir)
	if err != nil {
		return ""
	}

	var parts []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".rules") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(rulesDir, entry.Name()))
		if err != nil {
			continue
		}
		parts = append(parts, string(data))
	}
	return strings.Join(parts, "\n")
}

// LoadSource parses inline rules text, as carried in the session
// configuration. Empty source yields an empty policy.
func LoadSource(source string) (*Manager, error) {
	if source == "" {
		return NewManager(NewPolicy()), nil
	}
	p, err := ParseRules("session-rules", source)
	if err != nil {
		return nil, err
	}
	return NewManager(p), nil
}

// Evaluate checks a command against the policy. Shell wrappers like
// `bash -lc "a && b"` are decomposed so each component is judged on its
// own; if decomposition fails the whole argv is judged as one unit.
//
// When no rule matches, the conservative read-only heuristic decides:
// provably safe commands are allowed, everything else prompts.
func (m *Manager) Evaluate(cmd []string) Evaluation {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sub := command_safety.SplitShellScript(cmd)
	if sub == nil {
		sub = [][]string{cmd}
	}
	return m.policy.CheckAll(sub, heuristicFallback)
}

func heuristicFallback(cmd []string) Decision {
	if command_safety.IsKnownSafeCommand(cmd) {
		return DecisionAllow
	}
	return DecisionPrompt
}

// AppendAllowRule persists an allow rule for the given command prefix to
// {home}/rules/default.rules and reloads the policy. Duplicate lines are
// skipped.
func (m *Manager) AppendAllowRule(home string, prefix []string) error {
	if len(prefix) == 0 {
		return fmt.Errorf("prefix must not be empty")
	}

	rulesFile := filepath.Join(home, "rules", "default.rules")
	if err := os.MkdirAll(filepath.Dir(rulesFile), 0o755); err != nil {
		return err
	}

	line := allowRuleLine(prefix)
	existing, err := os.ReadFile(rulesFile)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	if !strings.Contains(string(existing), line) {
		f, err := os.OpenFile(rulesFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		defer f.Close()
		if len(existing) > 0 && existing[len(existing)-1] != '\n' {
			if _, err := f.WriteString("\n"); err != nil {
				return err
			}
		}
		if _, err := f.WriteString(line + "\n"); err != nil {
			return err
		}
	}

	reloaded, err := LoadDir(home)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.policy = reloaded.policy
	m.mu.Unlock()
	return nil
}

func allowRuleLine(prefix []string) string {
	quoted := make([]string, len(prefix))
	for i, p := range prefix {
		quoted[i] = fmt.Sprintf("%q", p)
	}
	return fmt.Sprintf("prefix_rule(pattern=[%s], decision=\"allow\")", strings.Join(quoted, ", "))
}
