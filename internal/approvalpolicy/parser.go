package approvalpolicy

import (
	"fmt"

	"go.starlark.net/starlark"
)

// ParseRules executes a Starlark rules source in an environment where the
// prefix_rule builtin is predeclared and collects the rules it registers.
//
// A rules file looks like:
//
//	prefix_rule(pattern=["git", "push"], decision="prompt")
//	prefix_rule(pattern=["rm", ["-rf", "-fr"]], decision="forbid",
//	            justification="recursive delete")
func ParseRules(filename, source string) (*Policy, error) {
	policy := NewPolicy()

	prefixRule := starlark.NewBuiltin("prefix_rule", func(
		thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple,
	) (starlark.Value, error) {
		var (
			patternVal    *starlark.List
			decisionStr   string
			justification string
		)
		if err := starlark.UnpackArgs(fn.Name(), args, kwargs,
			"pattern", &patternVal,
			"decision?", &decisionStr,
			"justification?", &justification,
		); err != nil {
			return nil, err
		}

		if decisionStr == "" {
			decisionStr = "allow"
		}
		decision, err := ParseDecision(decisionStr)
		if err != nil {
			return nil, err
		}

		pattern, err := patternFromStarlark(patternVal)
		if err != nil {
			return nil, err
		}
		if len(pattern) == 0 {
			return nil, fmt.Errorf("prefix_rule pattern must not be empty")
		}

		policy.Add(&PrefixRule{
			pattern:       pattern,
			Decision:      decision,
			Justification: justification,
		})
		return starlark.None, nil
	})

	thread := &starlark.Thread{Name: filename}
	predeclared := starlark.StringDict{"prefix_rule": prefixRule}

	if _, err := starlark.ExecFile(thread, filename, source, predeclared); err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return policy, nil
}

// patternFromStarlark converts a Starlark list into pattern tokens. Each
// element is a string or a non-empty list of strings (alternatives).
func patternFromStarlark(list *starlark.List) ([]patternToken, error) {
	pattern := make([]patternToken, 0, list.Len())

	iter := list.Iterate()
	defer iter.Done()
	var val starlark.Value
	for iter.Next(&val) {
		switch v := val.(type) {
		case starlark.String:
			if v == "" {
				return nil, fmt.Errorf("pattern token must not be empty")
			}
			pattern = append(pattern, patternToken{single: string(v)})
		case *starlark.List:
			alts, err := stringsFromStarlark(v)
			if err != nil {
				return nil, err
			}
			if len(alts) == 0 {
				return nil, fmt.Errorf("alternative list must not be empty")
			}
			pattern = append(pattern, patternToken{alts: alts})
		default:
			return nil, fmt.Errorf("pattern element must be a string or list of strings, got %s", val.Type())
		}
	}
	return pattern, nil
}

func stringsFromStarlark(list *starlark.List) ([]string, error) {
	out := make([]string, 0, list.Len())
	iter := list.Iterate()
	defer iter.Done()
	var val starlark.Value
	for iter.Next(&val) {
		s, ok := val.(starlark.String)
		if !ok {
			return nil, fmt.Errorf("alternative must be a string, got %s", val.Type())
		}
		if s == "" {
			return nil, fmt.Errorf("alternative must not be empty")
		}
		out = append(out, string(s))
	}
	return out, nil
}
