// Package command_safety vets shell commands for the approval gate's
// advisory auto-approval path. It is a convenience, not a security
// boundary: anything it cannot prove safe goes to the user.
package command_safety

import (
	"path/filepath"
	"strings"
)

// SplitShellScript parses ["bash"|"sh"|"zsh", "-c"|"-lc", script] into the
// individual plain commands joined by &&, ||, ;, or |. Returns nil when the
// invocation is not of that shape or when the script contains any construct
// the scanner cannot prove inert: redirections, subshells, substitution,
// expansion, background jobs, assignments.
func SplitShellScript(command []string) [][]string {
	script := extractScript(command)
	if script == "" {
		return nil
	}
	return (&scriptScanner{src: script}).scan()
}

func extractScript(command []string) string {
	if len(command) != 3 {
		return ""
	}
	if command[1] != "-c" && command[1] != "-lc" {
		return ""
	}
	switch filepath.Base(command[0]) {
	case "bash", "sh", "zsh":
		return command[2]
	default:
		return ""
	}
}

// scriptScanner is a single-pass scanner over a shell script that accepts
// only word-only commands. Any character it does not understand rejects the
// whole script.
type scriptScanner struct {
	src string
	pos int
}

func (p *scriptScanner) scan() [][]string {
	var commands [][]string
	var words []string
	expectCommand := false

	for p.pos < len(p.src) {
		p.skipSpace()
		if p.pos >= len(p.src) {
			break
		}

		switch ch := p.src[p.pos]; {
		case ch == '#':
			for p.pos < len(p.src) && p.src[p.pos] != '\n' {
				p.pos++
			}

		case ch == '>' || ch == '<' || ch == '(' || ch == ')' || ch == '`' || ch == '$':
			return nil

		case ch == '&':
			if p.pos+1 >= len(p.src) || p.src[p.pos+1] != '&' {
				return nil // background job
			}
			if len(words) == 0 {
				return nil
			}
			commands, words = append(commands, words), nil
			expectCommand = true
			p.pos += 2

		case ch == '|':
			if len(words) == 0 {
				return nil
			}
			commands, words = append(commands, words), nil
			expectCommand = true
			if p.pos+1 < len(p.src) && p.src[p.pos+1] == '|' {
				p.pos += 2
			} else {
				p.pos++
			}

		case ch == ';':
			if len(words) == 0 {
				return nil
			}
			commands, words = append(commands, words), nil
			expectCommand = true
			p.pos++

		default:
			word, ok := p.scanWord()
			if !ok {
				return nil
			}
			// FOO=bar prefix assignments change the environment; reject.
			if len(words) == 0 && strings.Contains(word, "=") {
				return nil
			}
			words = append(words, word)
			expectCommand = false
		}
	}

	if expectCommand {
		return nil // trailing operator
	}
	if len(words) > 0 {
		commands = append(commands, words)
	}
	if len(commands) == 0 {
		return nil
	}
	return commands
}

func (p *scriptScanner) skipSpace() {
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

// scanWord reads one word, which may concatenate plain text with single- or
// double-quoted segments. Double-quoted segments must not contain expansion.
func (p *scriptScanner) scanWord() (string, bool) {
	var b strings.Builder
	got := false

	for p.pos < len(p.src) {
		ch := p.src[p.pos]
		if ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' ||
			ch == '&' || ch == '|' || ch == ';' || ch == '#' {
			break
		}
		switch ch {
		case '>', '<', '(', ')', '`', '$':
			return "", false
		case '\'':
			end := strings.IndexByte(p.src[p.pos+1:], '\'')
			if end < 0 {
				return "", false
			}
			b.WriteString(p.src[p.pos+1 : p.pos+1+end])
			p.pos += end + 2
			got = true
		case '"':
			p.pos++
			for {
				if p.pos >= len(p.src) {
					return "", false
				}
				c := p.src[p.pos]
				if c == '"' {
					p.pos++
					break
				}
				if c == '$' || c == '`' || c == '\\' {
					return "", false
				}
				b.WriteByte(c)
				p.pos++
			}
			got = true
		case '\\':
			if p.pos+1 >= len(p.src) {
				return "", false
			}
			b.WriteByte(p.src[p.pos+1])
			p.pos += 2
			got = true
		default:
			b.WriteByte(ch)
			p.pos++
			got = true
		}
	}

	if !got {
		return "", false
	}
	return b.String(), true
}
