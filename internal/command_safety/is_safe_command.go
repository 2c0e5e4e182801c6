package command_safety

import (
	"path/filepath"
	"strings"
)

// IsKnownSafeCommand reports whether the command is provably read-only and
// eligible for auto-approval. The list is deliberately conservative:
// commands whose safety depends on trailing flags are vetted per flag, and
// anything unrecognized is unsafe.
func IsKnownSafeCommand(command []string) bool {
	if isSafePlainCommand(command) {
		return true
	}

	// `bash -c "..."` where the script is solely plain commands joined by
	// safe operators, each of which is itself safe.
	sub := SplitShellScript(command)
	if len(sub) == 0 {
		return false
	}
	for _, cmd := range sub {
		if !isSafePlainCommand(cmd) {
			return false
		}
	}
	return true
}

func isSafePlainCommand(command []string) bool {
	if len(command) == 0 {
		return false
	}

	switch filepath.Base(command[0]) {
	// Unconditionally safe listing/reading commands.
	case "cat", "cd", "cut", "date", "df", "du", "echo", "env", "expr",
		"false", "file", "grep", "head", "hostname", "id", "ls", "nl",
		"paste", "printf", "pwd", "rev", "seq", "sort", "stat", "tac",
		"tail", "tr", "true", "uname", "uniq", "uptime", "wc", "which",
		"whoami":
		return true

	case "find":
		return findIsSafe(command)
	case "rg":
		return rgIsSafe(command)
	case "git":
		return gitIsSafe(command)
	case "base64":
		return base64IsSafe(command)

	default:
		return false
	}
}

// findIsSafe rejects find invocations that execute or write.
func findIsSafe(command []string) bool {
	for _, arg := range command[1:] {
		switch arg {
		case "-exec", "-execdir", "-ok", "-okdir", "-delete",
			"-fls", "-fprint", "-fprint0", "-fprintf":
			return false
		}
	}
	return true
}

// rgIsSafe rejects ripgrep flags that spawn helpers or touch archives.
func rgIsSafe(command []string) bool {
	for _, arg := range command[1:] {
		if arg == "--pre" || arg == "--hostname-bin" ||
			strings.HasPrefix(arg, "--pre=") || strings.HasPrefix(arg, "--hostname-bin=") {
			return false
		}
		if arg == "-z" || arg == "--search-zip" {
			return false
		}
	}
	return true
}

// gitIsSafe allows only read-only subcommands.
func gitIsSafe(command []string) bool {
	readOnly := map[string]bool{
		"status": true, "log": true, "show": true, "diff": true,
		"branch": true, "remote": true,
	}
	for _, arg := range command[1:] {
		if strings.HasPrefix(arg, "-") {
			continue
		}
		return readOnly[arg]
	}
	return false
}

// base64IsSafe rejects output-to-file flags.
func base64IsSafe(command []string) bool {
	for _, arg := range command[1:] {
		if arg == "--output" || strings.HasPrefix(arg, "--output=") ||
			strings.HasPrefix(arg, "-o") {
			return false
		}
	}
	return true
}
