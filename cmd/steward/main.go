// Interactive terminal frontend for steward sessions.
//
// Connects to a Temporal server, starts or resumes a session workflow,
// streams conversation items into a scrollback view, and collects
// approvals for side-effecting tool calls.
//
// Usage:
//
//	steward -m "hello"                       Start a new session with a message
//	steward                                  Start a new session, type immediately
//	steward --session steward-ab12cd34       Resume an existing session
//	steward -m "hello" --model claude-opus-4 Use a specific model
package main

import (
	"flag"
	"fmt"
	"os"

	"steward/internal/cli"
)

func main() {
	message := flag.String("m", "", "Initial message (starts a new session)")
	message2 := flag.String("message", "", "Initial message (alias for -m)")
	session := flag.String("session", "", "Resume an existing session")
	model := flag.String("model", "", "Model to use (defaults to the worker's default)")
	provider := flag.String("provider", "", "Model provider (anthropic or openai; inferred from --model when empty)")
	temporalHost := flag.String("temporal-host", "", "Temporal server address (defaults to TEMPORAL_ADDRESS)")
	namespace := flag.String("namespace", "", "Temporal namespace (defaults to TEMPORAL_NAMESPACE)")
	cwd := flag.String("cwd", "", "Working directory for tool execution (defaults to the current directory)")
	stewardHome := flag.String("home", "", "Directory for notes, rules, and personal instructions (defaults to STEWARD_HOME or ~/.steward)")
	noMarkdown := flag.Bool("no-markdown", false, "Disable markdown rendering")
	noColor := flag.Bool("no-color", false, "Disable colored output")
	inline := flag.Bool("inline", false, "Render inline instead of the alternate screen")
	flag.Parse()

	msg := *message
	if msg == "" {
		msg = *message2
	}

	prov := *provider
	if prov == "" && *model != "" {
		prov = cli.DetectProvider(*model)
	}

	home := *stewardHome
	if home == "" {
		home = os.Getenv("STEWARD_HOME")
	}

	config := cli.Config{
		TemporalHost: *temporalHost,
		Namespace:    *namespace,
		Session:      *session,
		Message:      msg,
		Model:        *model,
		Provider:     prov,
		NoMarkdown:   *noMarkdown,
		NoColor:      *noColor,
		Cwd:          *cwd,
		StewardHome:  home,
		Inline:       *inline,
	}

	if err := cli.Run(config); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
