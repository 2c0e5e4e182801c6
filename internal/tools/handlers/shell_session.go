package handlers

import (
	"context"
	"fmt"
	"time"

	"steward/internal/sandbox"
	"steward/internal/tools"
)

// ShellSessionTool drives a persistent PTY-backed shell session across
// multiple calls, so interactive programs can be started, fed input, and
// polled for output.
type ShellSessionTool struct {
	svc *sandbox.Service
}

// NewShellSessionTool creates the shell_session handler.
func NewShellSessionTool(svc *sandbox.Service) *ShellSessionTool {
	return &ShellSessionTool{svc: svc}
}

func (t *ShellSessionTool) Name() string {
	return "shell_session"
}

func (t *ShellSessionTool) Kind() tools.ToolKind {
	return tools.ToolKindFunction
}

func (t *ShellSessionTool) Mutating(_ *tools.ToolInvocation) bool {
	return true
}

func (t *ShellSessionTool) Handle(_ context.Context, invocation *tools.ToolInvocation) (*tools.ToolOutput, error) {
	sessionID, err := invocation.StringArg("session_id")
	if err != nil {
		return nil, err
	}
	command, err := invocation.OptionalStringArg("command")
	if err != nil {
		return nil, err
	}
	input, err := invocation.OptionalStringArg("input")
	if err != nil {
		return nil, err
	}
	timeoutMs, err := invocation.IntArg("timeout_ms", tools.DefaultShellTimeoutMs)
	if err != nil {
		return nil, err
	}

	session, ok := t.svc.LookupSession(sessionID)
	if !ok || session.Exited() {
		if command == "" {
			return nil, tools.NewValidationError("command is required to start a new session")
		}
		session, err = t.svc.Session(sessionID, sandbox.ShellOpts{
			Command: []string{"bash", "-c", command},
			Cwd:     invocation.Cwd,
			TTY:     true,
		})
		if err != nil {
			return nil, err
		}
	}

	if input != "" {
		if err := session.WriteStdin([]byte(input)); err != nil {
			failed := false
			return &tools.ToolOutput{
				Content: fmt.Sprintf("write to session stdin: %v", err),
				Success: &failed,
			}, nil
		}
	}

	deadline := time.Now().Add(time.Duration(timeoutMs) * time.Millisecond)
	output := session.CollectOutput(deadline, invocation.Heartbeat)

	content := string(output)
	if code := session.ExitCode(); code != nil {
		content += fmt.Sprintf("\n[session exited with code %d]", *code)
		t.svc.CloseSession(sessionID)
	}

	success := true
	return &tools.ToolOutput{Content: content, Success: &success}, nil
}
