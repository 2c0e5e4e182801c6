// Package handlers contains the built-in tool handler implementations.
package handlers

import (
	"context"
	"time"

	"steward/internal/sandbox"
	"steward/internal/tools"
)

// ShellTool runs one-shot shell commands through the sandbox service.
type ShellTool struct {
	svc *sandbox.Service
}

// NewShellTool creates the shell handler over a session's sandbox service.
func NewShellTool(svc *sandbox.Service) *ShellTool {
	return &ShellTool{svc: svc}
}

func (t *ShellTool) Name() string {
	return "shell"
}

func (t *ShellTool) Kind() tools.ToolKind {
	return tools.ToolKindFunction
}

func (t *ShellTool) Mutating(_ *tools.ToolInvocation) bool {
	return true
}

// Handle executes the command confined by the session's sandbox policy.
// Command failure is a tool result with Success=false, not an error; only
// infrastructure problems (sandbox unavailable, spawn failure) propagate.
func (t *ShellTool) Handle(ctx context.Context, invocation *tools.ToolInvocation) (*tools.ToolOutput, error) {
	command, err := invocation.StringArg("command")
	if err != nil {
		return nil, err
	}

	timeoutMs, err := invocation.IntArg("timeout_ms", tools.DefaultShellTimeoutMs)
	if err != nil {
		return nil, err
	}

	result, err := t.svc.Run(ctx, sandbox.CommandSpec{
		Program: "bash",
		Args:    []string{"-c", command},
		Cwd:     invocation.Cwd,
	}, time.Duration(timeoutMs)*time.Millisecond)
	if err != nil {
		return nil, err
	}

	content := string(result.Output)
	if result.TimedOut {
		content += "\n[command timed out]"
	}
	if result.Truncated {
		content += "\n[output truncated]"
	}

	success := result.ExitCode == 0 && !result.TimedOut
	return &tools.ToolOutput{Content: content, Success: &success}, nil
}
