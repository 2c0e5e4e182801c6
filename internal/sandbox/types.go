// Package sandbox confines shell commands with OS-level isolation. On Linux
// it wraps commands with bubblewrap, on macOS with Seatbelt. When the
// platform offers neither, execution fails closed until the user explicitly
// consents to running unsandboxed.
package sandbox

import "fmt"

// Mode controls the level of filesystem restriction.
type Mode string

const (
	// ModeFullAccess disables sandboxing entirely.
	ModeFullAccess Mode = "full-access"
	// ModeReadOnly permits reads only.
	ModeReadOnly Mode = "read-only"
	// ModeWorkspaceWrite permits writes to the configured roots.
	ModeWorkspaceWrite Mode = "workspace-write"
)

// ParseMode parses a mode string; both dash and underscore spellings are
// accepted.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "full-access", "full_access":
		return ModeFullAccess, nil
	case "read-only", "read_only":
		return ModeReadOnly, nil
	case "workspace-write", "workspace_write":
		return ModeWorkspaceWrite, nil
	default:
		return "", fmt.Errorf("invalid sandbox mode %q: must be full-access, read-only, or workspace-write", s)
	}
}

// Policy configures confinement for a command execution.
type Policy struct {
	Mode          Mode     `json:"mode"`
	WritableRoots []string `json:"writable_roots,omitempty"`
	NetworkAccess bool     `json:"network_access"`
}

// Restricted reports whether the policy demands any confinement.
func (p *Policy) Restricted() bool {
	return p != nil && p.Mode != ModeFullAccess && p.Mode != ""
}

// CommandSpec describes a command before sandbox wrapping.
type CommandSpec struct {
	Program string
	Args    []string
	Cwd     string
}

// ExecEnv is the wrapped command ready to spawn.
type ExecEnv struct {
	Command []string
	Cwd     string
	Env     map[string]string
}

func passthrough(spec CommandSpec) *ExecEnv {
	return &ExecEnv{
		Command: append([]string{spec.Program}, spec.Args...),
		Cwd:     spec.Cwd,
	}
}

// Manager wraps commands with platform-specific confinement.
type Manager interface {
	// Wrap transforms the command per the policy. Full-access policies
	// pass through unchanged.
	Wrap(spec CommandSpec, policy *Policy) (*ExecEnv, error)

	// Available reports whether this confinement works on the current
	// host.
	Available() bool
}
