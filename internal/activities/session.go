package activities

import (
	"context"
	"os"

	"steward/internal/approvalpolicy"
	"steward/internal/instructions"
	"steward/internal/sandbox"
)

// SessionActivities covers worker-side session setup and teardown: loading
// instructions and approval rules from the assistant home, sandbox
// readiness, and resource cleanup.
type SessionActivities struct {
	sandboxSvc *sandbox.Service
	policies   *approvalpolicy.Manager
}

// NewSessionActivities creates a SessionActivities instance.
func NewSessionActivities(sandboxSvc *sandbox.Service, policies *approvalpolicy.Manager) *SessionActivities {
	return &SessionActivities{sandboxSvc: sandboxSvc, policies: policies}
}

// LoadSessionSetupInput is the input for LoadSessionSetup.
type LoadSessionSetupInput struct {
	StewardHome string `json:"steward_home"`
}

// LoadSessionSetupOutput carries everything the workflow needs from the
// worker's filesystem before the first turn.
type LoadSessionSetupOutput struct {
	PersonalInstructions string `json:"personal_instructions,omitempty"`

	// PolicyRulesSource is the concatenated content of {home}/rules/*.rules,
	// transported as text so the workflow parses it deterministically.
	PolicyRulesSource string `json:"policy_rules_source,omitempty"`

	// SandboxAvailable reports whether the host can confine commands.
	// When false the workflow must obtain consent before any execution.
	SandboxAvailable bool `json:"sandbox_available"`

	Shell string `json:"shell,omitempty"`
}

// LoadSessionSetup reads session inputs from the worker's filesystem.
// Missing files are not errors; they mean defaults.
func (a *SessionActivities) LoadSessionSetup(_ context.Context, input LoadSessionSetupInput) (LoadSessionSetupOutput, error) {
	output := LoadSessionSetupOutput{
		SandboxAvailable: a.sandboxSvc.Sandboxed(),
		Shell:            os.Getenv("SHELL"),
	}

	if input.StewardHome == "" {
		return output, nil
	}

	personal, err := instructions.LoadPersonalInstructions(input.StewardHome)
	if err == nil {
		output.PersonalInstructions = personal
	}

	output.PolicyRulesSource = approvalpolicy.ReadRulesSource(input.StewardHome)
	return output, nil
}

// AllowUnsandboxed records the user's one-time consent to run commands
// without confinement on a host that cannot sandbox.
func (a *SessionActivities) AllowUnsandboxed(_ context.Context) error {
	a.sandboxSvc.AllowUnsandboxed()
	return nil
}

// AppendApprovalRuleInput is the input for AppendApprovalRule.
type AppendApprovalRuleInput struct {
	StewardHome string   `json:"steward_home"`
	Prefix      []string `json:"prefix"`
}

// AppendApprovalRule persists a command prefix as a standing allow rule
// after the user chose to approve it for future sessions.
func (a *SessionActivities) AppendApprovalRule(_ context.Context, input AppendApprovalRuleInput) error {
	return a.policies.AppendAllowRule(input.StewardHome, input.Prefix)
}

// CleanupSessionInput is the input for CleanupSession.
type CleanupSessionInput struct {
	SessionID string `json:"session_id"`
}

// CleanupSession releases worker-side resources held for a session:
// persistent shell sessions and their processes.
func (a *SessionActivities) CleanupSession(_ context.Context, _ CleanupSessionInput) error {
	a.sandboxSvc.Cleanup()
	return nil
}
