package instructions

import "strings"

// MergeInput collects the instruction sources for one session.
type MergeInput struct {
	// BaseOverride replaces the default base system prompt if non-empty.
	BaseOverride string

	// Personal contains the user's standing preferences from
	// {home}/instructions.md.
	Personal string

	// Cwd is the session working directory.
	Cwd string

	// Shell is the user's shell, defaulting to bash.
	Shell string

	// SandboxMode and NetworkAccess describe the execution confinement.
	SandboxMode   string
	NetworkAccess bool
}

// MergedInstructions is the assembled prompt set for a session.
type MergedInstructions struct {
	// Base is the core system prompt.
	Base string

	// Personal is the user preference tier, appended after Base.
	Personal string

	// EnvironmentContext is injected as the first user message.
	EnvironmentContext string
}

// Merge assembles the instruction tiers. Personal instructions never
// replace the base prompt; they ride alongside it so session overrides
// can't strip the safety rules.
func Merge(input MergeInput) MergedInstructions {
	personal := strings.TrimSpace(input.Personal)

	return MergedInstructions{
		Base:               GetBaseInstructions(input.BaseOverride),
		Personal:           personal,
		EnvironmentContext: BuildEnvironmentContext(input.Cwd, input.Shell, input.SandboxMode, input.NetworkAccess),
	}
}
