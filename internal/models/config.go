package models

// ModelConfig configures the inference backend for a session.
type ModelConfig struct {
	Provider      string  `json:"provider"` // "anthropic" or "openai"
	Model         string  `json:"model"`
	Temperature   float64 `json:"temperature"`
	MaxTokens     int     `json:"max_tokens"`
	ContextWindow int     `json:"context_window"`
}

// DefaultModelConfig returns the default model configuration.
func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		Provider:      "anthropic",
		Model:         "claude-sonnet-4-5",
		Temperature:   0.7,
		MaxTokens:     4096,
		ContextWindow: 200000,
	}
}

// McpServerConfig describes one MCP server providing cloud-API tools
// (mail, calendar, notes services). Command spawns a stdio server; URL
// connects over streamable HTTP. The two are mutually exclusive.
type McpServerConfig struct {
	Command string            `json:"command,omitempty"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
	URL     string            `json:"url,omitempty"`

	// Required makes initialization failure fatal for the session.
	Required bool `json:"required,omitempty"`

	// EnabledTools, when set, is an allow-list; DisabledTools is always a
	// deny-list.
	EnabledTools  []string `json:"enabled_tools,omitempty"`
	DisabledTools []string `json:"disabled_tools,omitempty"`
}

// SandboxConfig controls the isolated shell execution environment.
type SandboxConfig struct {
	// Mode is "read-only", "workspace-write", or "full-access".
	Mode          string   `json:"mode"`
	WritableRoots []string `json:"writable_roots,omitempty"`
	NetworkAccess bool     `json:"network_access"`
}

// SessionConfiguration is the complete per-session configuration, resolved
// once at session start and passed explicitly into the workflow. Never a
// process-wide singleton: two sessions in one process cannot share it.
type SessionConfiguration struct {
	Model   ModelConfig                `json:"model"`
	Sandbox SandboxConfig              `json:"sandbox"`
	McpServers map[string]McpServerConfig `json:"mcp_servers,omitempty"`

	// Cwd is the working directory for tool execution.
	Cwd string `json:"cwd,omitempty"`

	// StewardHome is the directory holding notes, approval policy, and
	// personal instructions (default ~/.steward).
	StewardHome string `json:"steward_home,omitempty"`

	// Instruction tiers assembled at session start.
	BaseInstructions     string `json:"base_instructions,omitempty"`
	PersonalInstructions string `json:"personal_instructions,omitempty"`

	// ApprovalPolicyRules is the Starlark prefix-rule source, loaded once
	// per session.
	ApprovalPolicyRules string `json:"approval_policy_rules,omitempty"`

	// MaxRequestsPerTurn is the UsageBudget ceiling: model requests allowed
	// per turn, shared with approval-resumption cycles and delegated
	// sub-tasks.
	MaxRequestsPerTurn int `json:"max_requests_per_turn"`

	// CompactFraction is the fraction of the context window at which
	// sliding-window compaction triggers.
	CompactFraction float64 `json:"compact_fraction"`

	// DoomLoopWindow is the number of consecutive identical tool calls that
	// triggers a steering note.
	DoomLoopWindow int `json:"doom_loop_window"`

	// ReflectionCap is the number of consecutive failing shell commands that
	// triggers a steering note.
	ReflectionCap int `json:"reflection_cap"`

	// SessionTaskQueue, if set, routes tool activities to a dedicated queue
	// (per-session worker routing).
	SessionTaskQueue string `json:"session_task_queue,omitempty"`
}

// Defaults for the safety and governance knobs. Both threshold values are
// configuration, not fixed behavior.
const (
	DefaultMaxRequestsPerTurn = 24
	DefaultCompactFraction    = 0.85
	DefaultDoomLoopWindow     = 3
	DefaultReflectionCap      = 3
)

// DefaultSessionConfiguration returns a configuration with all defaults set.
func DefaultSessionConfiguration() SessionConfiguration {
	return SessionConfiguration{
		Model: DefaultModelConfig(),
		Sandbox: SandboxConfig{
			Mode: "workspace-write",
		},
		MaxRequestsPerTurn: DefaultMaxRequestsPerTurn,
		CompactFraction:    DefaultCompactFraction,
		DoomLoopWindow:     DefaultDoomLoopWindow,
		ReflectionCap:      DefaultReflectionCap,
	}
}

// Normalize fills zero-valued governance knobs with defaults. Called at
// workflow start so a partially-populated configuration behaves sanely.
func (c *SessionConfiguration) Normalize() {
	if c.MaxRequestsPerTurn <= 0 {
		c.MaxRequestsPerTurn = DefaultMaxRequestsPerTurn
	}
	if c.CompactFraction <= 0 || c.CompactFraction >= 1 {
		c.CompactFraction = DefaultCompactFraction
	}
	if c.DoomLoopWindow <= 0 {
		c.DoomLoopWindow = DefaultDoomLoopWindow
	}
	if c.ReflectionCap <= 0 {
		c.ReflectionCap = DefaultReflectionCap
	}
	if c.Model.ContextWindow <= 0 {
		c.Model.ContextWindow = DefaultModelConfig().ContextWindow
	}
}
