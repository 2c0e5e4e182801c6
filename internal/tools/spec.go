package tools

// Default activity timeouts in milliseconds.
const (
	DefaultShellTimeoutMs    = 10_000
	DefaultReadFileTimeoutMs = 30_000
	DefaultToolTimeoutMs     = 120_000
)

// FocusedTaskToolName names the delegated sub-task tool, which the
// orchestrator handles itself as a child workflow rather than dispatching
// to an activity handler.
const FocusedTaskToolName = "run_focused_task"

// ToolSpec describes one tool to the model.
type ToolSpec struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  []ToolParameter `json:"parameters"`

	// RawJSONSchema carries a complete input schema for tools that supply
	// one, such as discovered MCP tools. When set it is sent to the model
	// as-is and Parameters is ignored.
	RawJSONSchema map[string]interface{} `json:"raw_json_schema,omitempty"`

	// RequiresApproval marks tools whose every call goes through the
	// approval gate regardless of arguments. Advisory auto-approval may
	// still clear individual calls (shell commands proven read-only).
	RequiresApproval bool `json:"-"`

	// DefaultTimeoutMs bounds the tool activity when the model supplies
	// no timeout_ms argument.
	DefaultTimeoutMs int64 `json:"-"`
}

// ToolParameter describes one tool argument.
type ToolParameter struct {
	Name        string      `json:"name"`
	Type        string      `json:"type"`
	Description string      `json:"description"`
	Required    bool        `json:"required"`
	Items       interface{} `json:"items,omitempty"`
}

// NewShellToolSpec describes the one-shot shell tool.
func NewShellToolSpec() ToolSpec {
	return ToolSpec{
		Name:        "shell",
		Description: "Execute a shell command in the sandboxed workspace and return its combined output.",
		Parameters: []ToolParameter{
			{
				Name:        "command",
				Type:        "string",
				Description: "The shell command to execute (run with bash -c)",
				Required:    true,
			},
			{
				Name:        "timeout_ms",
				Type:        "number",
				Description: "Timeout in milliseconds. Defaults to 10000. Use longer timeouts for builds or test suites.",
			},
		},
		RequiresApproval: true,
		DefaultTimeoutMs: DefaultShellTimeoutMs,
	}
}

// NewShellSessionToolSpec describes the persistent interactive shell tool.
// A session keeps one PTY-backed process alive across calls so interactive
// programs can be driven step by step.
func NewShellSessionToolSpec() ToolSpec {
	return ToolSpec{
		Name:        "shell_session",
		Description: "Interact with a persistent shell session. Start it with a command, then send input and collect output across multiple calls.",
		Parameters: []ToolParameter{
			{
				Name:        "session_id",
				Type:        "string",
				Description: "Identifier of the session to create or reuse",
				Required:    true,
			},
			{
				Name:        "command",
				Type:        "string",
				Description: "Command to start when the session does not exist yet",
			},
			{
				Name:        "input",
				Type:        "string",
				Description: "Text to write to the session's stdin",
			},
			{
				Name:        "timeout_ms",
				Type:        "number",
				Description: "How long to wait for output in milliseconds. Defaults to 10000.",
			},
		},
		RequiresApproval: true,
		DefaultTimeoutMs: DefaultToolTimeoutMs,
	}
}

// NewReadFileToolSpec describes the read_file tool.
func NewReadFileToolSpec() ToolSpec {
	return ToolSpec{
		Name:        "read_file",
		Description: "Read the contents of a file. Returns the content with line numbers.",
		Parameters: []ToolParameter{
			{
				Name:        "path",
				Type:        "string",
				Description: "The path of the file to read",
				Required:    true,
			},
			{
				Name:        "offset",
				Type:        "number",
				Description: "Line number to start reading from (0-indexed)",
			},
			{
				Name:        "limit",
				Type:        "number",
				Description: "Maximum number of lines to read",
			},
		},
		DefaultTimeoutMs: DefaultReadFileTimeoutMs,
	}
}

// NewListDirToolSpec describes the list_dir tool.
func NewListDirToolSpec() ToolSpec {
	return ToolSpec{
		Name:        "list_dir",
		Description: "List directory entries with nesting, sorted by path.",
		Parameters: []ToolParameter{
			{
				Name:        "dir_path",
				Type:        "string",
				Description: "Absolute path of the directory to list",
				Required:    true,
			},
			{
				Name:        "offset",
				Type:        "number",
				Description: "1-indexed entry number to start from. Defaults to 1.",
			},
			{
				Name:        "limit",
				Type:        "number",
				Description: "Maximum entries to return. Defaults to 25.",
			},
			{
				Name:        "depth",
				Type:        "number",
				Description: "Directory depth to traverse. Defaults to 2.",
			},
		},
		DefaultTimeoutMs: DefaultReadFileTimeoutMs,
	}
}

// NewSaveNoteToolSpec describes the save_note tool, which records a durable
// memory note for future sessions. Notes outlive the session, so saving one
// prompts like any other mutating tool.
func NewSaveNoteToolSpec() ToolSpec {
	return ToolSpec{
		Name:        "save_note",
		Description: "Save a note to long-term memory so future sessions can recall it. Use for stable user preferences and facts, not transient task state.",
		Parameters: []ToolParameter{
			{
				Name:        "title",
				Type:        "string",
				Description: "Short title for the note",
				Required:    true,
			},
			{
				Name:        "content",
				Type:        "string",
				Description: "The note body",
				Required:    true,
			},
		},
		RequiresApproval: true,
		DefaultTimeoutMs: DefaultReadFileTimeoutMs,
	}
}

// NewFocusedTaskToolSpec describes the delegated sub-task tool.
func NewFocusedTaskToolSpec() ToolSpec {
	return ToolSpec{
		Name:        FocusedTaskToolName,
		Description: "Delegate a focused sub-task to a separate agent with a narrowed context. Returns a structured result with summary, outcome, and details. The sub-task shares this turn's request budget.",
		Parameters: []ToolParameter{
			{
				Name:        "task",
				Type:        "string",
				Description: "Complete instructions for the sub-task, including everything it needs to know",
				Required:    true,
			},
		},
		DefaultTimeoutMs: DefaultToolTimeoutMs,
	}
}

// BuiltinSpecs returns the specifications for every built-in tool.
func BuiltinSpecs() []ToolSpec {
	return []ToolSpec{
		NewShellToolSpec(),
		NewShellSessionToolSpec(),
		NewReadFileToolSpec(),
		NewListDirToolSpec(),
		NewSaveNoteToolSpec(),
		NewFocusedTaskToolSpec(),
	}
}
