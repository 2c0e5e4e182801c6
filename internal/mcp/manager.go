package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"steward/internal/models"
	"steward/internal/version"
)

const (
	// startupTimeout bounds server connection and initial tool listing.
	startupTimeout = 10 * time.Second
	// toolCallTimeout bounds each individual tool call.
	toolCallTimeout = 60 * time.Second
)

// ToolSpec is the provider-facing description of one discovered MCP tool.
type ToolSpec struct {
	QualifiedName string                 `json:"qualified_name"`
	ServerName    string                 `json:"server_name"`
	ToolName      string                 `json:"tool_name"`
	Description   string                 `json:"description"`
	InputSchema   map[string]interface{} `json:"input_schema,omitempty"`

	// ReadOnly reflects the server's read-only annotation. Calls to tools
	// without it go through the approval gate.
	ReadOnly bool `json:"read_only,omitempty"`
}

// DiscoveryResult is the outcome of initializing a session's MCP servers.
type DiscoveryResult struct {
	Specs []ToolSpec `json:"specs"`
	// Failures maps server name to error text for optional servers that
	// failed to come up.
	Failures map[string]string `json:"failures,omitempty"`
}

type connection struct {
	session *gomcp.ClientSession
	config  models.McpServerConfig
}

// Manager owns one session's MCP connections and dispatches namespaced
// tool calls to the right server.
type Manager struct {
	mu          sync.Mutex
	connections map[string]*connection
	byQualified map[string]ToolSpec
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	return &Manager{
		connections: make(map[string]*connection),
		byQualified: make(map[string]ToolSpec),
	}
}

// Initialize connects to every configured server in parallel, lists and
// filters tools, and merges them under qualified names. A failed required
// server aborts initialization; failed optional servers are recorded and
// skipped.
func (m *Manager) Initialize(ctx context.Context, servers map[string]models.McpServerConfig) (*DiscoveryResult, error) {
	type outcome struct {
		name    string
		session *gomcp.ClientSession
		config  models.McpServerConfig
		specs   []ToolSpec
		err     error
	}

	names := make([]string, 0, len(servers))
	for name := range servers {
		names = append(names, name)
	}

	results := make([]outcome, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(idx int, serverName string, cfg models.McpServerConfig) {
			defer wg.Done()
			out := outcome{name: serverName, config: cfg}

			session, err := connect(ctx, serverName, cfg)
			if err != nil {
				out.err = err
				results[idx] = out
				return
			}
			out.session = session

			listCtx, cancel := context.WithTimeout(ctx, startupTimeout)
			defer cancel()
			listed, err := session.ListTools(listCtx, nil)
			if err != nil {
				out.err = fmt.Errorf("list tools for %s: %w", serverName, err)
				_ = session.Close()
				results[idx] = out
				return
			}

			allowed := toolFilter(cfg)
			for _, tool := range listed.Tools {
				if !allowed(tool.Name) {
					continue
				}
				out.specs = append(out.specs, specFromTool(serverName, tool))
			}
			results[idx] = out
		}(i, name, servers[name])
	}
	wg.Wait()

	discovery := &DiscoveryResult{Failures: make(map[string]string)}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, out := range results {
		if out.err != nil {
			if out.config.Required {
				return nil, fmt.Errorf("required MCP server %s failed: %w", out.name, out.err)
			}
			slog.Warn("mcp server failed, skipping", "server", out.name, "error", out.err)
			discovery.Failures[out.name] = out.err.Error()
			continue
		}
		m.connections[out.name] = &connection{session: out.session, config: out.config}
		for _, spec := range out.specs {
			if _, exists := m.byQualified[spec.QualifiedName]; exists {
				slog.Warn("skipping duplicated mcp tool", "name", spec.QualifiedName)
				continue
			}
			m.byQualified[spec.QualifiedName] = spec
			discovery.Specs = append(discovery.Specs, spec)
		}
	}
	return discovery, nil
}

func connect(ctx context.Context, serverName string, cfg models.McpServerConfig) (*gomcp.ClientSession, error) {
	client := gomcp.NewClient(&gomcp.Implementation{
		Name:    "steward",
		Version: version.Version,
	}, nil)

	connectCtx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()

	switch {
	case cfg.Command != "":
		cmd := exec.CommandContext(connectCtx, cfg.Command, cfg.Args...)
		for k, v := range cfg.Env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
		session, err := client.Connect(connectCtx, &gomcp.CommandTransport{Command: cmd}, nil)
		if err != nil {
			return nil, fmt.Errorf("connect to %s (stdio): %w", serverName, err)
		}
		return session, nil

	case cfg.URL != "":
		session, err := client.Connect(connectCtx, &gomcp.StreamableClientTransport{Endpoint: cfg.URL}, nil)
		if err != nil {
			return nil, fmt.Errorf("connect to %s (http): %w", serverName, err)
		}
		return session, nil

	default:
		return nil, fmt.Errorf("server %s has neither command nor url", serverName)
	}
}

func toolFilter(cfg models.McpServerConfig) func(string) bool {
	var allow map[string]bool
	if len(cfg.EnabledTools) > 0 {
		allow = make(map[string]bool, len(cfg.EnabledTools))
		for _, t := range cfg.EnabledTools {
			allow[t] = true
		}
	}
	deny := make(map[string]bool, len(cfg.DisabledTools))
	for _, t := range cfg.DisabledTools {
		deny[t] = true
	}
	return func(name string) bool {
		if allow != nil && !allow[name] {
			return false
		}
		return !deny[name]
	}
}

func specFromTool(serverName string, tool *gomcp.Tool) ToolSpec {
	spec := ToolSpec{
		QualifiedName: QualifiedName(serverName, tool.Name),
		ServerName:    serverName,
		ToolName:      tool.Name,
		Description:   tool.Description,
	}
	if tool.Annotations != nil && tool.Annotations.ReadOnlyHint {
		spec.ReadOnly = true
	}
	if schema, ok := tool.InputSchema.(map[string]interface{}); ok {
		spec.InputSchema = schema
	}
	return spec
}

// CallTool dispatches a call to the named server.
func (m *Manager) CallTool(ctx context.Context, serverName, toolName string, args map[string]interface{}) (*gomcp.CallToolResult, error) {
	m.mu.Lock()
	conn, ok := m.connections[serverName]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("MCP server %q not connected", serverName)
	}

	callCtx, cancel := context.WithTimeout(ctx, toolCallTimeout)
	defer cancel()

	result, err := conn.session.CallTool(callCtx, &gomcp.CallToolParams{
		Name:      toolName,
		Arguments: args,
	})
	if err != nil {
		return nil, fmt.Errorf("MCP call %s/%s: %w", serverName, toolName, err)
	}
	return result, nil
}

// Spec returns the discovered spec for a qualified tool name.
func (m *Manager) Spec(qualifiedName string) (ToolSpec, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	spec, ok := m.byQualified[qualifiedName]
	return spec, ok
}

// Close shuts down every connection.
func (m *Manager) Close() {
	m.mu.Lock()
	connections := m.connections
	m.connections = make(map[string]*connection)
	m.mu.Unlock()

	for name, conn := range connections {
		if conn.session == nil {
			continue
		}
		if err := conn.session.Close(); err != nil {
			slog.Warn("closing mcp session", "server", name, "error", err)
		}
	}
}

// injectForTest registers a pre-connected session and spec, bypassing
// Initialize.
func (m *Manager) injectForTest(serverName string, session *gomcp.ClientSession, spec ToolSpec) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connections[serverName] = &connection{session: session}
	m.byQualified[spec.QualifiedName] = spec
}
