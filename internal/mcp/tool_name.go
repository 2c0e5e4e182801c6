// Package mcp connects to Model Context Protocol servers and exposes
// their tools to the session under namespaced names.
package mcp

import (
	"crypto/sha1"
	"fmt"
)

const (
	// NameDelimiter separates the prefix, server name, and tool name.
	NameDelimiter = "__"

	// NamePrefix marks every MCP-backed tool.
	NamePrefix = "mcp"

	// MaxToolNameLength is the provider-imposed cap on tool names
	// (^[a-zA-Z0-9_-]+$, at most 64 characters).
	MaxToolNameLength = 64
)

// QualifiedName builds the namespaced tool name mcp__<server>__<tool>,
// sanitized for the provider APIs. Overlong names are truncated with a
// SHA-1 suffix so they stay unique.
func QualifiedName(serverName, toolName string) string {
	raw := NamePrefix + NameDelimiter + serverName + NameDelimiter + toolName
	qualified := sanitizeName(raw)
	if len(qualified) > MaxToolNameLength {
		hash := sha1Hex(raw)
		qualified = qualified[:MaxToolNameLength-len(hash)] + hash
	}
	return qualified
}

// IsQualifiedName reports whether a tool name belongs to the MCP
// namespace.
func IsQualifiedName(name string) bool {
	return len(name) > len(NamePrefix)+len(NameDelimiter) &&
		name[:len(NamePrefix)+len(NameDelimiter)] == NamePrefix+NameDelimiter
}

// sanitizeName replaces anything outside [a-zA-Z0-9_-] with underscore.
func sanitizeName(name string) string {
	out := make([]byte, 0, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') ||
			(c >= '0' && c <= '9') || c == '_' || c == '-' {
			out = append(out, c)
		} else {
			out = append(out, '_')
		}
	}
	if len(out) == 0 {
		return "_"
	}
	return string(out)
}

func sha1Hex(s string) string {
	h := sha1.New()
	h.Write([]byte(s))
	return fmt.Sprintf("%x", h.Sum(nil))
}
