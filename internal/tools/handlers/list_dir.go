package handlers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"steward/internal/tools"
)

const (
	listDirDefaultOffset = 1
	listDirDefaultLimit  = 25
	listDirDefaultDepth  = 2
	indentSpaces         = 2
)

// ListDirTool lists directory entries with bounded depth and pagination.
type ListDirTool struct{}

// NewListDirTool creates the list_dir handler.
func NewListDirTool() *ListDirTool {
	return &ListDirTool{}
}

func (t *ListDirTool) Name() string {
	return "list_dir"
}

func (t *ListDirTool) Kind() tools.ToolKind {
	return tools.ToolKindFunction
}

func (t *ListDirTool) Mutating(_ *tools.ToolInvocation) bool {
	return false
}

type dirEntry struct {
	sortKey string // relative path, for global ordering
	name    string
	depth   int
	isDir   bool
	isLink  bool
}

func (t *ListDirTool) Handle(_ context.Context, invocation *tools.ToolInvocation) (*tools.ToolOutput, error) {
	dirPath, err := invocation.StringArg("dir_path")
	if err != nil {
		return nil, err
	}
	if !filepath.IsAbs(dirPath) {
		return nil, tools.NewValidationError("dir_path must be an absolute path")
	}

	offset, err := invocation.IntArg("offset", listDirDefaultOffset)
	if err != nil {
		return nil, err
	}
	if offset < 1 {
		return nil, tools.NewValidationError("offset must be a 1-indexed entry number")
	}
	limit, err := invocation.IntArg("limit", listDirDefaultLimit)
	if err != nil {
		return nil, err
	}
	if limit < 1 {
		return nil, tools.NewValidationError("limit must be greater than zero")
	}
	depth, err := invocation.IntArg("depth", listDirDefaultDepth)
	if err != nil {
		return nil, err
	}
	if depth < 1 {
		return nil, tools.NewValidationError("depth must be greater than zero")
	}

	var entries []dirEntry
	if err := collectEntries(dirPath, "", 1, depth, &entries); err != nil {
		failed := false
		return &tools.ToolOutput{Content: err.Error(), Success: &failed}, nil
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].sortKey < entries[j].sortKey
	})

	lines := []string{fmt.Sprintf("Absolute path: %s", dirPath)}
	start := offset - 1
	if start < len(entries) {
		end := start + limit
		if end > len(entries) {
			end = len(entries)
		}
		for _, e := range entries[start:end] {
			lines = append(lines, formatEntry(e))
		}
		if end < len(entries) {
			lines = append(lines, fmt.Sprintf("%d more entries not shown", len(entries)-end))
		}
	} else if len(entries) > 0 {
		failed := false
		return &tools.ToolOutput{
			Content: "offset exceeds directory entry count",
			Success: &failed,
		}, nil
	}

	success := true
	return &tools.ToolOutput{Content: strings.Join(lines, "\n"), Success: &success}, nil
}

func collectEntries(root, rel string, depth, maxDepth int, out *[]dirEntry) error {
	dirents, err := os.ReadDir(filepath.Join(root, rel))
	if err != nil {
		return err
	}
	for _, d := range dirents {
		relPath := filepath.Join(rel, d.Name())
		entry := dirEntry{
			sortKey: relPath,
			name:    d.Name(),
			depth:   depth,
			isDir:   d.IsDir(),
			isLink:  d.Type()&os.ModeSymlink != 0,
		}
		*out = append(*out, entry)
		if d.IsDir() && depth < maxDepth {
			// Unreadable subdirectories are skipped, not fatal.
			_ = collectEntries(root, relPath, depth+1, maxDepth, out)
		}
	}
	return nil
}

func formatEntry(e dirEntry) string {
	indent := strings.Repeat(" ", (e.depth-1)*indentSpaces)
	suffix := ""
	if e.isDir {
		suffix = "/"
	} else if e.isLink {
		suffix = "@"
	}
	return indent + e.name + suffix
}
