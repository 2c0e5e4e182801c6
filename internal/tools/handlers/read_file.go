package handlers

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"steward/internal/tools"
)

const maxLineLength = 2000

// ReadFileTool reads file contents with optional offset and limit.
type ReadFileTool struct{}

// NewReadFileTool creates the read_file handler.
func NewReadFileTool() *ReadFileTool {
	return &ReadFileTool{}
}

func (t *ReadFileTool) Name() string {
	return "read_file"
}

func (t *ReadFileTool) Kind() tools.ToolKind {
	return tools.ToolKindFunction
}

func (t *ReadFileTool) Mutating(_ *tools.ToolInvocation) bool {
	return false
}

func (t *ReadFileTool) Handle(_ context.Context, invocation *tools.ToolInvocation) (*tools.ToolOutput, error) {
	path, err := invocation.StringArg("path")
	if err != nil {
		return nil, err
	}
	offset, err := invocation.IntArg("offset", 0)
	if err != nil {
		return nil, err
	}
	limit, err := invocation.IntArg("limit", -1)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		failed := false
		return &tools.ToolOutput{
			Content: fmt.Sprintf("failed to open file: %v", err),
			Success: &failed,
		}, nil
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var result strings.Builder
	lineNum := 0
	linesRead := 0

	for lineNum < offset && scanner.Scan() {
		lineNum++
	}
	for scanner.Scan() {
		if limit > 0 && linesRead >= limit {
			break
		}
		line := scanner.Text()
		if len(line) > maxLineLength {
			line = line[:maxLineLength] + "... (truncated)"
		}
		fmt.Fprintf(&result, "%6d\t%s\n", lineNum+1, line)
		lineNum++
		linesRead++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	content := result.String()
	if content == "" {
		if offset > 0 {
			content = fmt.Sprintf("(file has fewer than %d lines)", offset)
		} else {
			content = "(empty file)"
		}
	}

	// Header keeps multi-file turns unambiguous for the model.
	content = fmt.Sprintf("File: %s\n%s", path, content)

	success := true
	return &tools.ToolOutput{Content: content, Success: &success}, nil
}
