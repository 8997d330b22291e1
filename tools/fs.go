package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Kochanac/pi-mono/core"
	"github.com/Kochanac/pi-mono/tool"
)

const maxReadBytes = 256 * 1024

// resolvePath joins a relative path against the workspace and, when
// restricted, rejects escapes outside it.
func resolvePath(workspace, rel string, restrict bool) (string, error) {
	p := rel
	if !filepath.IsAbs(p) {
		p = filepath.Join(workspace, p)
	}
	p = filepath.Clean(p)

	if restrict {
		wsAbs, err := filepath.Abs(workspace)
		if err != nil {
			return "", err
		}
		pAbs, err := filepath.Abs(p)
		if err != nil {
			return "", err
		}
		if pAbs != wsAbs && !strings.HasPrefix(pAbs, wsAbs+string(filepath.Separator)) {
			return "", fmt.Errorf("path %s is outside the workspace", rel)
		}
	}
	return p, nil
}

// ReadFileTool reads a file from the agent workspace.
type ReadFileTool struct {
	workspace string
	restrict  bool
}

// NewReadFileTool creates a read tool rooted at workspace. When restrict is
// true, paths outside the workspace are rejected.
func NewReadFileTool(workspace string, restrict bool) *ReadFileTool {
	return &ReadFileTool{workspace: workspace, restrict: restrict}
}

// Name implements tool.Tool.
func (t *ReadFileTool) Name() string { return "read_file" }

// Label implements tool.Tool.
func (t *ReadFileTool) Label() string { return "Read file" }

// Description implements tool.Tool.
func (t *ReadFileTool) Description() string {
	return "Read a text file from the workspace. Returns at most 256 KiB of content."
}

// Parameters implements tool.Tool.
func (t *ReadFileTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "File path, relative to the workspace.",
			},
		},
		"required": []string{"path"},
	}
}

// Execute implements tool.Tool.
func (t *ReadFileTool) Execute(_ context.Context, _ string, args map[string]any, _ tool.UpdateFunc) (*tool.Result, error) {
	rel, _ := args["path"].(string)
	p, err := resolvePath(t.workspace, rel, t.restrict)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(p)
	if err != nil {
		return nil, err
	}
	if len(data) > maxReadBytes {
		data = data[:maxReadBytes]
	}
	return tool.TextResult(string(data)), nil
}

// WriteFileTool writes a file into the agent workspace, creating parent
// directories as needed.
type WriteFileTool struct {
	workspace string
	restrict  bool
}

// NewWriteFileTool creates a write tool rooted at workspace.
func NewWriteFileTool(workspace string, restrict bool) *WriteFileTool {
	return &WriteFileTool{workspace: workspace, restrict: restrict}
}

// Name implements tool.Tool.
func (t *WriteFileTool) Name() string { return "write_file" }

// Label implements tool.Tool.
func (t *WriteFileTool) Label() string { return "Write file" }

// Description implements tool.Tool.
func (t *WriteFileTool) Description() string {
	return "Write content to a file in the workspace, replacing any existing content."
}

// Parameters implements tool.Tool.
func (t *WriteFileTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "File path, relative to the workspace.",
			},
			"content": map[string]any{
				"type":        "string",
				"description": "Full file content to write.",
			},
		},
		"required": []string{"path", "content"},
	}
}

// Execute implements tool.Tool.
func (t *WriteFileTool) Execute(_ context.Context, _ string, args map[string]any, _ tool.UpdateFunc) (*tool.Result, error) {
	rel, _ := args["path"].(string)
	content, _ := args["content"].(string)

	p, err := resolvePath(t.workspace, rel, t.restrict)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		return nil, err
	}
	return tool.TextResult(fmt.Sprintf("Wrote %d bytes to %s", len(content), rel)), nil
}

// ListDirTool lists a workspace directory.
type ListDirTool struct {
	workspace string
	restrict  bool
}

// NewListDirTool creates a listing tool rooted at workspace.
func NewListDirTool(workspace string, restrict bool) *ListDirTool {
	return &ListDirTool{workspace: workspace, restrict: restrict}
}

// Name implements tool.Tool.
func (t *ListDirTool) Name() string { return "list_dir" }

// Label implements tool.Tool.
func (t *ListDirTool) Label() string { return "List directory" }

// Description implements tool.Tool.
func (t *ListDirTool) Description() string {
	return "List the entries of a workspace directory. Directories are suffixed with '/'."
}

// Parameters implements tool.Tool.
func (t *ListDirTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "Directory path, relative to the workspace. Defaults to the workspace root.",
			},
		},
	}
}

// Execute implements tool.Tool.
func (t *ListDirTool) Execute(_ context.Context, _ string, args map[string]any, _ tool.UpdateFunc) (*tool.Result, error) {
	rel, _ := args["path"].(string)
	if rel == "" {
		rel = "."
	}

	p, err := resolvePath(t.workspace, rel, t.restrict)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(p)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)

	if len(names) == 0 {
		return tool.TextResult("(empty directory)"), nil
	}
	return &tool.Result{
		Content: []core.Part{core.TextPart{Text: strings.Join(names, "\n")}},
		Details: map[string]any{"count": len(names)},
	}, nil
}
