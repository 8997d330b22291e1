package tools

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	shellwords "github.com/mattn/go-shellwords"

	"github.com/Kochanac/pi-mono/core"
	"github.com/Kochanac/pi-mono/tool"
)

const (
	defaultExecTimeout = 60 * time.Second
	maxExecOutputChars = 50000
	execUpdateInterval = time.Second
)

// ExecTool runs a shell command in the workspace. The command line is split
// with shellwords (no shell interpolation); the abort signal cancels the
// process; progress updates carry the output captured so far.
type ExecTool struct {
	workspace string
	timeout   time.Duration
}

// NewExecTool creates an exec tool rooted at workspace.
func NewExecTool(workspace string, optFns ...func(t *ExecTool)) *ExecTool {
	t := &ExecTool{workspace: workspace, timeout: defaultExecTimeout}
	for _, fn := range optFns {
		fn(t)
	}
	return t
}

// WithExecTimeout overrides the per-command timeout.
func WithExecTimeout(d time.Duration) func(t *ExecTool) {
	return func(t *ExecTool) { t.timeout = d }
}

// Name implements tool.Tool.
func (t *ExecTool) Name() string { return "exec" }

// Label implements tool.Tool.
func (t *ExecTool) Label() string { return "Run command" }

// Description implements tool.Tool.
func (t *ExecTool) Description() string {
	return "Run a command in the workspace. The command is tokenized without shell expansion; combined stdout/stderr is returned, truncated to 50000 characters."
}

// Parameters implements tool.Tool.
func (t *ExecTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"command": map[string]any{
				"type":        "string",
				"description": "Command line to run, e.g. \"ls -la src\".",
			},
		},
		"required": []string{"command"},
	}
}

// Execute implements tool.Tool.
func (t *ExecTool) Execute(ctx context.Context, _ string, args map[string]any, onUpdate tool.UpdateFunc) (*tool.Result, error) {
	line, _ := args["command"].(string)

	words, err := shellwords.Parse(line)
	if err != nil {
		return nil, fmt.Errorf("parse command: %w", err)
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("empty command")
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, words[0], words[1:]...)
	cmd.Dir = t.workspace

	var buf safeBuffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	ticker := time.NewTicker(execUpdateInterval)
	defer ticker.Stop()

	var runErr error
wait:
	for {
		select {
		case runErr = <-done:
			break wait
		case <-ticker.C:
			if onUpdate != nil {
				onUpdate(map[string]any{"output": truncate(buf.String(), maxExecOutputChars)})
			}
		}
	}

	output := truncate(buf.String(), maxExecOutputChars)
	if runErr != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("command cancelled: %w\n%s", ctx.Err(), output)
		}
		return nil, fmt.Errorf("%v\n%s", runErr, output)
	}

	if strings.TrimSpace(output) == "" {
		output = "(no output)"
	}
	return &tool.Result{
		Content: []core.Part{core.TextPart{Text: output}},
		Details: map[string]any{"exit_code": cmd.ProcessState.ExitCode()},
	}, nil
}

// safeBuffer guards concurrent writes from the process pipes against the
// periodic progress reads.
type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "\n... (truncated)"
}
