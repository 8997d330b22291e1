// Package tool defines the uniform interface through which the agent loop
// invokes structured capabilities (filesystem, shell, chat platforms, task
// storage, ...) with schema-validated arguments and consistent error handling.
package tool

import (
	"context"
	"fmt"

	"github.com/Kochanac/pi-mono/core"
	"github.com/Kochanac/pi-mono/internal/util"
)

// UpdateFunc receives intermediate progress payloads from a running tool.
// The dispatcher forwards each call as a tool_execution_update event. May be
// nil when the caller does not observe progress.
type UpdateFunc func(partial any)

// Result is what a successful tool execution returns. Content is the block
// sequence fed back to the model; Details is an opaque payload surfaced to
// event consumers only.
type Result struct {
	Content []core.Part `json:"content"`
	Details any         `json:"details,omitempty"`
}

// Text concatenates the text parts of the result, joined with newlines.
func (r *Result) Text() string {
	var out string
	for _, p := range r.Content {
		tp, ok := p.(core.TextPart)
		if !ok {
			continue
		}
		if out != "" {
			out += "\n"
		}
		out += tp.Text
	}
	return out
}

// TextResult builds a Result holding a single text part.
func TextResult(text string) *Result {
	return &Result{Content: []core.Part{core.TextPart{Text: text}}}
}

// Tool is the uniform capability interface. Implementations should:
//   - Provide clear names (snake_case recommended) and descriptions
//   - Declare a JSON schema for Parameters; the dispatcher validates
//     arguments against it before Execute runs
//   - Observe ctx and stop cooperatively when it is cancelled
//   - Report progress via onUpdate where intermediate output exists
//
// Errors returned (or panics raised) by Execute never propagate: the
// dispatcher records them as error tool results the model can observe.
type Tool interface {
	// Name returns the unique identifier used in tool calls.
	Name() string

	// Label returns a short human-readable display name.
	Label() string

	// Description tells the model when and how to use the tool.
	Description() string

	// Parameters returns a JSON schema describing the expected arguments.
	Parameters() map[string]any

	// Execute runs the tool. toolCallID correlates the execution with the
	// originating assistant tool call.
	Execute(ctx context.Context, toolCallID string, args map[string]any, onUpdate UpdateFunc) (*Result, error)
}

// ValidationError re-exports the argument validation error type so callers
// can branch on it without importing internal packages.
type ValidationError = util.ValidationError

// ValidateArguments checks args against a tool's declared schema. The
// dispatcher calls this before Execute; exposed for direct tool testing.
func ValidateArguments(t Tool, args map[string]any) error {
	return util.ValidateArguments(args, t.Parameters())
}

// Codes the dispatcher attaches to failed tool results:
//
//	VALIDATION_ERROR  -> argument parse / schema mismatch, the tool never ran
//	EXECUTION_ERROR   -> the tool ran and returned an error or panicked
//
// A tool may return a *ToolError directly to supply its own code; the
// dispatcher passes it through unchanged. Results for unknown tools and for
// calls skipped after a steering message carry no code.
const (
	CodeValidationError = "VALIDATION_ERROR"
	CodeExecutionError  = "EXECUTION_ERROR"
)

// ToolError represents categorized failures during tool execution. The
// dispatcher stores it in the failed ToolResultMessage's Details, so event
// consumers can branch on Code while the model sees only the message text.
type ToolError struct {
	Tool    string `json:"tool"`    // Name of the tool that failed
	Message string `json:"message"` // Error message
	Code    string `json:"code"`    // Error code for categorization
}

// Error implements the error interface.
func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{Tool: tool, Message: message, Code: code}
}
