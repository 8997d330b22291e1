package tool

import (
	"context"

	"github.com/Kochanac/pi-mono/internal/util"
)

// FunctionTool is a generic adapter that exposes a plain Go function as a
// Tool. It has no internal mutable state after construction and is safe for
// concurrent use.
type FunctionTool struct {
	name        string
	label       string
	description string
	parameters  map[string]any
	fn          func(ctx context.Context, toolCallID string, args map[string]any, onUpdate UpdateFunc) (*Result, error)
}

// NewFunctionTool constructs a FunctionTool from an explicit schema and
// implementation.
//
// Example:
//
//	echo := tool.NewFunctionTool(
//	    "echo", "Echo", "Echo the provided value back",
//	    map[string]any{
//	        "type": "object",
//	        "properties": map[string]any{
//	            "value": map[string]any{"type": "string"},
//	        },
//	        "required": []string{"value"},
//	    },
//	    func(ctx context.Context, id string, args map[string]any, onUpdate tool.UpdateFunc) (*tool.Result, error) {
//	        return tool.TextResult("echoed: " + args["value"].(string)), nil
//	    },
//	)
func NewFunctionTool(
	name, label, description string,
	parameters map[string]any,
	fn func(ctx context.Context, toolCallID string, args map[string]any, onUpdate UpdateFunc) (*Result, error),
) *FunctionTool {
	return &FunctionTool{
		name:        name,
		label:       label,
		description: description,
		parameters:  parameters,
		fn:          fn,
	}
}

// NewFunctionToolFromStruct derives the parameter schema from a struct via
// reflection, equivalent to util.CreateSchema(structType).
func NewFunctionToolFromStruct(
	name, label, description string,
	structType any,
	fn func(ctx context.Context, toolCallID string, args map[string]any, onUpdate UpdateFunc) (*Result, error),
) *FunctionTool {
	return NewFunctionTool(name, label, description, util.CreateSchema(structType), fn)
}

// Name implements Tool.
func (t *FunctionTool) Name() string { return t.name }

// Label implements Tool.
func (t *FunctionTool) Label() string { return t.label }

// Description implements Tool.
func (t *FunctionTool) Description() string { return t.description }

// Parameters implements Tool.
func (t *FunctionTool) Parameters() map[string]any { return t.parameters }

// Execute implements Tool by delegating to the wrapped function.
func (t *FunctionTool) Execute(ctx context.Context, toolCallID string, args map[string]any, onUpdate UpdateFunc) (*Result, error) {
	return t.fn(ctx, toolCallID, args, onUpdate)
}
