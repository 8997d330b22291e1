package tool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kochanac/pi-mono/core"
)

func TestFunctionTool_Passthrough(t *testing.T) {
	var gotID string
	var gotArgs map[string]any

	ft := NewFunctionTool(
		"greet", "Greet", "Greets a person",
		map[string]any{
			"type":       "object",
			"properties": map[string]any{"name": map[string]any{"type": "string"}},
			"required":   []string{"name"},
		},
		func(_ context.Context, toolCallID string, args map[string]any, _ UpdateFunc) (*Result, error) {
			gotID = toolCallID
			gotArgs = args
			return TextResult("hi " + args["name"].(string)), nil
		},
	)

	assert.Equal(t, "greet", ft.Name())
	assert.Equal(t, "Greet", ft.Label())

	res, err := ft.Execute(context.Background(), "tc-42", map[string]any{"name": "sam"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "tc-42", gotID)
	assert.Equal(t, "sam", gotArgs["name"])

	require.Len(t, res.Content, 1)
	assert.Equal(t, "hi sam", res.Content[0].(core.TextPart).Text)
}

type structArgs struct {
	Query string `json:"query" description:"Search query"`
	Limit *int   `json:"limit"`
}

func TestFunctionToolFromStruct_SchemaDerivation(t *testing.T) {
	ft := NewFunctionToolFromStruct(
		"search", "Search", "Searches",
		structArgs{},
		func(context.Context, string, map[string]any, UpdateFunc) (*Result, error) {
			return TextResult("ok"), nil
		},
	)

	schema := ft.Parameters()
	props := schema["properties"].(map[string]any)
	assert.Contains(t, props, "query")
	assert.Contains(t, props, "limit")

	// The derived schema drives validation.
	assert.Error(t, ValidateArguments(ft, map[string]any{}))
	assert.NoError(t, ValidateArguments(ft, map[string]any{"query": "go"}))
}

func TestTextResult(t *testing.T) {
	res := TextResult("payload")
	require.Len(t, res.Content, 1)
	assert.Equal(t, "payload", res.Content[0].(core.TextPart).Text)
	assert.Nil(t, res.Details)
}

func TestToolError_Format(t *testing.T) {
	withCode := NewToolError("exec", "timed out", CodeExecutionError)
	assert.Equal(t, "tool error [EXECUTION_ERROR] in exec: timed out", withCode.Error())

	plain := &ToolError{Tool: "exec", Message: "timed out"}
	assert.Equal(t, "tool error in exec: timed out", plain.Error())
}
