package agent

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kochanac/pi-mono/core"
	"github.com/Kochanac/pi-mono/internal/testutil"
	"github.com/Kochanac/pi-mono/model"
	"github.com/Kochanac/pi-mono/tool"
)

func runOnce(t *testing.T, m *model.MockModel, actx *Context, cfg Config) ([]core.AgentEvent, []core.Message) {
	t.Helper()
	stream, err := Start(context.Background(), []core.Message{core.NewUserMessage("go")}, actx, cfg)
	require.NoError(t, err)
	events := testutil.Collect(stream)
	return events, stream.Result()
}

func toolResults(msgs []core.Message) []*core.ToolResultMessage {
	var out []*core.ToolResultMessage
	for _, m := range msgs {
		if res, ok := m.(*core.ToolResultMessage); ok {
			out = append(out, res)
		}
	}
	return out
}

func TestDispatcher_ToolNotFound(t *testing.T) {
	m := model.NewMockModel().
		EnqueueToolCall("tc-1", "nope", `{}`).
		EnqueueText("done")

	_, result := runOnce(t, m, &Context{}, baseConfig(m))

	results := toolResults(result)
	require.Len(t, results, 1)
	assert.True(t, results[0].IsError)
	assert.Equal(t, "Tool nope not found", results[0].Text())
}

func TestDispatcher_ArgumentValidationFailure(t *testing.T) {
	m := model.NewMockModel().
		EnqueueToolCall("tc-1", "echo", `{"wrong":"field"}`).
		EnqueueText("done")

	actx := &Context{Tools: []tool.Tool{echoTool()}}
	_, result := runOnce(t, m, actx, baseConfig(m))

	results := toolResults(result)
	require.Len(t, results, 1)
	assert.True(t, results[0].IsError)
	assert.Contains(t, results[0].Text(), "value")
	assert.Contains(t, results[0].Text(), "required")

	// The tool never ran, so the result is categorized as a validation
	// failure.
	terr, ok := results[0].Details.(*tool.ToolError)
	require.True(t, ok)
	assert.Equal(t, tool.CodeValidationError, terr.Code)
	assert.Equal(t, "echo", terr.Tool)
}

func TestDispatcher_MalformedArguments(t *testing.T) {
	m := model.NewMockModel().
		EnqueueToolCall("tc-1", "echo", `{"value":`).
		EnqueueText("done")

	actx := &Context{Tools: []tool.Tool{echoTool()}}
	_, result := runOnce(t, m, actx, baseConfig(m))

	results := toolResults(result)
	require.Len(t, results, 1)
	assert.True(t, results[0].IsError)
	assert.Contains(t, results[0].Text(), "invalid tool arguments")

	terr, ok := results[0].Details.(*tool.ToolError)
	require.True(t, ok)
	assert.Equal(t, tool.CodeValidationError, terr.Code)
}

// failingTool returns an error; panickingTool panics. Both must surface as
// identically shaped error results.
func failingTool(name string) tool.Tool {
	return tool.NewFunctionTool(
		name, name, "always fails",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(context.Context, string, map[string]any, tool.UpdateFunc) (*tool.Result, error) {
			return nil, fmt.Errorf("boom")
		},
	)
}

func panickingTool(name string) tool.Tool {
	return tool.NewFunctionTool(
		name, name, "always panics",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(context.Context, string, map[string]any, tool.UpdateFunc) (*tool.Result, error) {
			panic("boom")
		},
	)
}

func TestDispatcher_ErrorAndPanicProduceSameShape(t *testing.T) {
	m := model.NewMockModel().
		Enqueue(testutil.AssistantToolCalls(
			core.ToolCallBlock{ID: "tc-err", Name: "fail", Arguments: `{}`},
			core.ToolCallBlock{ID: "tc-panic", Name: "explode", Arguments: `{}`},
		)).
		EnqueueText("done")

	actx := &Context{Tools: []tool.Tool{failingTool("fail"), panickingTool("explode")}}
	_, result := runOnce(t, m, actx, baseConfig(m))

	results := toolResults(result)
	require.Len(t, results, 2)
	for _, res := range results {
		assert.True(t, res.IsError)
		assert.Contains(t, res.Text(), "boom")
		require.Len(t, res.Content, 1)

		// Both the returned error and the recovered panic are execution
		// failures.
		terr, ok := res.Details.(*tool.ToolError)
		require.True(t, ok)
		assert.Equal(t, tool.CodeExecutionError, terr.Code)
	}

	// The run survived both failures and produced the final answer.
	asst := result[len(result)-1].(*core.AssistantMessage)
	assert.Equal(t, "done", asst.Text())
}

func TestDispatcher_CustomToolErrorCodePreserved(t *testing.T) {
	rateLimited := tool.NewFunctionTool(
		"flaky", "Flaky", "always rate limited",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(context.Context, string, map[string]any, tool.UpdateFunc) (*tool.Result, error) {
			return nil, tool.NewToolError("flaky", "slow down", "RATE_LIMITED")
		},
	)

	m := model.NewMockModel().
		EnqueueToolCall("tc-1", "flaky", `{}`).
		EnqueueText("done")

	actx := &Context{Tools: []tool.Tool{rateLimited}}
	_, result := runOnce(t, m, actx, baseConfig(m))

	results := toolResults(result)
	require.Len(t, results, 1)
	assert.True(t, results[0].IsError)
	assert.Contains(t, results[0].Text(), "slow down")

	terr, ok := results[0].Details.(*tool.ToolError)
	require.True(t, ok)
	assert.Equal(t, "RATE_LIMITED", terr.Code)
}

func TestDispatcher_ToolNotFoundHasNoCode(t *testing.T) {
	m := model.NewMockModel().
		EnqueueToolCall("tc-1", "ghost", `{}`).
		EnqueueText("done")

	_, result := runOnce(t, m, &Context{}, baseConfig(m))

	results := toolResults(result)
	require.Len(t, results, 1)
	assert.True(t, results[0].IsError)
	assert.Nil(t, results[0].Details)
}

func TestDispatcher_ProgressUpdatesForwarded(t *testing.T) {
	progressTool := tool.NewFunctionTool(
		"progress", "Progress", "reports progress",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(_ context.Context, _ string, _ map[string]any, onUpdate tool.UpdateFunc) (*tool.Result, error) {
			onUpdate("halfway")
			onUpdate("almost")
			return tool.TextResult("finished"), nil
		},
	)

	m := model.NewMockModel().
		EnqueueToolCall("tc-1", "progress", `{}`).
		EnqueueText("done")

	actx := &Context{Tools: []tool.Tool{progressTool}}
	events, _ := runOnce(t, m, actx, baseConfig(m))

	updates := testutil.Filter(events, "tool_execution_update")
	require.Len(t, updates, 2)
	assert.Equal(t, "halfway", updates[0].(core.ToolExecutionUpdateEvent).Partial)
	assert.Equal(t, "almost", updates[1].(core.ToolExecutionUpdateEvent).Partial)
}

func TestDispatcher_SteeringSkipsRemainingCalls(t *testing.T) {
	m := model.NewMockModel().
		Enqueue(testutil.AssistantToolCalls(
			core.ToolCallBlock{ID: "tc-a", Name: "echo", Arguments: `{"value":"a"}`},
			core.ToolCallBlock{ID: "tc-b", Name: "echo", Arguments: `{"value":"b"}`},
		)).
		EnqueueText("redirected")

	steering := &messageQueue{}
	executed := 0
	countingEcho := tool.NewFunctionTool(
		"echo", "Echo", "echoes",
		map[string]any{
			"type":       "object",
			"properties": map[string]any{"value": map[string]any{"type": "string"}},
			"required":   []string{"value"},
		},
		func(_ context.Context, _ string, args map[string]any, _ tool.UpdateFunc) (*tool.Result, error) {
			executed++
			// Simulate the user typing while the first call runs.
			steering.add(core.NewUserMessage("stop and do X"))
			value, _ := args["value"].(string)
			return tool.TextResult("echoed: " + value), nil
		},
	)

	cfg := baseConfig(m)
	cfg.GetSteeringMessages = steering.poll

	actx := &Context{Tools: []tool.Tool{countingEcho}}
	events, result := runOnce(t, m, actx, cfg)

	// Only the first call executed.
	assert.Equal(t, 1, executed)

	results := toolResults(result)
	require.Len(t, results, 2)
	assert.False(t, results[0].IsError)
	assert.Equal(t, "echoed: a", results[0].Text())
	assert.True(t, results[1].IsError)
	assert.Equal(t, "Skipped due to queued user message.", results[1].Text())

	// The skipped call still gets its phantom start/end pair.
	starts := testutil.Filter(events, "tool_execution_start")
	ends := testutil.Filter(events, "tool_execution_end")
	assert.Len(t, starts, 2)
	assert.Len(t, ends, 2)

	// The next turn begins with the injected user message, then the model
	// produced the redirected answer.
	var sawSteering bool
	for _, msg := range result {
		if u, ok := msg.(*core.UserMessage); ok {
			if u.Content[0].(core.TextPart).Text == "stop and do X" {
				sawSteering = true
			}
		}
	}
	assert.True(t, sawSteering)
	assert.Equal(t, "redirected", result[len(result)-1].(*core.AssistantMessage).Text())
}

func TestDispatcher_SteeringSkipsAdvisorsOnSkippedResult(t *testing.T) {
	m := model.NewMockModel().
		Enqueue(testutil.AssistantToolCalls(
			core.ToolCallBlock{ID: "tc-a", Name: "echo", Arguments: `{"value":"a"}`},
			core.ToolCallBlock{ID: "tc-b", Name: "echo", Arguments: `{"value":"b"}`},
		)).
		EnqueueText("redirected").
		EnqueueText("advisor verdict") // would be consumed by the advisor if it ran

	steering := &messageQueue{}
	echo := tool.NewFunctionTool(
		"echo", "Echo", "echoes",
		map[string]any{
			"type":       "object",
			"properties": map[string]any{"value": map[string]any{"type": "string"}},
			"required":   []string{"value"},
		},
		func(_ context.Context, _ string, args map[string]any, _ tool.UpdateFunc) (*tool.Result, error) {
			steering.add(core.NewUserMessage("interrupt"))
			value, _ := args["value"].(string)
			return tool.TextResult("echoed: " + value), nil
		},
	)

	advisorRuns := 0
	cfg := baseConfig(m)
	cfg.GetSteeringMessages = steering.poll
	cfg.Advisors = []Advisor{{
		Name: "watcher",
		// Only react to the second (skipped) call's result.
		Trigger: func(_ context.Context, p AdvisorParams) (bool, error) {
			fired := p.ToolResult.ToolCallID == "tc-b"
			if fired {
				advisorRuns++
			}
			return fired, nil
		},
		CreateContext: func(_ context.Context, p AdvisorParams) (*AdvisorContext, error) {
			return &AdvisorContext{Messages: []core.Message{core.NewUserMessage("review")}}, nil
		},
	}}

	actx := &Context{Tools: []tool.Tool{echo}}
	runOnce(t, m, actx, cfg)

	// The skipped result never reaches the advisor pipeline.
	assert.Equal(t, 0, advisorRuns)
}
