package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Kochanac/pi-mono/core"
	"github.com/Kochanac/pi-mono/internal/util"
	"github.com/Kochanac/pi-mono/tool"
)

// skippedResultText is the body of the synthetic error result recorded for
// tool calls abandoned after a steering message arrived.
const skippedResultText = "Skipped due to queued user message."

// runTools dispatches the assistant's tool calls sequentially in declaration
// order. After each result it runs advisors, then polls steering; a non-empty
// poll skips every remaining call with a synthetic error result. It returns
// the results (exactly one per call) and the steering messages, if any.
func (r *run) runTools(ctx context.Context, calls []core.ToolCallBlock) ([]*core.ToolResultMessage, []core.Message) {
	results := make([]*core.ToolResultMessage, 0, len(calls))
	var steering []core.Message

	for _, tc := range calls {
		if len(steering) > 0 {
			results = append(results, r.skipCall(tc))
			continue
		}

		res := r.executeCall(ctx, tc)
		r.appendMessage(res)
		results = append(results, res)

		r.runAdvisors(ctx, tc, res)

		if msgs := r.pollSteering(ctx); len(msgs) > 0 {
			r.logger.Info("agent.tools.interrupted", "tool", tc.Name, "queued", len(msgs))
			steering = msgs
		}
	}

	return results, steering
}

// skipCall records a skipped tool call. The start/end event pair is emitted
// without invoking the tool so consumers observe a uniform pairing, and
// advisors do not run on the synthetic result.
func (r *run) skipCall(tc core.ToolCallBlock) *core.ToolResultMessage {
	res := core.NewToolErrorMessage(tc.ID, tc.Name, skippedResultText)
	r.stream.Push(core.ToolExecutionStartEvent{ToolCallID: tc.ID, ToolName: tc.Name, Args: tc.Arguments})
	r.stream.Push(core.ToolExecutionEndEvent{ToolCallID: tc.ID, ToolName: tc.Name, Result: res, IsError: true})
	r.appendMessage(res)
	return res
}

// executeCall runs one tool call: lookup, argument validation, execution with
// abort signal and progress forwarding. Every failure mode lands in the
// returned result with IsError=true; errors are never re-thrown.
func (r *run) executeCall(ctx context.Context, tc core.ToolCallBlock) *core.ToolResultMessage {
	r.stream.Push(core.ToolExecutionStartEvent{ToolCallID: tc.ID, ToolName: tc.Name, Args: tc.Arguments})

	start := time.Now()
	res := r.invoke(ctx, tc)

	r.logger.Info(
		"agent.tool.executed",
		"tool", tc.Name,
		"tool_call_id", tc.ID,
		"duration_ms", time.Since(start).Milliseconds(),
		"error", res.IsError,
	)

	r.stream.Push(core.ToolExecutionEndEvent{
		ToolCallID: tc.ID,
		ToolName:   tc.Name,
		Result:     res,
		IsError:    res.IsError,
	})

	return res
}

func (r *run) invoke(ctx context.Context, tc core.ToolCallBlock) *core.ToolResultMessage {
	t, ok := findTool(r.actx.Tools, tc.Name)
	if !ok {
		return core.NewToolErrorMessage(tc.ID, tc.Name, fmt.Sprintf("Tool %s not found", tc.Name))
	}

	args, err := parseArguments(tc.Arguments)
	if err == nil {
		err = util.ValidateArguments(args, t.Parameters())
	}
	if err != nil {
		// The tool never ran; the model sees the validator's message and
		// event consumers can branch on the code.
		return errorResult(tc, err.Error(), tool.NewToolError(tc.Name, err.Error(), tool.CodeValidationError))
	}

	onUpdate := func(partial any) {
		r.stream.Push(core.ToolExecutionUpdateEvent{ToolCallID: tc.ID, ToolName: tc.Name, Partial: partial})
	}

	out, err := safeExecute(ctx, t, tc.ID, args, onUpdate)
	if err != nil {
		var terr *tool.ToolError
		if !errors.As(err, &terr) {
			terr = tool.NewToolError(tc.Name, err.Error(), tool.CodeExecutionError)
		}
		return errorResult(tc, err.Error(), terr)
	}

	res := &core.ToolResultMessage{ToolCallID: tc.ID, ToolName: tc.Name, Details: out.Details}
	res.Content = out.Content
	if res.Content == nil {
		res.Content = []core.Part{}
	}
	return res
}

// errorResult builds a failed tool result whose Details carries the
// categorized *tool.ToolError.
func errorResult(tc core.ToolCallBlock, body string, terr *tool.ToolError) *core.ToolResultMessage {
	res := core.NewToolErrorMessage(tc.ID, tc.Name, body)
	res.Details = terr
	return res
}

// safeExecute shields the loop from panicking tools; a recovered panic is
// reported like any other execution error.
func safeExecute(
	ctx context.Context,
	t tool.Tool,
	toolCallID string,
	args map[string]any,
	onUpdate tool.UpdateFunc,
) (out *tool.Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("tool %s panicked: %v", t.Name(), rec)
		}
	}()

	out, err = t.Execute(ctx, toolCallID, args, onUpdate)
	if err == nil && out == nil {
		out = &tool.Result{}
	}
	return out, err
}

func findTool(tools []tool.Tool, name string) (tool.Tool, bool) {
	for _, t := range tools {
		if t.Name() == name {
			return t, true
		}
	}
	return nil, false
}

// parseArguments decodes the raw tool-call argument payload. An empty payload
// means no arguments; malformed JSON is a validation-grade failure.
func parseArguments(raw string) (map[string]any, error) {
	if raw == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("invalid tool arguments: %v", err)
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}
