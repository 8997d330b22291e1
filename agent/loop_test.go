package agent

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kochanac/pi-mono/core"
	"github.com/Kochanac/pi-mono/internal/testutil"
	"github.com/Kochanac/pi-mono/model"
	"github.com/Kochanac/pi-mono/tool"
)

// echoTool returns "echoed: <value>".
func echoTool() tool.Tool {
	return tool.NewFunctionTool(
		"echo", "Echo", "Echo the provided value back",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"value": map[string]any{"type": "string"},
			},
			"required": []string{"value"},
		},
		func(_ context.Context, _ string, args map[string]any, _ tool.UpdateFunc) (*tool.Result, error) {
			value, _ := args["value"].(string)
			return tool.TextResult("echoed: " + value), nil
		},
	)
}

func baseConfig(m *model.MockModel) Config {
	return Config{Model: m, ConvertToLLM: DefaultConvertToLLM}
}

// messageQueue is a caller-side steering/follow-up source honoring the
// discharge contract: messages are returned once.
type messageQueue struct {
	mu   sync.Mutex
	msgs []core.Message
}

func (q *messageQueue) add(msgs ...core.Message) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.msgs = append(q.msgs, msgs...)
}

func (q *messageQueue) poll(context.Context) ([]core.Message, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.msgs
	q.msgs = nil
	return out, nil
}

func TestStart_PlainQA(t *testing.T) {
	m := model.NewMockModel().EnqueueText("hello")
	actx := &Context{}

	stream, err := Start(context.Background(), []core.Message{core.NewUserMessage("hi")}, actx, baseConfig(m))
	require.NoError(t, err)

	events := testutil.Collect(stream)
	result := stream.Result()

	// Terminal value: the prompt plus the assistant response.
	require.Len(t, result, 2)
	assert.Equal(t, core.KindUser, result[0].Kind())
	asst, ok := result[1].(*core.AssistantMessage)
	require.True(t, ok)
	assert.Equal(t, "hello", asst.Text())
	assert.Equal(t, core.StopReasonStop, asst.StopReason)

	// Event skeleton (message_update events interleave between start/end).
	names := testutil.EventNames(events)
	assert.Equal(t, "agent_start", names[0])
	assert.Equal(t, "turn_start", names[1])
	assert.Equal(t, "message_start(user)", names[2])
	assert.Equal(t, "message_end(user)", names[3])
	assert.Equal(t, "message_start(assistant)", names[4])
	assert.Equal(t, "message_end(assistant)", names[len(names)-3])
	assert.Equal(t, "turn_end", names[len(names)-2])
	assert.Equal(t, "agent_end", names[len(names)-1])
}

func TestStart_SingleToolRoundTrip(t *testing.T) {
	m := model.NewMockModel().
		EnqueueToolCall("tc-1", "echo", `{"value":"x"}`).
		EnqueueText("done")

	actx := &Context{Tools: []tool.Tool{echoTool()}}

	stream, err := Start(context.Background(), []core.Message{core.NewUserMessage("echo x")}, actx, baseConfig(m))
	require.NoError(t, err)

	events := testutil.Collect(stream)
	result := stream.Result()

	// Log suffix: user, assistant 1, toolResult, assistant 2.
	require.Len(t, result, 4)
	toolRes, ok := result[2].(*core.ToolResultMessage)
	require.True(t, ok)
	assert.Equal(t, "tc-1", toolRes.ToolCallID)
	assert.Equal(t, "echoed: x", toolRes.Text())
	assert.False(t, toolRes.IsError)
	assert.Equal(t, "done", result[3].(*core.AssistantMessage).Text())

	// tool_execution_start precedes tool_execution_end precedes the
	// toolResult message_end.
	names := testutil.EventNames(events)
	idxStart := indexOf(names, "tool_execution_start(echo)")
	idxEnd := indexOf(names, "tool_execution_end(echo)")
	idxMsgEnd := indexOf(names, "message_end(toolResult)")
	require.GreaterOrEqual(t, idxStart, 0)
	assert.Less(t, idxStart, idxEnd)
	assert.Less(t, idxEnd, idxMsgEnd)

	// Two turns were run.
	assert.Len(t, testutil.Filter(events, "turn_start"), 2)
}

func TestStart_EmptyPromptListIsLegal(t *testing.T) {
	m := model.NewMockModel().EnqueueText("unprompted")
	actx := &Context{}

	stream, err := Start(context.Background(), nil, actx, baseConfig(m))
	require.NoError(t, err)

	events := testutil.Collect(stream)
	names := testutil.EventNames(events)
	assert.Equal(t, "agent_start", names[0])
	assert.Equal(t, "turn_start", names[1])

	result := stream.Result()
	require.Len(t, result, 1)
	assert.Equal(t, "unprompted", result[0].(*core.AssistantMessage).Text())
}

func TestStart_StreamErrorTerminatesRun(t *testing.T) {
	m := model.NewMockModel().EnqueueError(fmt.Errorf("provider exploded"))
	actx := &Context{}

	stream, err := Start(context.Background(), []core.Message{core.NewUserMessage("hi")}, actx, baseConfig(m))
	require.NoError(t, err)

	events := testutil.Collect(stream)
	result := stream.Result()

	asst, ok := result[len(result)-1].(*core.AssistantMessage)
	require.True(t, ok)
	assert.Equal(t, core.StopReasonError, asst.StopReason)

	names := testutil.EventNames(events)
	assert.Equal(t, "turn_end", names[len(names)-2])
	assert.Equal(t, "agent_end", names[len(names)-1])
}

func TestStart_FollowUpContinuation(t *testing.T) {
	m := model.NewMockModel().
		EnqueueText("first answer").
		EnqueueText("second answer")

	followUps := &messageQueue{}
	followUps.add(core.NewUserMessage("one more"))

	cfg := baseConfig(m)
	cfg.GetFollowUpMessages = followUps.poll

	stream, err := Start(context.Background(), []core.Message{core.NewUserMessage("hi")}, &Context{}, cfg)
	require.NoError(t, err)

	events := testutil.Collect(stream)
	result := stream.Result()

	// user, assistant 1, follow-up user, assistant 2.
	require.Len(t, result, 4)
	assert.Equal(t, "one more", result[2].(*core.UserMessage).Content[0].(core.TextPart).Text)
	assert.Equal(t, "second answer", result[3].(*core.AssistantMessage).Text())

	assert.Len(t, testutil.Filter(events, "turn_start"), 2)
}

func TestStart_TerminatesWhenPollersEmpty(t *testing.T) {
	m := model.NewMockModel().EnqueueText("answer")

	cfg := baseConfig(m)
	cfg.GetSteeringMessages = (&messageQueue{}).poll
	cfg.GetFollowUpMessages = (&messageQueue{}).poll

	stream, err := Start(context.Background(), []core.Message{core.NewUserMessage("hi")}, &Context{}, cfg)
	require.NoError(t, err)

	events := testutil.Collect(stream)
	assert.Len(t, testutil.Filter(events, "turn_start"), 1)
	assert.Len(t, testutil.Filter(events, "agent_end"), 1)
}

func TestContinue_Preconditions(t *testing.T) {
	m := model.NewMockModel()

	_, err := Continue(context.Background(), &Context{}, baseConfig(m))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Cannot continue: no messages in context")

	actx := &Context{Messages: []core.Message{
		core.NewUserMessage("hi"),
		testutil.Assistant("hello"),
	}}
	_, err = Continue(context.Background(), actx, baseConfig(m))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Cannot continue from message role: assistant")
}

func TestContinue_MatchesStartEquivalence(t *testing.T) {
	runEvents := func(start bool) ([]string, []core.Message) {
		m := model.NewMockModel().EnqueueText("hello")
		if start {
			actx := &Context{Messages: []core.Message{}}
			stream, err := Start(context.Background(), []core.Message{core.NewUserMessage("hi")}, actx, baseConfig(m))
			require.NoError(t, err)
			return testutil.EventNames(testutil.Collect(stream)), stream.Result()
		}
		actx := &Context{Messages: []core.Message{core.NewUserMessage("hi")}}
		stream, err := Continue(context.Background(), actx, baseConfig(m))
		require.NoError(t, err)
		return testutil.EventNames(testutil.Collect(stream)), stream.Result()
	}

	startNames, startResult := runEvents(true)
	contNames, contResult := runEvents(false)

	// Continue does not replay the already-logged user message, so strip the
	// prompt injection events from the start run before comparing.
	trimmed := make([]string, 0, len(startNames))
	for _, n := range startNames {
		if n == "message_start(user)" || n == "message_end(user)" {
			continue
		}
		trimmed = append(trimmed, n)
	}
	assert.Equal(t, trimmed, contNames)

	// Assistant output is identical.
	assert.Equal(t,
		startResult[len(startResult)-1].(*core.AssistantMessage).Text(),
		contResult[len(contResult)-1].(*core.AssistantMessage).Text(),
	)
}

func TestStart_ToolCallPairingInvariant(t *testing.T) {
	m := model.NewMockModel().
		Enqueue(testutil.AssistantToolCalls(
			core.ToolCallBlock{ID: "tc-a", Name: "echo", Arguments: `{"value":"a"}`},
			core.ToolCallBlock{ID: "tc-b", Name: "missing_tool", Arguments: `{}`},
		)).
		EnqueueText("done")

	actx := &Context{Tools: []tool.Tool{echoTool()}}

	stream, err := Start(context.Background(), []core.Message{core.NewUserMessage("go")}, actx, baseConfig(m))
	require.NoError(t, err)
	testutil.Collect(stream)

	// Every toolCall id is matched by exactly one toolResult before the next
	// assistant message.
	log := actx.Messages
	pendingCalls := map[string]bool{}
	for _, msg := range log {
		switch m := msg.(type) {
		case *core.AssistantMessage:
			assert.Empty(t, pendingCalls, "unresolved tool calls before next assistant message")
			for _, tc := range m.ToolCalls() {
				pendingCalls[tc.ID] = true
			}
		case *core.ToolResultMessage:
			assert.True(t, pendingCalls[m.ToolCallID], "tool result without matching call: %s", m.ToolCallID)
			delete(pendingCalls, m.ToolCallID)
		}
	}
	assert.Empty(t, pendingCalls)
}

func TestStart_MessageEndMatchesPersistedLog(t *testing.T) {
	m := model.NewMockModel().EnqueueText("stable")
	actx := &Context{}

	stream, err := Start(context.Background(), []core.Message{core.NewUserMessage("hi")}, actx, baseConfig(m))
	require.NoError(t, err)
	events := testutil.Collect(stream)

	var asstEnd *core.AssistantMessage
	for _, ev := range events {
		if end, ok := ev.(core.MessageEndEvent); ok {
			if a, ok := end.Message.(*core.AssistantMessage); ok {
				asstEnd = a
			}
		}
	}
	require.NotNil(t, asstEnd)

	persisted := actx.Messages[len(actx.Messages)-1].(*core.AssistantMessage)
	assert.Equal(t, persisted.Text(), asstEnd.Text())
	assert.Equal(t, persisted.StopReason, asstEnd.StopReason)
}

func TestStart_APIKeyResolvedPerCall(t *testing.T) {
	m := model.NewMockModel().
		EnqueueToolCall("tc-1", "echo", `{"value":"x"}`).
		EnqueueText("done")

	calls := 0
	cfg := baseConfig(m)
	cfg.APIKey = "static"
	cfg.GetAPIKey = func(_ context.Context, provider string) (string, error) {
		calls++
		assert.Equal(t, "mock", provider)
		return fmt.Sprintf("key-%d", calls), nil
	}

	actx := &Context{Tools: []tool.Tool{echoTool()}}
	stream, err := Start(context.Background(), []core.Message{core.NewUserMessage("echo x")}, actx, cfg)
	require.NoError(t, err)
	testutil.Collect(stream)

	reqs := m.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "key-1", reqs[0].APIKey)
	assert.Equal(t, "key-2", reqs[1].APIKey)
}

func TestStart_ConvertToLLMRequired(t *testing.T) {
	_, err := Start(context.Background(), nil, &Context{}, Config{Model: model.NewMockModel()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ConvertToLLM")
}

func TestStart_TransformContextOnlyAffectsModelInput(t *testing.T) {
	m := model.NewMockModel().EnqueueText("ok")

	cfg := baseConfig(m)
	cfg.TransformContext = func(_ context.Context, msgs []core.Message) ([]core.Message, error) {
		// Drop everything but the last message.
		if len(msgs) > 1 {
			return msgs[len(msgs)-1:], nil
		}
		return msgs, nil
	}

	actx := &Context{Messages: []core.Message{core.NewUserMessage("old context")}}
	stream, err := Start(context.Background(), []core.Message{core.NewUserMessage("new question")}, actx, cfg)
	require.NoError(t, err)
	testutil.Collect(stream)

	// The model saw the pruned projection.
	reqs := m.Requests()
	require.Len(t, reqs, 1)
	assert.Len(t, reqs[0].Messages, 1)

	// The persistent log is untouched: old context, new question, assistant.
	assert.Len(t, actx.Messages, 3)
}

func TestStart_AbortedStreamStopsRun(t *testing.T) {
	m := model.NewMockModel().
		EnqueueText("never delivered").
		EnqueueText("never reached")

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // abort before the first block streams

	stream, err := Start(ctx, []core.Message{core.NewUserMessage("hi")}, &Context{}, baseConfig(m))
	require.NoError(t, err)

	events := testutil.Collect(stream)
	result := stream.Result()

	asst := result[len(result)-1].(*core.AssistantMessage)
	assert.Equal(t, core.StopReasonAborted, asst.StopReason)

	// Exactly one turn ran; no second model call happened.
	assert.Len(t, testutil.Filter(events, "turn_start"), 1)
	assert.Len(t, m.Requests(), 1)

	names := testutil.EventNames(events)
	assert.Equal(t, "agent_end", names[len(names)-1])
}

func indexOf(names []string, want string) int {
	for i, n := range names {
		if n == want {
			return i
		}
	}
	return -1
}
