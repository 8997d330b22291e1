// Package openai provides a streaming model adapter for the OpenAI Chat
// Completions API, including function/tool calling.
package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/Kochanac/pi-mono/core"
	"github.com/Kochanac/pi-mono/model"
)

// Options configure the OpenAI model adapter.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
}

// Model adapts the OpenAI Chat Completions streaming API to the generic
// model.Model interface.
type Model struct {
	opts Options
}

// NewModel creates a new OpenAI adapter. The API key travels with each
// request so rotating keys resolve fresh per call.
func NewModel(optFns ...func(o *Options)) *Model {
	opts := Options{
		Model:               openai.ChatModelGPT4o,
		Temperature:         0.7,
		MaxCompletionTokens: 8192,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{opts: opts}
}

// Info returns metadata describing this OpenAI model implementation.
func (m *Model) Info() model.Info {
	return model.Info{Name: m.opts.Model, Provider: "openai"}
}

// Stream implements model.Model by running one streaming chat completion and
// translating chunks into the adapter event sequence.
func (m *Model) Stream(ctx context.Context, req model.Request) *model.Handle {
	h := model.NewHandle()
	go m.stream(ctx, req, h)
	return h
}

// chunkState tracks block growth across streamed chunks. OpenAI interleaves
// one text stream with indexed tool-call deltas; blocks are laid out as text
// first (index 0 when present) followed by tool calls in provider order.
type chunkState struct {
	modelName string
	text      string
	hasText   bool
	calls     []core.ToolCallBlock
	callIndex map[int64]int
	usage     core.Usage
}

func (s *chunkState) snapshot() *core.AssistantMessage {
	msg := &core.AssistantMessage{Model: s.modelName}
	if s.hasText {
		msg.Blocks = append(msg.Blocks, core.TextBlock{Text: s.text})
	}
	for _, c := range s.calls {
		msg.Blocks = append(msg.Blocks, c)
	}
	return msg
}

// textIndex is the block index of the text stream (always 0 when present).
func (s *chunkState) textIndex() int { return 0 }

// blockIndex maps a provider tool-call index to the block index.
func (s *chunkState) blockIndex(provIdx int64) int {
	base := 0
	if s.hasText {
		base = 1
	}
	return base + s.callIndex[provIdx]
}

func (m *Model) stream(ctx context.Context, req model.Request, h *model.Handle) {
	var clientOpts []option.RequestOption
	if req.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(req.APIKey))
	}
	client := openai.NewClient(clientOpts...)

	params := m.buildParams(req)

	st := &chunkState{modelName: m.opts.Model, callIndex: map[int64]int{}}
	snap := func() model.PartialEvent {
		return model.PartialEvent{Partial: st.snapshot()}
	}

	stream := client.Chat.Completions.NewStreaming(ctx, params)
	h.Push(model.StartEvent{PartialEvent: snap()})

	finishReason := ""

	for stream.Next() {
		chunk := stream.Current()
		if chunk.Usage.TotalTokens > 0 {
			st.usage = core.Usage{
				InputTokens:  int(chunk.Usage.PromptTokens),
				OutputTokens: int(chunk.Usage.CompletionTokens),
				TotalTokens:  int(chunk.Usage.TotalTokens),
			}
		}

		for _, choice := range chunk.Choices {
			if choice.Delta.Content != "" {
				if !st.hasText {
					st.hasText = true
					h.Push(model.TextStartEvent{PartialEvent: snap(), Index: st.textIndex()})
				}
				st.text += choice.Delta.Content
				h.Push(model.TextDeltaEvent{PartialEvent: snap(), Index: st.textIndex(), Delta: choice.Delta.Content})
			}

			for _, tc := range choice.Delta.ToolCalls {
				pos, seen := st.callIndex[tc.Index]
				if !seen {
					pos = len(st.calls)
					st.callIndex[tc.Index] = pos
					st.calls = append(st.calls, core.ToolCallBlock{})
					h.Push(model.ToolCallStartEvent{PartialEvent: snap(), Index: st.blockIndex(tc.Index)})
				}
				call := st.calls[pos]
				if tc.ID != "" {
					call.ID = tc.ID
				}
				if tc.Function.Name != "" {
					call.Name = tc.Function.Name
				}
				if tc.Function.Arguments != "" {
					call.Arguments += tc.Function.Arguments
				}
				st.calls[pos] = call
				h.Push(model.ToolCallDeltaEvent{PartialEvent: snap(), Index: st.blockIndex(tc.Index), Delta: tc.Function.Arguments})
			}

			if choice.FinishReason != "" {
				finishReason = choice.FinishReason
				if st.hasText {
					h.Push(model.TextEndEvent{PartialEvent: snap(), Index: st.textIndex()})
				}
				for provIdx := range st.callIndex {
					h.Push(model.ToolCallEndEvent{PartialEvent: snap(), Index: st.blockIndex(provIdx)})
				}
			}
		}
	}

	if err := stream.Err(); err != nil {
		final := st.snapshot()
		final.StopReason = core.StopReasonError
		if ctx.Err() != nil {
			final.StopReason = core.StopReasonAborted
		}
		final.Usage = st.usage
		h.Fail(final, fmt.Errorf("openai streaming error: %w", err))
		return
	}

	final := st.snapshot()
	final.StopReason = mapFinishReason(finishReason, len(st.calls) > 0)
	final.Usage = st.usage
	h.Done(final)
}

func mapFinishReason(reason string, hasToolCalls bool) core.StopReason {
	switch reason {
	case "tool_calls", "function_call":
		return core.StopReasonToolUse
	case "length":
		return core.StopReasonLength
	case "stop":
		if hasToolCalls {
			return core.StopReasonToolUse
		}
		return core.StopReasonStop
	default:
		return core.StopReasonStop
	}
}

// buildParams assembles the request parameters including tool definitions.
func (m *Model) buildParams(req model.Request) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Messages:            buildMessages(req),
		Model:               m.opts.Model,
		Temperature:         openai.Float(m.opts.Temperature),
		MaxCompletionTokens: openai.Int(m.opts.MaxCompletionTokens),
	}

	if req.Reasoning != "" {
		params.ReasoningEffort = shared.ReasoningEffort(req.Reasoning)
	}

	if len(req.Tools) > 0 {
		tools := make([]openai.ChatCompletionToolParam, len(req.Tools))
		for i, t := range req.Tools {
			tools[i] = openai.ChatCompletionToolParam{
				Type: "function",
				Function: openai.FunctionDefinitionParam{
					Name:        t.Name,
					Description: openai.String(t.Description),
					Parameters:  t.Parameters,
				},
			}
		}
		params.Tools = tools
	}

	return params
}

// buildMessages converts projected core messages into chat messages. Tool
// results become role "tool" messages referencing the originating call id.
func buildMessages(req model.Request) []openai.ChatCompletionMessageParamUnion {
	var out []openai.ChatCompletionMessageParamUnion

	if req.System != "" {
		out = append(out, openai.SystemMessage(req.System))
	}

	for _, m := range req.Messages {
		switch msg := m.(type) {
		case *core.UserMessage:
			if text := partsText(msg.Content); text != "" {
				out = append(out, openai.UserMessage(text))
			}
		case *core.AssistantMessage:
			toolCalls := assistantToolCalls(msg)
			if len(toolCalls) == 0 {
				if text := msg.Text(); text != "" {
					out = append(out, openai.AssistantMessage(text))
				}
				continue
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{
				OfAssistant: &openai.ChatCompletionAssistantMessageParam{
					Role:      "assistant",
					ToolCalls: toolCalls,
				},
			})
		case *core.ToolResultMessage:
			out = append(out, openai.ToolMessage(msg.Text(), msg.ToolCallID))
		}
	}

	return out
}

func partsText(parts []core.Part) string {
	var text string
	for _, p := range parts {
		if tp, ok := p.(core.TextPart); ok {
			text += tp.Text
		}
	}
	return text
}

func assistantToolCalls(msg *core.AssistantMessage) []openai.ChatCompletionMessageToolCallParam {
	var calls []openai.ChatCompletionMessageToolCallParam
	for _, tc := range msg.ToolCalls() {
		calls = append(calls, openai.ChatCompletionMessageToolCallParam{
			ID:   tc.ID,
			Type: "function",
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      tc.Name,
				Arguments: tc.Arguments,
			},
		})
	}
	return calls
}
