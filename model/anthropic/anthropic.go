// Package anthropic provides a streaming model adapter for the Anthropic
// Claude Messages API.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/Kochanac/pi-mono/core"
	"github.com/Kochanac/pi-mono/model"
)

// Options configures the Anthropic model adapter.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
}

// Model adapts the Anthropic Messages streaming API to the generic
// model.Model interface.
type Model struct {
	opts Options
}

// NewModel creates a new Anthropic adapter. The API key is taken from the
// per-request options so rotating keys resolve fresh on every call; when the
// request carries none, the SDK falls back to its environment default.
func NewModel(optFns ...func(o *Options)) *Model {
	opts := Options{
		Model:       anthropic.ModelClaudeSonnet4_20250514,
		Temperature: 0.7,
		MaxTokens:   8192,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Model{opts: opts}
}

// Info returns metadata describing this Anthropic model implementation.
func (m *Model) Info() model.Info {
	return model.Info{Name: string(m.opts.Model), Provider: "anthropic"}
}

// Stream implements model.Model by running one Messages streaming call and
// translating SSE events into the adapter event sequence, maintaining a
// consistent partial snapshot throughout.
func (m *Model) Stream(ctx context.Context, req model.Request) *model.Handle {
	h := model.NewHandle()
	go m.stream(ctx, req, h)
	return h
}

func (m *Model) stream(ctx context.Context, req model.Request, h *model.Handle) {
	var clientOpts []option.RequestOption
	if req.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(req.APIKey))
	}
	client := anthropic.NewClient(clientOpts...)

	params := anthropic.MessageNewParams{
		Model:       m.opts.Model,
		Messages:    buildMessages(req.Messages),
		MaxTokens:   m.opts.MaxTokens,
		Temperature: anthropic.Float(m.opts.Temperature),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if len(req.Tools) > 0 {
		params.Tools = buildTools(req.Tools)
	}
	if budget := thinkingBudget(req.Reasoning); budget > 0 {
		params.Thinking = anthropic.ThinkingConfigParamOfEnabled(budget)
		// The API rejects temperature together with extended thinking.
		params.Temperature = anthropic.Float(1)
	}

	acc := &accumulator{model: string(m.opts.Model)}

	stream := client.Messages.NewStreaming(ctx, params)
	h.Push(model.StartEvent{PartialEvent: acc.snap()})

	for stream.Next() {
		event := stream.Current()

		switch ev := event.AsAny().(type) {
		case anthropic.MessageStartEvent:
			acc.usage.InputTokens = int(ev.Message.Usage.InputTokens)

		case anthropic.ContentBlockStartEvent:
			idx := int(ev.Index)
			switch blk := ev.ContentBlock.AsAny().(type) {
			case anthropic.TextBlock:
				acc.open(idx, core.TextBlock{})
				h.Push(model.TextStartEvent{PartialEvent: acc.snap(), Index: idx})
			case anthropic.ThinkingBlock:
				acc.open(idx, core.ThinkingBlock{})
				h.Push(model.ThinkingStartEvent{PartialEvent: acc.snap(), Index: idx})
			case anthropic.ToolUseBlock:
				acc.open(idx, core.ToolCallBlock{ID: blk.ID, Name: blk.Name})
				h.Push(model.ToolCallStartEvent{PartialEvent: acc.snap(), Index: idx})
			}

		case anthropic.ContentBlockDeltaEvent:
			idx := int(ev.Index)
			switch delta := ev.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				acc.appendText(idx, delta.Text)
				h.Push(model.TextDeltaEvent{PartialEvent: acc.snap(), Index: idx, Delta: delta.Text})
			case anthropic.ThinkingDelta:
				acc.appendThinking(idx, delta.Thinking)
				h.Push(model.ThinkingDeltaEvent{PartialEvent: acc.snap(), Index: idx, Delta: delta.Thinking})
			case anthropic.InputJSONDelta:
				acc.appendArguments(idx, delta.PartialJSON)
				h.Push(model.ToolCallDeltaEvent{PartialEvent: acc.snap(), Index: idx, Delta: delta.PartialJSON})
			}

		case anthropic.ContentBlockStopEvent:
			idx := int(ev.Index)
			switch acc.blockAt(idx).(type) {
			case core.TextBlock:
				h.Push(model.TextEndEvent{PartialEvent: acc.snap(), Index: idx})
			case core.ThinkingBlock:
				h.Push(model.ThinkingEndEvent{PartialEvent: acc.snap(), Index: idx})
			case core.ToolCallBlock:
				h.Push(model.ToolCallEndEvent{PartialEvent: acc.snap(), Index: idx})
			}

		case anthropic.MessageDeltaEvent:
			acc.usage.OutputTokens = int(ev.Usage.OutputTokens)
			acc.stopReason = mapStopReason(string(ev.Delta.StopReason))
		}
	}

	if err := stream.Err(); err != nil {
		final := acc.final()
		final.StopReason = core.StopReasonError
		if ctx.Err() != nil {
			final.StopReason = core.StopReasonAborted
		}
		h.Fail(final, fmt.Errorf("anthropic streaming error: %w", err))
		return
	}

	h.Done(acc.final())
}

// accumulator maintains the evolving assistant message as SSE events arrive.
type accumulator struct {
	model      string
	blocks     []core.Block
	stopReason core.StopReason
	usage      core.Usage
}

func (a *accumulator) open(idx int, b core.Block) {
	for len(a.blocks) <= idx {
		a.blocks = append(a.blocks, core.TextBlock{})
	}
	a.blocks[idx] = b
}

func (a *accumulator) blockAt(idx int) core.Block {
	if idx < 0 || idx >= len(a.blocks) {
		return nil
	}
	return a.blocks[idx]
}

func (a *accumulator) appendText(idx int, delta string) {
	if tb, ok := a.blockAt(idx).(core.TextBlock); ok {
		tb.Text += delta
		a.blocks[idx] = tb
	}
}

func (a *accumulator) appendThinking(idx int, delta string) {
	if tb, ok := a.blockAt(idx).(core.ThinkingBlock); ok {
		tb.Thinking += delta
		a.blocks[idx] = tb
	}
}

func (a *accumulator) appendArguments(idx int, delta string) {
	if tc, ok := a.blockAt(idx).(core.ToolCallBlock); ok {
		tc.Arguments += delta
		a.blocks[idx] = tc
	}
}

// snap returns an independent snapshot for event payloads.
func (a *accumulator) snap() model.PartialEvent {
	msg := &core.AssistantMessage{Model: a.model, Blocks: make([]core.Block, len(a.blocks))}
	copy(msg.Blocks, a.blocks)
	return model.PartialEvent{Partial: msg}
}

func (a *accumulator) final() *core.AssistantMessage {
	msg := a.snap().Partial
	msg.StopReason = a.stopReason
	if msg.StopReason == "" {
		msg.StopReason = core.StopReasonStop
	}
	msg.Usage = a.usage
	msg.Usage.TotalTokens = msg.Usage.InputTokens + msg.Usage.OutputTokens
	return msg
}

func mapStopReason(reason string) core.StopReason {
	switch reason {
	case "tool_use":
		return core.StopReasonToolUse
	case "max_tokens":
		return core.StopReasonLength
	case "end_turn", "stop_sequence":
		return core.StopReasonStop
	default:
		return core.StopReasonStop
	}
}

func thinkingBudget(level model.ReasoningLevel) int64 {
	switch level {
	case model.ReasoningLow:
		return 2048
	case model.ReasoningMedium:
		return 8192
	case model.ReasoningHigh:
		return 16384
	default:
		return 0
	}
}

// buildMessages converts projected core messages to Anthropic message params.
// Tool results become user-role tool_result blocks, per the Messages API.
func buildMessages(msgs []core.Message) []anthropic.MessageParam {
	var out []anthropic.MessageParam

	for _, m := range msgs {
		switch msg := m.(type) {
		case *core.UserMessage:
			if blocks := userBlocks(msg.Content); len(blocks) > 0 {
				out = append(out, anthropic.NewUserMessage(blocks...))
			}
		case *core.AssistantMessage:
			if blocks := assistantBlocks(msg); len(blocks) > 0 {
				out = append(out, anthropic.NewAssistantMessage(blocks...))
			}
		case *core.ToolResultMessage:
			out = append(out, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(msg.ToolCallID, msg.Text(), msg.IsError),
			))
		}
	}

	return out
}

func userBlocks(parts []core.Part) []anthropic.ContentBlockParamUnion {
	var blocks []anthropic.ContentBlockParamUnion
	for _, p := range parts {
		switch part := p.(type) {
		case core.TextPart:
			if part.Text != "" {
				blocks = append(blocks, anthropic.NewTextBlock(part.Text))
			}
		case core.ImagePart:
			blocks = append(blocks, anthropic.NewImageBlockBase64(part.MimeType, part.Data))
		}
	}
	return blocks
}

func assistantBlocks(msg *core.AssistantMessage) []anthropic.ContentBlockParamUnion {
	var blocks []anthropic.ContentBlockParamUnion
	for _, b := range msg.Blocks {
		switch blk := b.(type) {
		case core.TextBlock:
			if blk.Text != "" {
				blocks = append(blocks, anthropic.NewTextBlock(blk.Text))
			}
		case core.ToolCallBlock:
			var input any
			if blk.Arguments != "" {
				if err := json.Unmarshal([]byte(blk.Arguments), &input); err != nil {
					input = blk.Arguments // fallback to raw string
				}
			}
			blocks = append(blocks, anthropic.NewToolUseBlock(blk.ID, input, blk.Name))
		}
		// Thinking blocks are not replayed to the API.
	}
	return blocks
}

// buildTools converts tool declarations to the Anthropic tool format.
func buildTools(tools []model.ToolDefinition) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, len(tools))

	for i, t := range tools {
		inputSchema := anthropic.ToolInputSchemaParam{
			Type: constant.Object("object"),
		}

		if t.Parameters != nil {
			if properties, exists := t.Parameters["properties"]; exists {
				inputSchema.Properties = properties
			}
			if required, exists := t.Parameters["required"]; exists {
				inputSchema.Required = requiredStrings(required)
			}
		}

		out[i] = anthropic.ToolUnionParam{OfTool: &anthropic.ToolParam{
			Name:        t.Name,
			Description: anthropic.String(t.Description),
			InputSchema: inputSchema,
		}}
	}

	return out
}

func requiredStrings(required any) []string {
	switch req := required.(type) {
	case []string:
		return req
	case []any:
		var out []string
		for _, r := range req {
			if s, ok := r.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
