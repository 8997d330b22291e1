package agent

import (
	"context"
	"fmt"

	"github.com/Kochanac/pi-mono/core"
	"github.com/Kochanac/pi-mono/logging"
	"github.com/Kochanac/pi-mono/model"
	"github.com/Kochanac/pi-mono/tool"
)

// run holds the mutable state of one loop invocation. It is confined to the
// single goroutine started by Start/Continue; the event stream is the only
// cross-goroutine boundary.
type run struct {
	cfg      Config
	actx     *Context
	stream   *core.EventStream
	streamFn model.StreamFunc
	logger   logging.Logger

	// newMessages accumulates the log suffix appended during this run; it is
	// the stream's sealed value.
	newMessages []core.Message
}

// execute drives the turn state machine until termination, then seals the
// stream. prompts are pushed verbatim on the start entry; the continue entry
// passes nil.
func (r *run) execute(ctx context.Context, prompts []core.Message, startEntry bool) {
	r.stream.Push(core.AgentStartEvent{})

	// Prompts form the first pending batch, injected after the first
	// turn_start together with any pre-polled steering messages.
	pending := prompts
	if startEntry {
		pending = append(pending, r.pollSteering(ctx)...)
	}

	for {
		r.stream.Push(core.TurnStartEvent{})

		for _, m := range pending {
			r.appendMessage(m)
		}
		pending = nil

		asst := r.streamAssistant(ctx)
		r.newMessages = append(r.newMessages, asst)

		if asst.StopReason == core.StopReasonError || asst.StopReason == core.StopReasonAborted {
			r.logger.Warn("agent.turn.terminal", "stop_reason", string(asst.StopReason))
			r.stream.Push(core.TurnEndEvent{Message: asst})
			r.finish()
			return
		}

		toolCalls := asst.ToolCalls()

		var results []*core.ToolResultMessage
		var steering []core.Message
		if len(toolCalls) > 0 {
			results, steering = r.runTools(ctx, toolCalls)
		}

		r.stream.Push(core.TurnEndEvent{Message: asst, ToolResults: results})

		// The dispatcher's steering (if it skipped the tail) wins; otherwise
		// poll once at turn end.
		if len(steering) == 0 {
			steering = r.pollSteering(ctx)
		}
		pending = steering

		if len(toolCalls) > 0 || len(pending) > 0 {
			continue
		}

		if followUp := r.pollFollowUp(ctx); len(followUp) > 0 {
			pending = followUp
			continue
		}

		r.finish()
		return
	}
}

// finish emits the single terminal event and seals the stream.
func (r *run) finish() {
	r.stream.Push(core.AgentEndEvent{Messages: r.newMessages})
	r.stream.End(r.newMessages)
}

// appendMessage records a completed message: start/end events, log append,
// accumulator append. Streaming assistant messages take the slot path in
// streamAssistant instead.
func (r *run) appendMessage(msg core.Message) {
	r.stream.Push(core.MessageStartEvent{Message: msg})
	r.actx.Messages = append(r.actx.Messages, msg)
	r.newMessages = append(r.newMessages, msg)
	r.stream.Push(core.MessageEndEvent{Message: msg})
}

// streamAssistant performs one model call: project the log, resolve the API
// key, stream the response while mutating the in-progress slot, and return
// the final assistant message (already in the log). Projection or key
// resolution failures are recorded as an assistant message with StopReason
// error, terminating the run at the next decide step.
func (r *run) streamAssistant(ctx context.Context) *core.AssistantMessage {
	msgs := r.actx.Messages

	if r.cfg.TransformContext != nil {
		transformed, err := r.cfg.TransformContext(ctx, msgs)
		if err != nil {
			return r.failTurn(fmt.Errorf("transform context: %w", err))
		}
		msgs = transformed
	}

	llmMsgs, err := r.cfg.ConvertToLLM(ctx, msgs)
	if err != nil {
		return r.failTurn(fmt.Errorf("convert to llm: %w", err))
	}

	apiKey := r.cfg.APIKey
	if r.cfg.GetAPIKey != nil {
		key, err := r.cfg.GetAPIKey(ctx, r.provider())
		if err != nil {
			return r.failTurn(fmt.Errorf("resolve api key: %w", err))
		}
		if key != "" {
			apiKey = key
		}
	}

	req := model.Request{
		System:    r.actx.SystemPrompt,
		Messages:  llmMsgs,
		Tools:     toolDefinitions(r.actx.Tools),
		APIKey:    apiKey,
		Reasoning: r.cfg.Reasoning,
	}

	r.logger.Debug("agent.model.call", "model", r.modelName(), "messages", len(llmMsgs), "tools", len(req.Tools))

	handle := r.streamFn(ctx, r.cfg.Model, req)

	slot := -1
	var final *core.AssistantMessage

	for ev := range handle.Events() {
		snapshot := ev.Snapshot()
		if snapshot == nil {
			continue
		}

		if model.IsTerminalEvent(ev) {
			final = snapshot
			if slot < 0 {
				slot = r.insertSlot(final)
			} else {
				r.actx.Messages[slot] = final
			}
			r.stream.Push(core.MessageEndEvent{Message: final.Clone()})
			continue
		}

		if slot < 0 {
			slot = r.insertSlot(snapshot)
			if _, ok := ev.(model.StartEvent); ok {
				continue
			}
		} else {
			r.actx.Messages[slot] = snapshot
		}
		r.stream.Push(core.MessageUpdateEvent{Message: snapshot.Clone(), StreamEvent: ev})
	}

	if final == nil {
		// Adapter closed without a terminal event; treat as a stream error.
		return r.failTurn(fmt.Errorf("model stream ended without terminal event"))
	}

	return final
}

// insertSlot appends the in-progress assistant message to the log and emits
// its message_start. All subsequent streaming updates replace this slot.
func (r *run) insertSlot(msg *core.AssistantMessage) int {
	slot := len(r.actx.Messages)
	r.actx.Messages = append(r.actx.Messages, msg)
	r.stream.Push(core.MessageStartEvent{Message: msg.Clone()})
	return slot
}

// failTurn records a pre-stream failure as an assistant message with
// StopReason error so the run terminates through the regular decide path.
func (r *run) failTurn(err error) *core.AssistantMessage {
	r.logger.Error("agent.model.failed", "error", err.Error())
	msg := &core.AssistantMessage{
		Blocks:     []core.Block{core.TextBlock{Text: err.Error()}},
		StopReason: core.StopReasonError,
		Model:      r.modelName(),
	}
	r.insertSlot(msg)
	r.stream.Push(core.MessageEndEvent{Message: msg.Clone()})
	return msg
}

// pollSteering asks the caller for queued mid-run messages. Poll errors are
// logged and treated as "no messages": steering is advisory, never fatal.
func (r *run) pollSteering(ctx context.Context) []core.Message {
	if r.cfg.GetSteeringMessages == nil {
		return nil
	}
	msgs, err := r.cfg.GetSteeringMessages(ctx)
	if err != nil {
		r.logger.Warn("agent.steering.poll_failed", "error", err.Error())
		return nil
	}
	return msgs
}

// pollFollowUp asks the caller for messages that continue an otherwise
// finished run.
func (r *run) pollFollowUp(ctx context.Context) []core.Message {
	if r.cfg.GetFollowUpMessages == nil {
		return nil
	}
	msgs, err := r.cfg.GetFollowUpMessages(ctx)
	if err != nil {
		r.logger.Warn("agent.followup.poll_failed", "error", err.Error())
		return nil
	}
	return msgs
}

func (r *run) provider() string {
	if r.cfg.Model == nil {
		return ""
	}
	return r.cfg.Model.Info().Provider
}

func (r *run) modelName() string {
	if r.cfg.Model == nil {
		return ""
	}
	return r.cfg.Model.Info().Name
}

// toolDefinitions projects the context's tool set into adapter declarations.
func toolDefinitions(tools []tool.Tool) []model.ToolDefinition {
	if len(tools) == 0 {
		return nil
	}
	defs := make([]model.ToolDefinition, len(tools))
	for i, t := range tools {
		defs[i] = model.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		}
	}
	return defs
}
