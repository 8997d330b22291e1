// Package testutil provides small helpers for constructing messages and
// summarizing event streams in tests.
package testutil

import (
	"fmt"

	"github.com/Kochanac/pi-mono/core"
)

// User builds a user message with a single text part.
func User(text string) *core.UserMessage { return core.NewUserMessage(text) }

// Assistant builds a completed text-only assistant message.
func Assistant(text string) *core.AssistantMessage {
	return &core.AssistantMessage{
		Blocks:     []core.Block{core.TextBlock{Text: text}},
		StopReason: core.StopReasonStop,
	}
}

// AssistantToolCalls builds a completed assistant message holding the given
// tool calls.
func AssistantToolCalls(calls ...core.ToolCallBlock) *core.AssistantMessage {
	msg := &core.AssistantMessage{StopReason: core.StopReasonToolUse}
	for _, c := range calls {
		msg.Blocks = append(msg.Blocks, c)
	}
	return msg
}

// Collect drains the stream and returns every delivered event.
func Collect(s *core.EventStream) []core.AgentEvent {
	var events []core.AgentEvent
	for ev := range s.Events() {
		events = append(events, ev)
	}
	return events
}

// EventNames summarizes events as short type names for order assertions.
// message events include the message kind, e.g. "message_start(user)".
func EventNames(events []core.AgentEvent) []string {
	names := make([]string, 0, len(events))
	for _, ev := range events {
		names = append(names, EventName(ev))
	}
	return names
}

// EventName returns the short name of a single event.
func EventName(ev core.AgentEvent) string {
	switch e := ev.(type) {
	case core.AgentStartEvent:
		return "agent_start"
	case core.AgentEndEvent:
		return "agent_end"
	case core.TurnStartEvent:
		return "turn_start"
	case core.TurnEndEvent:
		return "turn_end"
	case core.MessageStartEvent:
		return fmt.Sprintf("message_start(%s)", e.Message.Kind())
	case core.MessageUpdateEvent:
		return fmt.Sprintf("message_update(%s)", e.Message.Kind())
	case core.MessageEndEvent:
		return fmt.Sprintf("message_end(%s)", e.Message.Kind())
	case core.ToolExecutionStartEvent:
		return fmt.Sprintf("tool_execution_start(%s)", e.ToolName)
	case core.ToolExecutionUpdateEvent:
		return fmt.Sprintf("tool_execution_update(%s)", e.ToolName)
	case core.ToolExecutionEndEvent:
		return fmt.Sprintf("tool_execution_end(%s)", e.ToolName)
	case core.AdvisorStartEvent:
		return fmt.Sprintf("advisor_start(%s)", e.AdvisorName)
	case core.AdvisorChildEvent:
		return fmt.Sprintf("advisor_event(%s)", e.AdvisorName)
	case core.AdvisorEndEvent:
		return fmt.Sprintf("advisor_end(%s)", e.AdvisorName)
	case core.AdvisorErrorEvent:
		return fmt.Sprintf("advisor_error(%s)", e.AdvisorName)
	default:
		return fmt.Sprintf("%T", ev)
	}
}

// Filter returns the events whose short name (before any parenthesis) equals
// name.
func Filter(events []core.AgentEvent, name string) []core.AgentEvent {
	var out []core.AgentEvent
	for _, ev := range events {
		n := EventName(ev)
		for i := range n {
			if n[i] == '(' {
				n = n[:i]
				break
			}
		}
		if n == name {
			out = append(out, ev)
		}
	}
	return out
}
