package core

// AgentEvent is one entry of the run's observable event sequence. The set is
// closed: only the loop produces events, consumers only inspect them.
type AgentEvent interface{ isAgentEvent() }

// AgentStartEvent opens a run. Always the first event.
type AgentStartEvent struct{}

func (AgentStartEvent) isAgentEvent() {}

// AgentEndEvent seals a run. Always the last event; exactly one per stream.
// Messages is the log suffix appended during the run.
type AgentEndEvent struct {
	Messages []Message
}

func (AgentEndEvent) isAgentEvent() {}

// TurnStartEvent opens one assistant turn.
type TurnStartEvent struct{}

func (TurnStartEvent) isAgentEvent() {}

// TurnEndEvent closes a turn with the assistant message and the tool results
// it produced (nil when the turn ended without tool calls).
type TurnEndEvent struct {
	Message     Message
	ToolResults []*ToolResultMessage
}

func (TurnEndEvent) isAgentEvent() {}

// MessageStartEvent announces a message entering the log. For assistant
// messages the payload is the initial partial snapshot.
type MessageStartEvent struct {
	Message Message
}

func (MessageStartEvent) isAgentEvent() {}

// MessageUpdateEvent carries one streaming increment of an in-progress
// assistant message. Message is a fresh defensive snapshot; StreamEvent is the
// originating adapter event (a model.StreamEvent, typed as any to keep core
// free of the adapter package).
type MessageUpdateEvent struct {
	Message     Message
	StreamEvent any
}

func (MessageUpdateEvent) isAgentEvent() {}

// MessageEndEvent closes a message. The payload equals the message finally
// persisted in the log.
type MessageEndEvent struct {
	Message Message
}

func (MessageEndEvent) isAgentEvent() {}

// ToolExecutionStartEvent announces one tool call about to execute. Emitted
// for skipped calls too, immediately followed by the end event, so consumers
// always observe a start/end pair per call.
type ToolExecutionStartEvent struct {
	ToolCallID string
	ToolName   string
	Args       string
}

func (ToolExecutionStartEvent) isAgentEvent() {}

// ToolExecutionUpdateEvent forwards a tool's progress callback payload.
type ToolExecutionUpdateEvent struct {
	ToolCallID string
	ToolName   string
	Partial    any
}

func (ToolExecutionUpdateEvent) isAgentEvent() {}

// ToolExecutionEndEvent closes one tool call with its result.
type ToolExecutionEndEvent struct {
	ToolCallID string
	ToolName   string
	Result     *ToolResultMessage
	IsError    bool
}

func (ToolExecutionEndEvent) isAgentEvent() {}

// AdvisorStartEvent announces an advisor triggered by a tool result.
type AdvisorStartEvent struct {
	AdvisorName string
	ToolName    string
}

func (AdvisorStartEvent) isAgentEvent() {}

// AdvisorChildEvent wraps one event of a nested advisor run for forwarding on
// the parent stream.
type AdvisorChildEvent struct {
	AdvisorName string
	Event       AgentEvent
}

func (AdvisorChildEvent) isAgentEvent() {}

// AdvisorEndEvent closes an advisor run with its extracted verdict. Content is
// empty when the advisor produced nothing to inject.
type AdvisorEndEvent struct {
	AdvisorName string
	Content     string
}

func (AdvisorEndEvent) isAgentEvent() {}

// AdvisorErrorEvent records an advisor failure. The parent run is unaffected.
type AdvisorErrorEvent struct {
	AdvisorName string
	Err         error
}

func (AdvisorErrorEvent) isAgentEvent() {}

// IsTerminal reports whether ev seals the stream it travels on.
func IsTerminal(ev AgentEvent) bool {
	_, ok := ev.(AgentEndEvent)
	return ok
}
