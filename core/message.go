package core

import "time"

// Message kinds produced by the loop itself. Callers may define further kinds;
// the loop treats them as opaque and relies on the ConvertToLLM projection.
const (
	KindUser       = "user"
	KindAssistant  = "assistant"
	KindToolResult = "toolResult"
	KindAdvisor    = "advisor"
)

// Message is one entry of the conversation log. The Kind tag selects the
// concrete shape. Built-in kinds are the constants above; anything else is an
// extension variant owned by the caller.
type Message interface {
	Kind() string
}

// StopReason records why an assistant message stopped.
type StopReason string

// Stop reasons understood by the loop. Error and Aborted are terminal for the
// whole run; ToolUse drives the dispatcher; Length is surfaced unchanged.
const (
	StopReasonStop    StopReason = "stop"
	StopReasonToolUse StopReason = "toolUse"
	StopReasonError   StopReason = "error"
	StopReasonAborted StopReason = "aborted"
	StopReasonLength  StopReason = "length"
)

// Usage captures token accounting reported by the provider for one assistant
// message. Zero values mean the provider did not report usage.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// UserMessage is free-form user input: text and/or image parts.
type UserMessage struct {
	Content   []Part    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Kind implements Message.
func (*UserMessage) Kind() string { return KindUser }

// NewUserMessage builds a user message holding a single text part.
func NewUserMessage(text string) *UserMessage {
	return &UserMessage{
		Content:   []Part{TextPart{Text: text}},
		Timestamp: time.Now().UTC(),
	}
}

// AssistantMessage is one model response: an ordered block sequence plus
// termination metadata. While a response is streaming the message sits in the
// log as a partial and is replaced wholesale on every adapter event; after the
// terminal event it is immutable.
type AssistantMessage struct {
	Blocks     []Block    `json:"blocks"`
	StopReason StopReason `json:"stop_reason"`
	Model      string     `json:"model"`
	Usage      Usage      `json:"usage"`
}

// Kind implements Message.
func (*AssistantMessage) Kind() string { return KindAssistant }

// ToolCalls returns the tool-call blocks in declaration order.
func (m *AssistantMessage) ToolCalls() []ToolCallBlock {
	var calls []ToolCallBlock
	for _, b := range m.Blocks {
		if tc, ok := b.(ToolCallBlock); ok {
			calls = append(calls, tc)
		}
	}
	return calls
}

// Text concatenates the text blocks of the message, joined with newlines.
// Thinking blocks are excluded.
func (m *AssistantMessage) Text() string {
	var out string
	for _, b := range m.Blocks {
		tb, ok := b.(TextBlock)
		if !ok {
			continue
		}
		if out != "" {
			out += "\n"
		}
		out += tb.Text
	}
	return out
}

// Clone returns a deep copy safe to hand to event consumers while the
// original keeps mutating in the log.
func (m *AssistantMessage) Clone() *AssistantMessage {
	if m == nil {
		return nil
	}
	c := *m
	c.Blocks = make([]Block, len(m.Blocks))
	copy(c.Blocks, m.Blocks)
	return &c
}

// ToolResultMessage pairs a tool execution outcome with the originating
// assistant tool call. Exactly one result exists per tool-call id, including
// for calls that were skipped or failed (IsError=true). Details is opaque to
// the loop: successful executions carry the tool's own payload, validation
// and execution failures the dispatcher's categorized tool error. Results for
// unknown tools and skipped calls carry no Details.
type ToolResultMessage struct {
	ToolCallID string `json:"tool_call_id"`
	ToolName   string `json:"tool_name"`
	Content    []Part `json:"content"`
	Details    any    `json:"details,omitempty"`
	IsError    bool   `json:"is_error,omitempty"`
}

// Kind implements Message.
func (*ToolResultMessage) Kind() string { return KindToolResult }

// NewToolResultMessage builds a successful text tool result.
func NewToolResultMessage(toolCallID, toolName, text string) *ToolResultMessage {
	return &ToolResultMessage{
		ToolCallID: toolCallID,
		ToolName:   toolName,
		Content:    []Part{TextPart{Text: text}},
	}
}

// NewToolErrorMessage builds a failed tool result carrying the error text.
func NewToolErrorMessage(toolCallID, toolName, errText string) *ToolResultMessage {
	return &ToolResultMessage{
		ToolCallID: toolCallID,
		ToolName:   toolName,
		Content:    []Part{TextPart{Text: errText}},
		IsError:    true,
	}
}

// Text concatenates the text parts of the result, joined with newlines.
func (m *ToolResultMessage) Text() string {
	var out string
	for _, p := range m.Content {
		tp, ok := p.(TextPart)
		if !ok {
			continue
		}
		if out != "" {
			out += "\n"
		}
		out += tp.Text
	}
	return out
}

// AdvisorMessage records a sub-agent's final verdict injected into the parent
// log after the tool result that triggered it.
type AdvisorMessage struct {
	AdvisorName string    `json:"advisor_name"`
	Content     string    `json:"content"`
	Model       string    `json:"model"`
	Timestamp   time.Time `json:"timestamp"`
}

// Kind implements Message.
func (*AdvisorMessage) Kind() string { return KindAdvisor }
