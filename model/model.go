// Package model defines the streaming adapter contract by which the agent
// loop asks an external LLM provider for an assistant message, delivered as a
// sequence of incremental events.
package model

import (
	"context"

	"github.com/Kochanac/pi-mono/core"
)

// ReasoningLevel selects how much provider-side reasoning to request. The
// empty value leaves the provider default untouched.
type ReasoningLevel string

// Reasoning levels forwarded to providers that support them.
const (
	ReasoningLow    ReasoningLevel = "low"
	ReasoningMedium ReasoningLevel = "medium"
	ReasoningHigh   ReasoningLevel = "high"
)

// ToolDefinition declaratively exposes a callable tool to the model.
// Parameters is a JSON Schema object (minimal subset expected).
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Request is the normalized model input produced by the loop: the projected
// conversation plus per-call options. Messages contains only standard
// variants; the ConvertToLLM projection has already run.
type Request struct {
	System    string
	Messages  []core.Message
	Tools     []ToolDefinition
	APIKey    string // resolved fresh per call; empty means client default
	Reasoning ReasoningLevel
}

// Info contains metadata about a model implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "anthropic", "openai", "mock", ...
}

// Model is the minimal interface required by the loop to drive generation.
// Stream begins producing an assistant message and returns immediately; the
// handle delivers incremental events ending with Done or Error.
type Model interface {
	Stream(ctx context.Context, req Request) *Handle

	// Info returns information about the model implementation.
	Info() Info
}

// StreamFunc is the indirection through which the loop calls Model.Stream.
// Tests substitute it to script adapter behavior without a Model.
type StreamFunc func(ctx context.Context, m Model, req Request) *Handle

// DefaultStreamFunc simply delegates to the model.
func DefaultStreamFunc(ctx context.Context, m Model, req Request) *Handle {
	return m.Stream(ctx, req)
}

// StreamEvent is one incremental update of an in-progress assistant message.
// Every event carries a consistent snapshot of the evolving message via
// Snapshot; the loop treats that snapshot as authoritative and never
// reconstructs state from deltas.
type StreamEvent interface {
	isStreamEvent()

	// Snapshot returns the current state of the assistant message. For
	// terminal events this is the final message.
	Snapshot() *core.AssistantMessage
}

// PartialEvent carries the authoritative snapshot embedded in every
// non-terminal stream event.
type PartialEvent struct {
	Partial *core.AssistantMessage
}

func (PartialEvent) isStreamEvent() {}

// Snapshot implements StreamEvent.
func (e PartialEvent) Snapshot() *core.AssistantMessage { return e.Partial }

// StartEvent is the initial skeleton of the assistant message. Adapters must
// emit it before any delta.
type StartEvent struct{ PartialEvent }

// TextStartEvent opens a text block at Index.
type TextStartEvent struct {
	PartialEvent
	Index int
}

// TextDeltaEvent appends Delta to the text block at Index.
type TextDeltaEvent struct {
	PartialEvent
	Index int
	Delta string
}

// TextEndEvent closes the text block at Index.
type TextEndEvent struct {
	PartialEvent
	Index int
}

// ThinkingStartEvent opens a reasoning block. Producers may omit thinking
// events entirely.
type ThinkingStartEvent struct {
	PartialEvent
	Index int
}

// ThinkingDeltaEvent appends Delta to the reasoning block at Index.
type ThinkingDeltaEvent struct {
	PartialEvent
	Index int
	Delta string
}

// ThinkingEndEvent closes the reasoning block at Index.
type ThinkingEndEvent struct {
	PartialEvent
	Index int
}

// ToolCallStartEvent opens a tool-call block.
type ToolCallStartEvent struct {
	PartialEvent
	Index int
}

// ToolCallDeltaEvent appends a raw argument fragment to the tool-call block
// at Index.
type ToolCallDeltaEvent struct {
	PartialEvent
	Index int
	Delta string
}

// ToolCallEndEvent closes the tool-call block at Index.
type ToolCallEndEvent struct {
	PartialEvent
	Index int
}

// DoneEvent terminates the stream successfully, carrying the final message.
type DoneEvent struct {
	Message *core.AssistantMessage
}

func (DoneEvent) isStreamEvent() {}

// Snapshot implements StreamEvent.
func (e DoneEvent) Snapshot() *core.AssistantMessage { return e.Message }

// ErrorEvent terminates the stream on failure. Message carries the partial
// output with StopReason error or aborted; Err is the underlying cause.
type ErrorEvent struct {
	Message *core.AssistantMessage
	Err     error
}

func (ErrorEvent) isStreamEvent() {}

// Snapshot implements StreamEvent.
func (e ErrorEvent) Snapshot() *core.AssistantMessage { return e.Message }

// IsTerminalEvent reports whether ev ends the stream.
func IsTerminalEvent(ev StreamEvent) bool {
	switch ev.(type) {
	case DoneEvent, ErrorEvent:
		return true
	}
	return false
}

// Handle is the consumer side of one streaming generation. Adapters push
// events through it and finish with Done or Fail; the loop ranges over
// Events until the channel closes, then reads Result.
type Handle struct {
	ch    chan StreamEvent
	final *core.AssistantMessage
}

// NewHandle creates a handle for an adapter to produce into.
func NewHandle() *Handle {
	return &Handle{ch: make(chan StreamEvent, 32)}
}

// Events returns the event channel. It closes after the terminal event.
func (h *Handle) Events() <-chan StreamEvent { return h.ch }

// Result returns the final assistant message. Valid once Events has closed.
func (h *Handle) Result() *core.AssistantMessage { return h.final }

// Push delivers a non-terminal event to the consumer.
func (h *Handle) Push(ev StreamEvent) { h.ch <- ev }

// Done delivers the terminal success event and closes the stream.
func (h *Handle) Done(msg *core.AssistantMessage) {
	h.final = msg
	h.ch <- DoneEvent{Message: msg}
	close(h.ch)
}

// Fail delivers the terminal error event and closes the stream. The message
// must carry StopReason error or aborted.
func (h *Handle) Fail(msg *core.AssistantMessage, err error) {
	h.final = msg
	h.ch <- ErrorEvent{Message: msg, Err: err}
	close(h.ch)
}
