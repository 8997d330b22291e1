package model

import (
	"context"
	"fmt"
	"sync"

	"github.com/Kochanac/pi-mono/core"
)

// MockModel is a scripted in-memory Model for tests and examples. Each call
// to Stream consumes the next scripted turn and replays it as a well-formed
// event sequence (start, per-block growth, terminal), exactly as a real
// adapter would, including consistent partial snapshots.
type MockModel struct {
	mu       sync.Mutex
	info     Info
	turns    []mockTurn
	requests []Request
}

type mockTurn struct {
	message *core.AssistantMessage
	err     error
}

// NewMockModel constructs an empty-scripted mock.
func NewMockModel() *MockModel {
	return &MockModel{info: Info{Name: "mock-model", Provider: "mock"}}
}

// Enqueue scripts msg as the next assistant response. Blocks are replayed
// with start/delta/end events; StopReason defaults to stop (toolUse when the
// message contains tool calls).
func (m *MockModel) Enqueue(msg *core.AssistantMessage) *MockModel {
	if msg.StopReason == "" {
		msg.StopReason = core.StopReasonStop
		if len(msg.ToolCalls()) > 0 {
			msg.StopReason = core.StopReasonToolUse
		}
	}
	if msg.Model == "" {
		msg.Model = m.info.Name
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = append(m.turns, mockTurn{message: msg})
	return m
}

// EnqueueText scripts a plain text response.
func (m *MockModel) EnqueueText(text string) *MockModel {
	return m.Enqueue(&core.AssistantMessage{Blocks: []core.Block{core.TextBlock{Text: text}}})
}

// EnqueueToolCall scripts a response holding a single tool call.
func (m *MockModel) EnqueueToolCall(id, name, arguments string) *MockModel {
	return m.Enqueue(&core.AssistantMessage{Blocks: []core.Block{
		core.ToolCallBlock{ID: id, Name: name, Arguments: arguments},
	}})
}

// EnqueueError scripts a terminal stream failure.
func (m *MockModel) EnqueueError(err error) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = append(m.turns, mockTurn{err: err})
	return m
}

// Requests returns the requests observed so far, in order.
func (m *MockModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// Info implements Model.
func (m *MockModel) Info() Info { return m.info }

// Stream implements Model by replaying the next scripted turn.
func (m *MockModel) Stream(ctx context.Context, req Request) *Handle {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	var turn mockTurn
	if len(m.turns) > 0 {
		turn = m.turns[0]
		m.turns = m.turns[1:]
	} else {
		turn = mockTurn{err: fmt.Errorf("mock model: no scripted turns left")}
	}
	m.mu.Unlock()

	h := NewHandle()
	go m.replay(ctx, h, turn)
	return h
}

func (m *MockModel) replay(ctx context.Context, h *Handle, turn mockTurn) {
	if turn.err != nil {
		h.Fail(&core.AssistantMessage{
			StopReason: core.StopReasonError,
			Model:      m.info.Name,
			Blocks:     []core.Block{core.TextBlock{Text: turn.err.Error()}},
		}, turn.err)
		return
	}

	final := turn.message
	var blocks []core.Block
	snap := func() PartialEvent {
		msg := &core.AssistantMessage{Model: final.Model, Blocks: make([]core.Block, len(blocks))}
		copy(msg.Blocks, blocks)
		return PartialEvent{Partial: msg}
	}

	h.Push(StartEvent{snap()})

	for i, b := range final.Blocks {
		if ctx.Err() != nil {
			aborted := snap().Partial
			aborted.StopReason = core.StopReasonAborted
			h.Fail(aborted, ctx.Err())
			return
		}

		switch blk := b.(type) {
		case core.TextBlock:
			blocks = append(blocks, core.TextBlock{})
			h.Push(TextStartEvent{snap(), i})
			blocks[i] = blk
			h.Push(TextDeltaEvent{snap(), i, blk.Text})
			h.Push(TextEndEvent{snap(), i})
		case core.ThinkingBlock:
			blocks = append(blocks, core.ThinkingBlock{})
			h.Push(ThinkingStartEvent{snap(), i})
			blocks[i] = blk
			h.Push(ThinkingDeltaEvent{snap(), i, blk.Thinking})
			h.Push(ThinkingEndEvent{snap(), i})
		case core.ToolCallBlock:
			blocks = append(blocks, core.ToolCallBlock{ID: blk.ID, Name: blk.Name})
			h.Push(ToolCallStartEvent{snap(), i})
			blocks[i] = blk
			h.Push(ToolCallDeltaEvent{snap(), i, blk.Arguments})
			h.Push(ToolCallEndEvent{snap(), i})
		}
	}

	h.Done(final)
}
