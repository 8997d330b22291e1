package core

import "sync"

// EventStream is the single-producer/single-consumer pipe connecting a run to
// its observer. Push never blocks the producer; the consumer ranges over
// Events and observes every pre-seal push in order. End seals the stream with
// the run's new messages, which Result returns once delivery has drained.
type EventStream struct {
	mu     sync.Mutex
	queue  []AgentEvent
	notify chan struct{}
	out    chan AgentEvent
	done   chan struct{}
	sealed bool
	result []Message
}

// NewEventStream creates an open stream and starts its delivery pump.
func NewEventStream() *EventStream {
	s := &EventStream{
		notify: make(chan struct{}, 1),
		out:    make(chan AgentEvent, 16),
		done:   make(chan struct{}),
	}
	go s.pump()
	return s
}

// Push appends an event for delivery. Pushes after End are discarded.
func (s *EventStream) Push(ev AgentEvent) {
	s.mu.Lock()
	if s.sealed {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, ev)
	s.mu.Unlock()
	s.wake()
}

// End seals the stream. Queued events are still delivered, then the event
// channel closes and Result unblocks. Subsequent calls are no-ops.
func (s *EventStream) End(result []Message) {
	s.mu.Lock()
	if s.sealed {
		s.mu.Unlock()
		return
	}
	s.sealed = true
	s.result = result
	s.mu.Unlock()
	s.wake()
}

// Events returns the channel the single consumer ranges over. It closes after
// the last pre-seal event has been delivered.
func (s *EventStream) Events() <-chan AgentEvent { return s.out }

// Result blocks until the stream is sealed and drained, then returns the
// sealed value.
func (s *EventStream) Result() []Message {
	<-s.done
	return s.result
}

func (s *EventStream) wake() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// pump moves queued events to the consumer, preserving insertion order, and
// closes the channel once the stream is sealed and the queue is empty.
func (s *EventStream) pump() {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			if s.sealed {
				s.mu.Unlock()
				close(s.out)
				close(s.done)
				return
			}
			s.mu.Unlock()
			<-s.notify
			continue
		}
		ev := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()
		s.out <- ev
	}
}
