package compute

import (
	"sync/atomic"

	"github.com/00mjk/oneDNN/internal/status"
)

// Event is the completion token for one asynchronous submission. It is
// consumable exactly once via Wait. Dropping an event without waiting is
// legal fire-and-forget: the work still runs, but no failure from it can
// be observed afterwards. That loss is part of the contract, not a defect.
type Event struct {
	engine *Engine
	stream *Stream

	// submitted closes when the command buffer has reached the device
	// queue; dependency resolution keys off it.
	submitted chan struct{}

	consumed atomic.Bool
}

// newEvent returns a pending event tied to a stream submission.
func newEvent(s *Stream) *Event {
	return &Event{
		engine:    s.engine,
		stream:    s,
		submitted: make(chan struct{}),
	}
}

// completedEvent returns an already-completed token (zero-extent launches
// resolve to one without touching the device).
func completedEvent(e *Engine) *Event {
	ev := &Event{engine: e, submitted: make(chan struct{})}
	close(ev.submitted)
	return ev
}

// Engine returns the engine the event's work was submitted on.
func (ev *Event) Engine() *Engine { return ev.engine }

// Wait blocks until the submission has completed and returns its outcome.
// A second Wait on the same event fails with InvalidArgument.
func (ev *Event) Wait() error {
	if !ev.consumed.CompareAndSwap(false, true) {
		return status.Errf(status.InvalidArgument, "event.Wait", "completion token already consumed")
	}
	if ev.stream == nil {
		return nil // pre-completed
	}
	<-ev.submitted
	// Completion and error observation ride on the stream barrier: work on
	// one stream is totally ordered, so draining the stream covers this
	// submission.
	return ev.stream.Wait()
}
