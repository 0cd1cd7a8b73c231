package sim

import (
	"context"
	"sync"
	"sync/atomic"
)

// Event is a one-shot completion event
type Event struct {
	once    sync.Once
	done    chan struct{}
	signals atomic.Int32
}

// NewEvent creates an unsignalled event
func NewEvent() *Event {
	return &Event{done: make(chan struct{})}
}

// Signal marks the event complete. Later signals are counted but have no
// other effect.
func (e *Event) Signal() {
	e.signals.Add(1)
	e.once.Do(func() {
		close(e.done)
	})
}

// Done is closed once the event has been signalled
func (e *Event) Done() <-chan struct{} {
	return e.done
}

// Wait blocks until the event is signalled or ctx ends
func (e *Event) Wait(ctx context.Context) error {
	select {
	case <-e.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Signals returns how many times Signal was called
func (e *Event) Signals() int {
	return int(e.signals.Load())
}
