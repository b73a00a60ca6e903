package orchestrator

import (
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// EventEmitter delivers orchestrator events to a single subscriber.
// It is safe for concurrent use.
type EventEmitter struct {
	events       chan Event
	logger       *zap.Logger
	droppedCount atomic.Uint64
}

// NewEventEmitter creates a new EventEmitter with the given buffer size.
func NewEventEmitter(bufferSize int, logger *zap.Logger) *EventEmitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventEmitter{
		events: make(chan Event, bufferSize),
		logger: logger,
	}
}

// Emit sends an event. If the buffer is full it waits briefly, then drops
// the event.
func (e *EventEmitter) Emit(event Event) {
	select {
	case e.events <- event:
		return
	default:
	}

	select {
	case e.events <- event:
	case <-time.After(100 * time.Millisecond):
		count := e.droppedCount.Add(1)
		if count%10 == 1 {
			e.logger.Warn("Event channel full, dropping event",
				zap.Uint64("dropped", count),
				zap.String("type", string(event.Type)))
		}
	}
}

// DroppedCount returns the total number of events that have been dropped.
func (e *EventEmitter) DroppedCount() uint64 {
	return e.droppedCount.Load()
}

// Events returns a read-only channel of events.
func (e *EventEmitter) Events() <-chan Event {
	return e.events
}

// Close closes the events channel. No Emit may follow.
func (e *EventEmitter) Close() {
	close(e.events)
}
