package events

import (
	"sync"
	"time"
)

// Event types emitted by a running execution.
const (
	TypeNodeStatus = "node_status"
	TypeLog        = "log"
	TypeStatus     = "status"
)

// Event is a single observer notification from an execution.
// Exactly one of the type-specific field groups is populated.
type Event struct {
	Type        string                 `json:"type"`
	ExecutionID string                 `json:"execution_id"`
	Timestamp   time.Time              `json:"timestamp"`

	// node_status events
	NodeID string `json:"node_id,omitempty"`

	// node_status and status events
	Status string `json:"status,omitempty"`

	// log events
	Level   string `json:"level,omitempty"`
	Message string `json:"message,omitempty"`

	// status events (terminal)
	Output   interface{}            `json:"output,omitempty"`
	Error    string                 `json:"error,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Handler processes events drained from a bus
type Handler func(event Event)

// Logger interface for bus logging
type Logger interface {
	Warn(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
}

// Bus is a bounded, non-blocking event queue between one execution and its
// observer. Publish never blocks the publishing node: when the buffer is
// full the event is dropped with a warning.
type Bus struct {
	ch     chan Event
	log    Logger
	once   sync.Once
	closed chan struct{}
}

// NewBus creates a bus with the given buffer capacity
func NewBus(capacity int, log Logger) *Bus {
	if capacity <= 0 {
		capacity = 256
	}
	return &Bus{
		ch:     make(chan Event, capacity),
		log:    log,
		closed: make(chan struct{}),
	}
}

// Publish enqueues an event without blocking
func (b *Bus) Publish(event Event) {
	select {
	case <-b.closed:
		return
	default:
	}

	select {
	case b.ch <- event:
	default:
		b.log.Warn("event bus full, dropping event",
			"execution_id", event.ExecutionID,
			"type", event.Type,
		)
	}
}

// Drain consumes events with the handler until Close. Handler panics are
// swallowed so a misbehaving observer can never fail the execution.
func (b *Bus) Drain(handler Handler) {
	go func() {
		for {
			select {
			case <-b.closed:
				// Flush whatever is still buffered
				for {
					select {
					case event := <-b.ch:
						b.deliver(handler, event)
					default:
						return
					}
				}
			case event := <-b.ch:
				b.deliver(handler, event)
			}
		}
	}()
}

func (b *Bus) deliver(handler Handler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Warn("event handler panic", "recovered", r)
		}
	}()
	handler(event)
}

// Close stops the drain goroutine after the buffer is flushed. Idempotent.
func (b *Bus) Close() {
	b.once.Do(func() {
		close(b.closed)
	})
}
