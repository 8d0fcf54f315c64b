package events

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testLogger struct{}

func (testLogger) Warn(msg string, keysAndValues ...interface{})  {}
func (testLogger) Debug(msg string, keysAndValues ...interface{}) {}

func TestPublishAndDrain(t *testing.T) {
	bus := NewBus(8, testLogger{})

	var mu sync.Mutex
	var received []Event
	done := make(chan struct{})

	bus.Drain(func(event Event) {
		mu.Lock()
		received = append(received, event)
		if len(received) == 3 {
			close(done)
		}
		mu.Unlock()
	})

	for i := 0; i < 3; i++ {
		bus.Publish(Event{Type: TypeLog, ExecutionID: "e1"})
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("events were not drained")
	}

	bus.Close()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 3)
	assert.Equal(t, TypeLog, received[0].Type)
}

func TestPublishNeverBlocksWhenFull(t *testing.T) {
	bus := NewBus(1, testLogger{})

	// No drain goroutine: the second publish drops instead of blocking
	finished := make(chan struct{})
	go func() {
		bus.Publish(Event{Type: TypeLog})
		bus.Publish(Event{Type: TypeLog})
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full bus")
	}
}

func TestCloseFlushesBufferedEvents(t *testing.T) {
	bus := NewBus(8, testLogger{})

	bus.Publish(Event{Type: TypeStatus, Status: "completed"})
	bus.Close()

	received := make(chan Event, 8)
	bus.Drain(func(event Event) {
		received <- event
	})

	select {
	case event := <-received:
		assert.Equal(t, "completed", event.Status)
	case <-time.After(time.Second):
		t.Fatal("buffered event was not flushed after close")
	}
}

func TestHandlerPanicDoesNotKillDrain(t *testing.T) {
	bus := NewBus(8, testLogger{})

	survived := make(chan struct{})
	first := true
	bus.Drain(func(event Event) {
		if first {
			first = false
			panic("observer bug")
		}
		close(survived)
	})

	bus.Publish(Event{Type: TypeLog})
	bus.Publish(Event{Type: TypeLog})

	select {
	case <-survived:
	case <-time.After(time.Second):
		t.Fatal("drain goroutine did not survive a handler panic")
	}

	bus.Close()
}

func TestCloseIsIdempotent(t *testing.T) {
	bus := NewBus(1, testLogger{})
	bus.Close()
	bus.Close()
	bus.Publish(Event{Type: TypeLog})
}
