// internal/events/bus.go
package events

import (
	"sync"
)

// Bus is a minimal in-process pub/sub fan-out. Publishing never blocks:
// subscribers that fall behind lose events, so the bus is an observability
// surface, not a work queue.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string][]chan Event
	closed bool
}

func NewBus() *Bus {
	return &Bus{
		subs: make(map[string][]chan Event),
	}
}

// Subscribe registers a buffered channel for one topic. The channel is
// closed when the bus closes; subscribing to an already-closed bus returns
// a closed channel.
func (b *Bus) Subscribe(topic string, bufferSize int) <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, bufferSize)
	if b.closed {
		close(ch)
		return ch
	}
	b.subs[topic] = append(b.subs[topic], ch)
	return ch
}

// Publish delivers an event to every subscriber of the topic, dropping it
// for subscribers whose buffer is full. Publishing on a closed bus is a
// no-op.
func (b *Bus) Publish(topic string, event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	for _, ch := range b.subs[topic] {
		select {
		case ch <- event:
		default:
		}
	}
}

// Close closes every subscriber channel. Further publishes are ignored.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for _, chans := range b.subs {
		for _, ch := range chans {
			close(ch)
		}
	}
	b.subs = nil
}
