// Package events fans out vault audit events to in-process subscribers.
package events

import (
	"sync"

	"github.com/rollvault/rollvault/internal/domain"
)

// Broadcaster fans out audit events to all subscribers via buffered channels.
// It keeps the API intentionally small so call sites can stay straightforward.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[chan domain.Event]struct{}
	buffer int
}

// NewBroadcaster creates a broadcaster with the given per-subscriber buffer.
func NewBroadcaster(buffer int) *Broadcaster {
	if buffer < 1 {
		buffer = 64
	}
	return &Broadcaster{
		subs:   make(map[chan domain.Event]struct{}),
		buffer: buffer,
	}
}

// Record sends the event to all subscribers, dropping if a reader is slow.
func (b *Broadcaster) Record(event domain.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- event:
		default:
			// drop slow consumer
		}
	}
}

// Subscribe returns a channel that receives events until Unsubscribe is called.
func (b *Broadcaster) Subscribe() chan domain.Event {
	ch := make(chan domain.Event, b.buffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes the channel and closes it.
func (b *Broadcaster) Unsubscribe(ch chan domain.Event) {
	b.mu.Lock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
	b.mu.Unlock()
}

// Fanout forwards each event to every sink in order.
type Fanout []interface{ Record(domain.Event) }

// Record implements the sink contract over all members.
func (f Fanout) Record(event domain.Event) {
	for _, sink := range f {
		if sink != nil {
			sink.Record(event)
		}
	}
}
