// ============================================================================
// hatsuon - Pronunciation Trainer
// ============================================================================
//
// Package:     bus
// Description: Synchronous fan-out of feedback events to subscribers
// Author:      Mike Stoffels
// Created:     2025-12-08
// License:     MIT
// ============================================================================

package bus

import (
	"sync"

	"github.com/msto63/hatsuon/internal/practice/feedback"
)

// Handler receives published events
type Handler func(feedback.Event)

// Bus delivers each published event to the handlers subscribed at the time
// of publishing, synchronously and in subscription order. Events are not
// buffered; late subscribers never see earlier events.
type Bus struct {
	mu   sync.Mutex
	next uint64
	subs []subscription
}

type subscription struct {
	id      uint64
	handler Handler
}

// New creates an empty bus
func New() *Bus {
	return &Bus{}
}

// Subscribe registers handler and returns its unsubscribe function.
// Unsubscribing is idempotent.
func (b *Bus) Subscribe(handler Handler) (unsubscribe func()) {
	b.mu.Lock()
	b.next++
	id := b.next
	b.subs = append(b.subs, subscription{id: id, handler: handler})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, s := range b.subs {
		if s.id == id {
			// Copy so snapshots held by in-flight publishes stay intact
			subs := make([]subscription, 0, len(b.subs)-1)
			subs = append(subs, b.subs[:i]...)
			subs = append(subs, b.subs[i+1:]...)
			b.subs = subs
			return
		}
	}
}

// Publish delivers ev to every current subscriber. Subscribe and
// unsubscribe calls made by handlers take effect from the next publish.
func (b *Bus) Publish(ev feedback.Event) {
	b.mu.Lock()
	snapshot := b.subs
	b.mu.Unlock()

	for _, s := range snapshot {
		s.handler(ev)
	}
}

// Len returns the number of subscribers
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
