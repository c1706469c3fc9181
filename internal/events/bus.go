// Package events delivers change notifications after sidecar writes.
package events

import (
	"sync"
	"time"
)

// Change announces that the sidecar for Doc was written. Origin names the
// layer that performed the write so subscribers can ignore their own writes.
type Change struct {
	Doc    string
	Origin string
	At     time.Time
}

// Handler receives published changes.
type Handler func(Change)

// Bus fans changes out to registered handlers synchronously, in registration
// order.
type Bus struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[int]Handler
	order    []int
}

// NewBus returns a bus with no subscribers.
func NewBus() *Bus {
	return &Bus{handlers: make(map[int]Handler)}
}

// Subscribe registers h and returns a function that removes it.
func (b *Bus) Subscribe(h Handler) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.handlers[id] = h
	b.order = append(b.order, id)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.handlers, id)
			for i, v := range b.order {
				if v == id {
					b.order = append(b.order[:i], b.order[i+1:]...)
					break
				}
			}
			b.mu.Unlock()
		})
	}
}

// SubscribeChan delivers changes to a buffered channel. Changes are dropped
// when the channel is full. The returned function unsubscribes; the channel
// is never closed.
func (b *Bus) SubscribeChan(size int) (<-chan Change, func()) {
	ch := make(chan Change, size)
	unsubscribe := b.Subscribe(func(c Change) {
		select {
		case ch <- c:
		default:
		}
	})
	return ch, unsubscribe
}

// Publish calls every handler with c.
func (b *Bus) Publish(c Change) {
	if c.At.IsZero() {
		c.At = time.Now()
	}
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.order))
	for _, id := range b.order {
		handlers = append(handlers, b.handlers[id])
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(c)
	}
}
