// Package events carries the append-only notification stream: every
// privileged mutation in the registry, token ledger and funding panel emits a
// typed event here. Events are observational only and never drive control
// flow.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Emitter fans emitted events out to kind-specific and catch-all subscribers.
type Emitter struct {
	listeners map[string][]chan Envelope
	all       []chan Envelope
	mu        sync.RWMutex
}

// NewEmitter creates a new event emitter.
func NewEmitter() *Emitter {
	return &Emitter{
		listeners: make(map[string][]chan Envelope),
	}
}

// Emit stamps the event with an ID and timestamp and delivers it to all
// matching subscribers. Delivery is non-blocking; a subscriber that cannot
// keep up loses events rather than stalling the emitting call.
func (e *Emitter) Emit(event interface{}) Envelope {
	env := Envelope{
		ID:    uuid.NewString(),
		Kind:  kindOf(event),
		Time:  time.Now().UTC(),
		Event: event,
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, ch := range e.listeners[env.Kind] {
		select {
		case ch <- env:
		default:
		}
	}
	for _, ch := range e.all {
		select {
		case ch <- env:
		default:
		}
	}

	return env
}

// Subscribe returns a channel receiving events of one kind.
func (e *Emitter) Subscribe(kind string) <-chan Envelope {
	e.mu.Lock()
	defer e.mu.Unlock()

	ch := make(chan Envelope, 256)
	e.listeners[kind] = append(e.listeners[kind], ch)
	return ch
}

// SubscribeAll returns a channel receiving every emitted event.
func (e *Emitter) SubscribeAll() <-chan Envelope {
	e.mu.Lock()
	defer e.mu.Unlock()

	ch := make(chan Envelope, 1024)
	e.all = append(e.all, ch)
	return ch
}

// Unsubscribe removes a subscription and closes its channel.
func (e *Emitter) Unsubscribe(ch <-chan Envelope) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for kind, listeners := range e.listeners {
		for i, listener := range listeners {
			if listener == ch {
				e.listeners[kind] = append(listeners[:i], listeners[i+1:]...)
				close(listener)
				return
			}
		}
	}
	for i, listener := range e.all {
		if listener == ch {
			e.all = append(e.all[:i], e.all[i+1:]...)
			close(listener)
			return
		}
	}
}
