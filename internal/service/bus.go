package service

import (
	"sync"

	"github.com/joeblew999/cultivar-map/internal/view"
)

// Event is a view transition applied to one session.
type Event struct {
	Session  string         // session id
	Op       string         // "base", "opacity", "overlay", "underlay", "grid", "cell", "start"
	Layer    string         // layer or cell id, if any
	Commands []view.Command // surface commands produced by the transition
}

type subscriber struct {
	ch      chan Event
	session string
}

// EventBus fans view events out to the event streams of their session.
type EventBus struct {
	mu   sync.RWMutex
	subs map[*subscriber]struct{}
	size int
}

// NewEventBus creates a bus whose subscriptions buffer size events.
func NewEventBus(size int) *EventBus {
	if size <= 0 {
		size = 64
	}
	return &EventBus{subs: make(map[*subscriber]struct{}), size: size}
}

// Publish delivers e to every subscriber of e.Session without blocking.
// It returns the number of subscribers that were skipped because their
// buffer was full.
func (b *EventBus) Publish(e Event) (dropped int) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for s := range b.subs {
		if s.session != "" && s.session != e.Session {
			continue
		}
		select {
		case s.ch <- e:
		default:
			dropped++
		}
	}
	return dropped
}

// Subscribe returns a channel of events for session, or of every session
// when session is empty, and a cancel func that closes the channel.
func (b *EventBus) Subscribe(session string) (<-chan Event, func()) {
	s := &subscriber{ch: make(chan Event, b.size), session: session}
	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return s.ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, s)
			b.mu.Unlock()
			close(s.ch)
		})
	}
}

// Subscribers returns the number of live subscriptions.
func (b *EventBus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
