package events

import (
	"sync"
	"time"

	"repolens/internal/identity"
)

// Type enumerates repository lifecycle notifications.
type Type string

const (
	TypeCloneStarted         Type = "clone_started"
	TypeCloneCompleted       Type = "clone_completed"
	TypeExplorationStarted   Type = "exploration_started"
	TypeExplorationProgress  Type = "exploration_progress"
	TypeExplorationCompleted Type = "exploration_completed"
	TypeExplorationFailed    Type = "exploration_failed"
)

// Event is one lifecycle notification for a repository identity.
type Event struct {
	Type      Type   `json:"type"`
	Owner     string `json:"owner"`
	Repo      string `json:"repo"`
	Mode      string `json:"mode,omitempty"`
	Data      any    `json:"data,omitempty"`
	Error     string `json:"error,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// New builds an event for id, stamping the current time.
func New(typ Type, id identity.Identity) Event {
	return Event{
		Type:      typ,
		Owner:     id.Owner,
		Repo:      id.Name,
		Timestamp: time.Now().Unix(),
	}
}

// Handler receives published events. Handlers run synchronously on the
// publisher's goroutine; slow handlers delay the publisher, never the bus.
type Handler func(Event)

type subscriber struct {
	id      uint64
	handler Handler
}

// Bus is a per-identity publish/subscribe channel for lifecycle events.
// It is constructed explicitly and injected; there is no process global.
// Events are fire-and-forget: nothing is buffered for absent subscribers.
type Bus struct {
	mu      sync.Mutex
	nextID  uint64
	subs    map[string][]subscriber
	waiters map[string][]chan struct{}
}

func NewBus() *Bus {
	return &Bus{
		subs:    make(map[string][]subscriber),
		waiters: make(map[string][]chan struct{}),
	}
}

// Publish fans ev out to every current subscriber of id, in subscribe
// order. Publish calls for one identity from one goroutine are delivered
// in publish order.
func (b *Bus) Publish(id identity.Identity, ev Event) {
	if b == nil {
		return
	}
	b.mu.Lock()
	subs := make([]subscriber, len(b.subs[id.Key()]))
	copy(subs, b.subs[id.Key()])
	b.mu.Unlock()

	for _, s := range subs {
		s.handler(ev)
	}
}

// Subscribe attaches handler to id's channel and returns an unsubscribe
// function. Unsubscribing twice is a no-op.
func (b *Bus) Subscribe(id identity.Identity, handler Handler) (unsubscribe func()) {
	if b == nil || handler == nil {
		return func() {}
	}
	key := id.Key()

	b.mu.Lock()
	b.nextID++
	sub := subscriber{id: b.nextID, handler: handler}
	b.subs[key] = append(b.subs[key], sub)
	// Release anyone blocked in WaitForSubscriber for this identity.
	for _, w := range b.waiters[key] {
		close(w)
	}
	delete(b.waiters, key)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			list := b.subs[key]
			for i, s := range list {
				if s.id == sub.id {
					b.subs[key] = append(list[:i], list[i+1:]...)
					break
				}
			}
			if len(b.subs[key]) == 0 {
				delete(b.subs, key)
			}
		})
	}
}

// SubscriberCount reports the number of currently attached handlers for id.
func (b *Bus) SubscriberCount(id identity.Identity) int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[id.Key()])
}

// WaitForSubscriber blocks until at least one subscriber is attached for id
// or the timeout elapses. It lets a producer start emitting events for a
// fresh identity without dropping the earliest ones. Returns true when a
// subscriber is present.
func (b *Bus) WaitForSubscriber(id identity.Identity, timeout time.Duration) bool {
	if b == nil {
		return false
	}
	key := id.Key()

	b.mu.Lock()
	if len(b.subs[key]) > 0 {
		b.mu.Unlock()
		return true
	}
	w := make(chan struct{})
	b.waiters[key] = append(b.waiters[key], w)
	b.mu.Unlock()

	select {
	case <-w:
		return true
	case <-time.After(timeout):
		b.mu.Lock()
		list := b.waiters[key]
		for i, c := range list {
			if c == w {
				b.waiters[key] = append(list[:i], list[i+1:]...)
				break
			}
		}
		if len(b.waiters[key]) == 0 {
			delete(b.waiters, key)
		}
		b.mu.Unlock()
		return false
	}
}
