// Package events is a small typed publish/subscribe bus owned by a session.
//
// Delivery is synchronous and in subscription order. A message published
// from inside a handler is queued and delivered once the current message has
// reached every subscriber, so a handler that reacts to an event by causing
// another one never recurses into the bus.
package events

import (
	"reflect"
	"sync"
)

// Bus routes messages to subscribers by the message's Go type.
type Bus struct {
	mu      sync.Mutex
	nextID  uint64
	subs    map[reflect.Type][]subscriber
	queue   []any
	sending bool
}

type subscriber struct {
	id uint64
	fn func(any)
}

// Subscription is returned by Subscribe. Call Unsubscribe when the owning
// component goes away.
type Subscription struct {
	bus *Bus
	typ reflect.Type
	id  uint64
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[reflect.Type][]subscriber)}
}

// Subscribe registers fn for every message of type T.
func Subscribe[T any](b *Bus, fn func(T)) *Subscription {
	typ := reflect.TypeFor[T]()

	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.subs[typ] = append(b.subs[typ], subscriber{
		id: id,
		fn: func(msg any) { fn(msg.(T)) },
	})
	return &Subscription{bus: b, typ: typ, id: id}
}

// Unsubscribe removes the handler. It is safe to call more than once and on
// a nil subscription.
func (s *Subscription) Unsubscribe() {
	if s == nil || s.bus == nil {
		return
	}
	b := s.bus
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.subs[s.typ]
	for i, sub := range list {
		if sub.id == s.id {
			// Copy so a dispatch loop holding the old slice is unaffected.
			kept := make([]subscriber, 0, len(list)-1)
			kept = append(kept, list[:i]...)
			kept = append(kept, list[i+1:]...)
			b.subs[s.typ] = kept
			break
		}
	}
	s.bus = nil
}

// Publish delivers msg to every subscriber of its dynamic type. A nil bus
// drops the message.
func (b *Bus) Publish(msg any) {
	if b == nil || msg == nil {
		return
	}
	b.mu.Lock()
	b.queue = append(b.queue, msg)
	if b.sending {
		b.mu.Unlock()
		return
	}
	b.sending = true
	b.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			b.mu.Lock()
			b.sending = false
			b.queue = nil
			b.mu.Unlock()
			panic(r)
		}
	}()

	for {
		b.mu.Lock()
		if len(b.queue) == 0 {
			b.sending = false
			b.mu.Unlock()
			return
		}
		next := b.queue[0]
		b.queue = b.queue[1:]
		list := b.subs[reflect.TypeOf(next)]
		b.mu.Unlock()

		for _, sub := range list {
			if b.subscribed(reflect.TypeOf(next), sub.id) {
				sub.fn(next)
			}
		}
	}
}

// subscribed reports whether id is still registered; a handler may have
// unsubscribed a later one during this dispatch.
func (b *Bus) subscribed(typ reflect.Type, id uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subs[typ] {
		if sub.id == id {
			return true
		}
	}
	return false
}

// Subscribers returns how many handlers are registered for type T.
func Subscribers[T any](b *Bus) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[reflect.TypeFor[T]()])
}
