package store

import "sync"

// Event describes one change to a store's state. Property names the
// collection or derived value that changed (e.g. "notifications",
// "unreadCount"); EntityId is set when the change concerns one record.
type Event struct {
	Property string
	EntityId string
}

// Broker is the publish/subscribe hub shared by the stores. Fan-out is
// synchronous:
// Publish returns after every current subscriber has run. Subscribers
// must not block.
type Broker struct {
	mu     sync.Mutex
	nextId int
	subs   map[int]func(Event)
}

func NewBroker() *Broker {
	return &Broker{subs: map[int]func(Event){}}
}

// Subscribe registers a listener and returns its unsubscribe function.
// Unsubscribing twice is harmless.
func (b *Broker) Subscribe(fn func(Event)) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextId
	b.nextId++
	b.subs[id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, id)
	}
}

// Publish delivers the event to every subscriber registered at call time.
func (b *Broker) Publish(e Event) {
	b.mu.Lock()
	fns := make([]func(Event), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(e)
	}
}
