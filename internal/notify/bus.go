package notify

import "sync"

// Topic names an in-process event. Events carry no payload; subscribers
// re-read storage themselves.
type Topic string

const (
	// TopicCartUpdated fires in the writer's own tab after every cart save or clear.
	TopicCartUpdated Topic = "cartUpdated"
	// TopicStorage fires when another tab of the same origin changed storage.
	TopicStorage Topic = "storage"
)

type Handler func()

type subscription struct {
	id      uint64
	handler Handler
}

// Bus is a synchronous publish/subscribe hub scoped to one tab.
// Emit calls every handler in subscription order before returning.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[Topic][]subscription
}

func NewBus() *Bus {
	return &Bus{subs: make(map[Topic][]subscription)}
}

// Subscribe registers h for topic. The returned func removes it and is safe
// to call more than once.
func (b *Bus) Subscribe(topic Topic, h Handler) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[topic] = append(b.subs[topic], subscription{id: id, handler: h})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(topic, id) })
	}
}

func (b *Bus) remove(topic Topic, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[topic]
	for i, s := range subs {
		if s.id == id {
			b.subs[topic] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

// Emit delivers topic to the current subscribers. Handlers run outside the
// lock so they may subscribe, unsubscribe or read storage.
func (b *Bus) Emit(topic Topic) {
	b.mu.RLock()
	subs := make([]subscription, len(b.subs[topic]))
	copy(subs, b.subs[topic])
	b.mu.RUnlock()

	for _, s := range subs {
		s.handler()
	}
}

// Subscribers reports how many handlers listen on topic.
func (b *Bus) Subscribers(topic Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}
