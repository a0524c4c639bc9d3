package notify

import (
	"context"
	"errors"
	"sync"
)

var ErrClosed = errors.New("subscription closed")

// Signal tells a tab that storage of its origin was changed by Source.
type Signal struct {
	Origin string
	Source string
}

// Broadcaster is the cross-tab channel. Delivery is asynchronous, best effort
// and may be coalesced; a tab never receives its own signals.
type Broadcaster interface {
	Publish(ctx context.Context, origin, source string) error
	Subscribe(ctx context.Context, origin, self string) (Subscription, error)
}

type Subscription interface {
	Signals() <-chan Signal
	Close() error
}

// MemoryBroadcaster fans signals out inside one process.
type MemoryBroadcaster struct {
	mu   sync.Mutex
	subs map[string]map[*memorySubscription]struct{}
}

func NewMemoryBroadcaster() *MemoryBroadcaster {
	return &MemoryBroadcaster{subs: make(map[string]map[*memorySubscription]struct{})}
}

func (m *MemoryBroadcaster) Publish(_ context.Context, origin, source string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for sub := range m.subs[origin] {
		if sub.self == source {
			continue
		}
		select {
		case sub.ch <- Signal{Origin: origin, Source: source}:
		default:
			// a signal is already pending; receivers re-read storage anyway
		}
	}
	return nil
}

func (m *MemoryBroadcaster) Subscribe(_ context.Context, origin, self string) (Subscription, error) {
	sub := &memorySubscription{
		parent: m,
		origin: origin,
		self:   self,
		ch:     make(chan Signal, 1),
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subs[origin] == nil {
		m.subs[origin] = make(map[*memorySubscription]struct{})
	}
	m.subs[origin][sub] = struct{}{}
	return sub, nil
}

type memorySubscription struct {
	parent *MemoryBroadcaster
	origin string
	self   string
	ch     chan Signal
	once   sync.Once
}

func (s *memorySubscription) Signals() <-chan Signal {
	return s.ch
}

func (s *memorySubscription) Close() error {
	s.once.Do(func() {
		s.parent.mu.Lock()
		defer s.parent.mu.Unlock()

		delete(s.parent.subs[s.origin], s)
		if len(s.parent.subs[s.origin]) == 0 {
			delete(s.parent.subs, s.origin)
		}
		close(s.ch)
	})
	return nil
}
