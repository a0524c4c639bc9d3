package cart

import (
	"context"
	"sync"

	"github.com/averkiev79-droid/avk-pro-sub000/internal/notify"
)

// Badge is the header's passive item counter.
type Badge struct {
	store Store
	bus   *notify.Bus

	mu       sync.RWMutex
	count    int
	onChange func(int)
	unsubs   []func()
}

func NewBadge(store Store, bus *notify.Bus) *Badge {
	return &Badge{store: store, bus: bus}
}

// OnChange registers a callback invoked with the recomputed count after
// every notification. Register before Mount.
func (b *Badge) OnChange(fn func(count int)) {
	b.mu.Lock()
	b.onChange = fn
	b.mu.Unlock()
}

// Mount computes the initial count and listens to both the same-tab and the
// cross-tab channel.
func (b *Badge) Mount(ctx context.Context) {
	b.recompute(ctx)

	if b.bus == nil {
		return
	}
	bg := context.WithoutCancel(ctx)
	handler := func() {
		count := b.recompute(bg)

		b.mu.RLock()
		fn := b.onChange
		b.mu.RUnlock()
		if fn != nil {
			fn(count)
		}
	}

	b.mu.Lock()
	b.unsubs = append(b.unsubs,
		b.bus.Subscribe(notify.TopicCartUpdated, handler),
		b.bus.Subscribe(notify.TopicStorage, handler),
	)
	b.mu.Unlock()
}

func (b *Badge) Unmount() {
	b.mu.Lock()
	unsubs := b.unsubs
	b.unsubs = nil
	b.mu.Unlock()

	for _, unsubscribe := range unsubs {
		unsubscribe()
	}
}

func (b *Badge) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.count
}

func (b *Badge) recompute(ctx context.Context) int {
	count := b.store.Load(ctx).Count()

	b.mu.Lock()
	b.count = count
	b.mu.Unlock()
	return count
}
