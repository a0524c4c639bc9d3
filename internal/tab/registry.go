package tab

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/averkiev79-droid/avk-pro-sub000/internal/cart"
	"github.com/averkiev79-droid/avk-pro-sub000/internal/logger"
	"github.com/averkiev79-droid/avk-pro-sub000/internal/metrics"
	"github.com/averkiev79-droid/avk-pro-sub000/internal/notify"
	"github.com/averkiev79-droid/avk-pro-sub000/internal/storage"
)

const (
	DefaultIdleTTL       = 30 * time.Minute
	DefaultSweepInterval = time.Minute
)

var (
	ErrInvalidTab = errors.New("origin and tab id are required")
	ErrClosed     = errors.New("tab registry closed")
)

type Options struct {
	IdleTTL       time.Duration
	SweepInterval time.Duration
	Logger        *logger.Logger
	Metrics       *metrics.Metrics
}

type tabKey struct {
	origin string
	id     string
}

// Registry owns every open Tab and sweeps the idle ones.
type Registry struct {
	storage     storage.Storage
	broadcaster notify.Broadcaster
	opts        Options
	log         *logger.Logger
	now         func() time.Time

	mu     sync.Mutex
	tabs   map[tabKey]*Tab
	closed bool

	stopSweep chan struct{}
	wg        sync.WaitGroup
}

func NewRegistry(st storage.Storage, broadcaster notify.Broadcaster, opts Options) *Registry {
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = DefaultIdleTTL
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = DefaultSweepInterval
	}
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}

	r := &Registry{
		storage:     st,
		broadcaster: broadcaster,
		opts:        opts,
		log:         log,
		now:         time.Now,
		tabs:        make(map[tabKey]*Tab),
		stopSweep:   make(chan struct{}),
	}

	r.wg.Add(1)
	go r.sweepLoop()

	return r
}

// Open returns the tab for (origin, tabID), creating and wiring it on first use.
func (r *Registry) Open(ctx context.Context, origin, tabID string) (*Tab, error) {
	if origin == "" || tabID == "" {
		return nil, ErrInvalidTab
	}
	key := tabKey{origin: origin, id: tabID}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrClosed
	}
	if t, ok := r.tabs[key]; ok {
		t.touch(r.now())
		return t, nil
	}

	t := r.newTab(origin, tabID)
	r.tabs[key] = t
	r.opts.Metrics.SetOpenTabs(len(r.tabs))

	logCtx := r.log.WithTab(r.log.WithOrigin(ctx, origin), tabID)
	r.log.Debug(logCtx, "tab opened")
	return t, nil
}

// Transient returns a tab that is not kept in the registry. It serves
// requests that carry no tab id: nothing can address it again, so it holds
// no cross-tab subscription until a feed attaches and is never swept.
func (r *Registry) Transient(origin, tabID string) (*Tab, error) {
	if origin == "" || tabID == "" {
		return nil, ErrInvalidTab
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrClosed
	}
	return r.newTab(origin, tabID), nil
}

func (r *Registry) newTab(origin, tabID string) *Tab {
	bus := notify.NewBus()
	return &Tab{
		Origin:      origin,
		ID:          tabID,
		Bus:         bus,
		Store:       cart.NewDurableStore(r.storage, origin, tabID, bus, r.broadcaster, r.log),
		lastSeen:    r.now(),
		broadcaster: r.broadcaster,
	}
}

func (r *Registry) Get(origin, tabID string) (*Tab, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tabs[tabKey{origin: origin, id: tabID}]
	return t, ok
}

// CloseTab forgets one tab and stops its relay.
func (r *Registry) CloseTab(origin, tabID string) {
	r.mu.Lock()
	key := tabKey{origin: origin, id: tabID}
	t, ok := r.tabs[key]
	if ok {
		delete(r.tabs, key)
		r.opts.Metrics.SetOpenTabs(len(r.tabs))
	}
	r.mu.Unlock()

	if ok {
		t.close()
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tabs)
}

func (r *Registry) sweepLoop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.opts.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.sweep()
		case <-r.stopSweep:
			return
		}
	}
}

// sweep closes every tab idle for longer than IdleTTL.
func (r *Registry) sweep() int {
	cutoff := r.now().Add(-r.opts.IdleTTL)

	r.mu.Lock()
	var idle []*Tab
	for key, t := range r.tabs {
		if t.idleSince(cutoff) {
			idle = append(idle, t)
			delete(r.tabs, key)
		}
	}
	if len(idle) > 0 {
		r.opts.Metrics.SetOpenTabs(len(r.tabs))
	}
	r.mu.Unlock()

	for _, t := range idle {
		t.close()
	}
	if len(idle) > 0 {
		r.log.Debug(context.Background(), fmt.Sprintf("swept %d idle tabs", len(idle)))
	}
	return len(idle)
}

// Close stops the sweeper and closes every tab.
func (r *Registry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	tabs := r.tabs
	r.tabs = make(map[tabKey]*Tab)
	r.opts.Metrics.SetOpenTabs(0)
	r.mu.Unlock()

	close(r.stopSweep)
	r.wg.Wait()

	for _, t := range tabs {
		t.close()
	}
	return nil
}
