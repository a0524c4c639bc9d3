// Package tab keeps the server-side state of open shopper tabs: one Bus and
// one cart Store per tab, and a relay turning cross-tab signals into
// storage events on that Bus while a live feed is attached.
package tab

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/averkiev79-droid/avk-pro-sub000/internal/cart"
	"github.com/averkiev79-droid/avk-pro-sub000/internal/checkout"
	"github.com/averkiev79-droid/avk-pro-sub000/internal/notify"
)

// Tab is one execution context of a storage origin.
type Tab struct {
	Origin string
	ID     string
	Bus    *notify.Bus
	Store  *cart.DurableStore

	// op serialises the tab's mutations so they apply in request order.
	op sync.Mutex

	mu         sync.Mutex
	lastSeen   time.Time
	feeds      int
	checkout   *checkout.Pipeline
	redirectFn map[uint64]func(path string)
	nextID     uint64
	closed     bool

	// relayMu guards feed attachment and the relay subscription, which
	// exists only while feeds > 0.
	relayMu     sync.Mutex
	broadcaster notify.Broadcaster
	sub         notify.Subscription
	relayDone   chan struct{}
}

func (t *Tab) Lock()   { t.op.Lock() }
func (t *Tab) Unlock() { t.op.Unlock() }

func (t *Tab) touch(now time.Time) {
	t.mu.Lock()
	t.lastSeen = now
	t.mu.Unlock()
}

// idleSince reports whether the tab has had no request and no live feed since cutoff.
func (t *Tab) idleSince(cutoff time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.feeds == 0 && t.lastSeen.Before(cutoff)
}

// Attach marks a live event feed; the tab is not swept while one is attached.
// The first feed subscribes the tab to cross-tab signals and the last one to
// detach unsubscribes it. The returned func detaches the feed.
func (t *Tab) Attach(ctx context.Context) (func(), error) {
	t.relayMu.Lock()
	defer t.relayMu.Unlock()

	t.mu.Lock()
	closed, first := t.closed, t.feeds == 0
	t.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	if first && t.broadcaster != nil {
		sub, err := t.broadcaster.Subscribe(context.WithoutCancel(ctx), t.Origin, t.ID)
		if err != nil {
			return nil, fmt.Errorf("subscribe tab to cross-tab signals: %w", err)
		}
		t.sub = sub
		t.relayDone = make(chan struct{})
		go t.relay(sub, t.relayDone)
	}

	t.mu.Lock()
	t.feeds++
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(t.detach)
	}, nil
}

func (t *Tab) detach() {
	t.relayMu.Lock()
	defer t.relayMu.Unlock()

	t.mu.Lock()
	t.feeds--
	t.lastSeen = time.Now()
	last := t.feeds == 0
	t.mu.Unlock()

	if last {
		t.stopRelay()
	}
}

// stopRelay requires relayMu.
func (t *Tab) stopRelay() {
	if t.sub == nil {
		return
	}
	_ = t.sub.Close()
	<-t.relayDone
	t.sub = nil
	t.relayDone = nil
}

// Relaying reports whether the tab currently holds a cross-tab subscription.
func (t *Tab) Relaying() bool {
	t.relayMu.Lock()
	defer t.relayMu.Unlock()
	return t.sub != nil
}

// Checkout returns the tab's current checkout pipeline, if any.
func (t *Tab) Checkout() *checkout.Pipeline {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.checkout
}

// SetCheckout replaces the current pipeline, closing the previous one so
// its pending redirect cannot fire.
func (t *Tab) SetCheckout(p *checkout.Pipeline) {
	t.mu.Lock()
	prev := t.checkout
	t.checkout = p
	t.mu.Unlock()

	if prev != nil && prev != p {
		prev.Close()
	}
}

// OnRedirect registers fn to receive navigation requests for this tab.
func (t *Tab) OnRedirect(fn func(path string)) func() {
	t.mu.Lock()
	t.nextID++
	id := t.nextID
	if t.redirectFn == nil {
		t.redirectFn = make(map[uint64]func(string))
	}
	t.redirectFn[id] = fn
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		delete(t.redirectFn, id)
		t.mu.Unlock()
	}
}

// Redirect implements checkout.Redirector. Without a listener the request is
// dropped; the shopper is already elsewhere.
func (t *Tab) Redirect(path string) {
	t.mu.Lock()
	fns := make([]func(string), 0, len(t.redirectFn))
	for _, fn := range t.redirectFn {
		fns = append(fns, fn)
	}
	t.mu.Unlock()

	for _, fn := range fns {
		fn(path)
	}
}

func (t *Tab) relay(sub notify.Subscription, done chan<- struct{}) {
	defer close(done)
	for range sub.Signals() {
		t.Bus.Emit(notify.TopicStorage)
	}
}

func (t *Tab) close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	pipeline := t.checkout
	t.checkout = nil
	t.mu.Unlock()

	if pipeline != nil {
		pipeline.Close()
	}

	t.relayMu.Lock()
	t.stopRelay()
	t.relayMu.Unlock()
}
