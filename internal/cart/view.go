package cart

import (
	"context"
	"fmt"
	"sync"

	"github.com/averkiev79-droid/avk-pro-sub000/internal/domain"
	"github.com/averkiev79-droid/avk-pro-sub000/internal/notify"
	"github.com/averkiev79-droid/avk-pro-sub000/internal/toast"
	"github.com/shopspring/decimal"
)

// View holds a render-local copy of the cart, hydrated from the Store at
// mount and again on every change notification.
type View struct {
	store   Store
	bus     *notify.Bus
	toaster toast.Toaster

	opMu sync.Mutex // serialises mutate-then-save sequences

	mu     sync.RWMutex
	cart   domain.Cart
	unsubs []func()
}

func NewView(store Store, bus *notify.Bus, toaster toast.Toaster) *View {
	if toaster == nil {
		toaster = toast.Discard
	}
	return &View{store: store, bus: bus, toaster: toaster}
}

// Mount loads the cart once and subscribes to change notifications until Unmount.
func (v *View) Mount(ctx context.Context) {
	v.refresh(ctx)

	if v.bus == nil {
		return
	}
	bg := context.WithoutCancel(ctx)
	handler := func() { v.refresh(bg) }

	v.mu.Lock()
	v.unsubs = append(v.unsubs,
		v.bus.Subscribe(notify.TopicCartUpdated, handler),
		v.bus.Subscribe(notify.TopicStorage, handler),
	)
	v.mu.Unlock()
}

func (v *View) Unmount() {
	v.mu.Lock()
	unsubs := v.unsubs
	v.unsubs = nil
	v.mu.Unlock()

	for _, unsubscribe := range unsubs {
		unsubscribe()
	}
}

func (v *View) refresh(ctx context.Context) {
	cart := v.store.Load(ctx)

	v.mu.Lock()
	v.cart = cart
	v.mu.Unlock()
}

func (v *View) Items() []domain.LineItem {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.cart.Clone().Items
}

func (v *View) Total() decimal.Decimal {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.cart.Total()
}

func (v *View) Count() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.cart.Count()
}

// Empty reports whether the view should show the browse-catalog state.
func (v *View) Empty() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.cart.Empty()
}

// UpdateQuantity sets the quantity of one line. Quantities below the minimum
// are rejected with a warning and nothing is written.
func (v *View) UpdateQuantity(ctx context.Context, itemID string, quantity int) error {
	if quantity < domain.MinOrderQuantity {
		v.toaster.Warning(fmt.Sprintf("Minimum order quantity is %d", domain.MinOrderQuantity))
		return ErrBelowMinimum
	}

	v.opMu.Lock()
	defer v.opMu.Unlock()

	v.mu.Lock()
	idx := v.cart.Find(itemID)
	if idx < 0 {
		v.mu.Unlock()
		return ErrItemNotFound
	}
	next := v.cart.Clone()
	next.Items[idx].Quantity = quantity
	v.cart = next
	v.mu.Unlock()

	if err := v.store.Save(ctx, next); err != nil {
		v.refresh(ctx)
		return err
	}
	return nil
}

// RemoveItem deletes one line. Removing an id that is no longer in the cart
// is a no-op, so a repeated click cannot resurrect a stale list.
func (v *View) RemoveItem(ctx context.Context, itemID string) error {
	v.opMu.Lock()
	defer v.opMu.Unlock()

	v.mu.Lock()
	idx := v.cart.Find(itemID)
	if idx < 0 {
		v.mu.Unlock()
		return nil
	}
	removed := v.cart.Items[idx]
	next := v.cart.Clone()
	next.Items = append(next.Items[:idx], next.Items[idx+1:]...)
	v.cart = next
	v.mu.Unlock()

	if err := v.store.Save(ctx, next); err != nil {
		v.refresh(ctx)
		return err
	}

	v.toaster.Success(fmt.Sprintf("%s removed from cart", removed.Name))
	return nil
}
