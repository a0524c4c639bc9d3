package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/averkiev79-droid/avk-pro-sub000/internal/domain"
	"github.com/averkiev79-droid/avk-pro-sub000/internal/logger"
	"github.com/averkiev79-droid/avk-pro-sub000/internal/notify"
	"github.com/averkiev79-droid/avk-pro-sub000/internal/storage"
	"golang.org/x/sync/singleflight"
)

// Store is the single source of truth for cart contents.
type Store interface {
	// Load never fails: a missing or unreadable record is an empty cart.
	Load(ctx context.Context) domain.Cart
	// Save replaces the whole record and notifies subscribers.
	Save(ctx context.Context, cart domain.Cart) error
	// Clear removes the record and notifies subscribers.
	Clear(ctx context.Context) error
}

// DurableStore persists the cart of one origin and notifies the writing tab
// synchronously through its Bus and every other tab through the Broadcaster.
type DurableStore struct {
	storage     storage.Storage
	origin      string
	tabID       string
	bus         *notify.Bus
	broadcaster notify.Broadcaster
	log         *logger.Logger
	sfg         singleflight.Group // collapses concurrent reads of the same record
}

func NewDurableStore(
	st storage.Storage,
	origin, tabID string,
	bus *notify.Bus,
	broadcaster notify.Broadcaster,
	log *logger.Logger,
) *DurableStore {
	if log == nil {
		log = logger.Nop()
	}
	return &DurableStore{
		storage:     st,
		origin:      origin,
		tabID:       tabID,
		bus:         bus,
		broadcaster: broadcaster,
		log:         log,
	}
}

func (s *DurableStore) Load(ctx context.Context) domain.Cart {
	v, _, _ := s.sfg.Do(s.origin, func() (interface{}, error) {
		return s.read(ctx), nil
	})
	return v.(domain.Cart).Clone()
}

func (s *DurableStore) read(ctx context.Context) domain.Cart {
	raw, err := s.storage.Get(ctx, s.origin, storage.KeyCart)
	if errors.Is(err, storage.ErrNotFound) {
		return domain.Cart{}
	}
	if err != nil {
		s.log.Error(s.logCtx(ctx), "cart read failed, treating as empty", err)
		return domain.Cart{}
	}

	var items []domain.LineItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		s.log.Warn(s.logCtx(ctx), "cart record is corrupt, treating as empty", err)
		return domain.Cart{}
	}
	return domain.Cart{Items: items}
}

func (s *DurableStore) Save(ctx context.Context, cart domain.Cart) error {
	items := cart.Items
	if items == nil {
		items = []domain.LineItem{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}

	if err := s.storage.Set(ctx, s.origin, storage.KeyCart, string(data)); err != nil {
		return fmt.Errorf("save cart failed: %w", err)
	}

	s.changed(ctx)
	return nil
}

func (s *DurableStore) Clear(ctx context.Context) error {
	if err := s.storage.Delete(ctx, s.origin, storage.KeyCart); err != nil {
		return fmt.Errorf("clear cart failed: %w", err)
	}

	s.changed(ctx)
	return nil
}

func (s *DurableStore) changed(ctx context.Context) {
	// reads that started before the write must not be shared with readers woken by it
	s.sfg.Forget(s.origin)

	if s.bus != nil {
		s.bus.Emit(notify.TopicCartUpdated)
	}
	if s.broadcaster != nil {
		if err := s.broadcaster.Publish(ctx, s.origin, s.tabID); err != nil {
			s.log.Warn(s.logCtx(ctx), "cross-tab publish failed", err)
		}
	}
}

func (s *DurableStore) logCtx(ctx context.Context) context.Context {
	ctx = s.log.WithOrigin(ctx, s.origin)
	return s.log.WithTab(ctx, s.tabID)
}
