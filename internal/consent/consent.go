// Package consent persists the shopper's cookie-acceptance choice next to
// the cart in durable storage.
package consent

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/averkiev79-droid/avk-pro-sub000/internal/storage"
)

// State is the recorded answer. Decided is false until the shopper chose.
type State struct {
	Decided  bool `json:"decided"`
	Accepted bool `json:"accepted"`
}

type Service struct {
	storage storage.Storage
}

func NewService(st storage.Storage) *Service {
	return &Service{storage: st}
}

// Get reads the flag. A missing or unrecognised value counts as undecided.
func (s *Service) Get(ctx context.Context, origin string) (State, error) {
	raw, err := s.storage.Get(ctx, origin, storage.KeyCookiesAccepted)
	if errors.Is(err, storage.ErrNotFound) {
		return State{}, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("read consent failed: %w", err)
	}

	accepted, err := strconv.ParseBool(raw)
	if err != nil {
		return State{}, nil
	}
	return State{Decided: true, Accepted: accepted}, nil
}

// Set stores "true" or "false".
func (s *Service) Set(ctx context.Context, origin string, accepted bool) error {
	if err := s.storage.Set(ctx, origin, storage.KeyCookiesAccepted, strconv.FormatBool(accepted)); err != nil {
		return fmt.Errorf("save consent failed: %w", err)
	}
	return nil
}
