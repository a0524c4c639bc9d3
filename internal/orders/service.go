package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/averkiev79-droid/avk-pro-sub000/internal/domain"
	"github.com/averkiev79-droid/avk-pro-sub000/internal/logger"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidationError carries a human readable reason returned as `detail`.
type ValidationError struct {
	Detail string
}

func (e *ValidationError) Error() string { return e.Detail }

type Service struct {
	repo      Repository
	publisher Publisher
	log       *logger.Logger
}

// NewService wires the order flow; a nil publisher disables event publication.
func NewService(repo Repository, publisher Publisher, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{repo: repo, publisher: publisher, log: log}
}

// Place stores a submission. A repeated idempotency key returns the order
// created by the first request with created=false.
func (s *Service) Place(ctx context.Context, sub domain.OrderSubmission, idempotencyKey string) (*Order, bool, error) {
	if err := validateSubmission(sub); err != nil {
		return nil, false, err
	}

	if idempotencyKey != "" {
		existing, err := s.repo.GetOrderByIdempotencyKey(ctx, idempotencyKey)
		if err == nil {
			s.log.Info(s.log.WithField(ctx, "order_id", existing.ID.String()), "duplicate order submission")
			return existing, false, nil
		}
		if !errors.Is(err, ErrOrderNotFound) {
			return nil, false, fmt.Errorf("failed to check idempotency: %w", err)
		}
	}

	order := NewOrder(sub, idempotencyKey)
	if err := s.repo.CreateOrder(ctx, order); err != nil {
		if errors.Is(err, ErrDuplicateOrder) && idempotencyKey != "" {
			// lost a race with a concurrent retry of the same submission
			existing, getErr := s.repo.GetOrderByIdempotencyKey(ctx, idempotencyKey)
			if getErr != nil {
				return nil, false, fmt.Errorf("failed to load concurrent order: %w", getErr)
			}
			return existing, false, nil
		}
		return nil, false, err
	}

	if s.publisher != nil {
		if err := s.publisher.OrderPlaced(ctx, order); err != nil {
			s.log.Warn(s.log.WithField(ctx, "order_id", order.ID.String()), "order placed event not published", err)
		}
	}
	return order, true, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Order, error) {
	return s.repo.GetOrderByID(ctx, id)
}

func validateSubmission(sub domain.OrderSubmission) error {
	if err := validate.Struct(sub); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return &ValidationError{Detail: err.Error()}
		}
		fields := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			fields = append(fields, fe.Namespace())
		}
		return &ValidationError{Detail: "invalid fields: " + strings.Join(fields, ", ")}
	}

	for _, item := range sub.Items {
		if item.Price.IsNegative() {
			return &ValidationError{Detail: "item price must not be negative"}
		}
	}
	order := Order{Items: sub.Items}
	if !order.ItemsTotal().Equal(sub.TotalAmount) {
		return &ValidationError{Detail: "total_amount does not match items"}
	}
	return nil
}
