// Package checkout implements the one-shot checkout flow: load the cart,
// collect customer details, submit the order and clear the cart on success.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/averkiev79-droid/avk-pro-sub000/internal/cart"
	"github.com/averkiev79-droid/avk-pro-sub000/internal/domain"
	"github.com/averkiev79-droid/avk-pro-sub000/internal/logger"
	"github.com/averkiev79-droid/avk-pro-sub000/internal/metrics"
	"github.com/averkiev79-droid/avk-pro-sub000/internal/orderapi"
	"github.com/averkiev79-droid/avk-pro-sub000/internal/toast"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	DefaultSubmitTimeout = 15 * time.Second
	DefaultRedirectDelay = 3 * time.Second
	DefaultRedirectPath  = "/"

	clearTimeout = 5 * time.Second
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report form fields by their JSON names
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// OrderSubmitter sends an order to the backend.
type OrderSubmitter interface {
	Submit(ctx context.Context, sub domain.OrderSubmission, idempotencyKey string) (orderapi.Receipt, error)
}

// Redirector navigates the shopper away from checkout.
type Redirector interface {
	Redirect(path string)
}

type RedirectFunc func(path string)

func (f RedirectFunc) Redirect(path string) { f(path) }

type Options struct {
	SubmitTimeout time.Duration
	RedirectDelay time.Duration
	RedirectPath  string
	Logger        *logger.Logger
	Metrics       *metrics.Metrics
}

// Snapshot is what the checkout screen renders.
type Snapshot struct {
	Status    domain.CheckoutStatus `json:"status"`
	Items     []domain.LineItem     `json:"items"`
	Total     decimal.Decimal       `json:"total"`
	Customer  domain.Customer       `json:"customer"`
	LastError string                `json:"last_error,omitempty"`
	OrderID   string                `json:"order_id,omitempty"`
}

type Pipeline struct {
	store          cart.Store
	orders         OrderSubmitter
	toaster        toast.Toaster
	redirector     Redirector
	opts           Options
	log            *logger.Logger
	idempotencyKey string

	mu        sync.Mutex
	status    domain.CheckoutStatus
	cart      domain.Cart
	customer  domain.Customer
	lastError string
	orderID   string
	redirect  *time.Timer
	closed    bool
}

func NewPipeline(store cart.Store, orders OrderSubmitter, toaster toast.Toaster, redirector Redirector, opts Options) *Pipeline {
	if opts.SubmitTimeout <= 0 {
		opts.SubmitTimeout = DefaultSubmitTimeout
	}
	if opts.RedirectDelay <= 0 {
		opts.RedirectDelay = DefaultRedirectDelay
	}
	if opts.RedirectPath == "" {
		opts.RedirectPath = DefaultRedirectPath
	}
	if toaster == nil {
		toaster = toast.Discard
	}
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}

	return &Pipeline{
		store:          store,
		orders:         orders,
		toaster:        toaster,
		redirector:     redirector,
		opts:           opts,
		log:            log,
		idempotencyKey: uuid.NewString(),
		status:         domain.CheckoutStatusLoading,
	}
}

// Enter reads the cart once and settles on EMPTY or FILLED.
func (p *Pipeline) Enter(ctx context.Context) (domain.CheckoutStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return p.status, ErrClosed
	}
	if p.status != domain.CheckoutStatusLoading {
		return p.status, ErrAlreadyEntered
	}

	p.cart = p.store.Load(ctx)
	if p.cart.Empty() {
		p.status = domain.CheckoutStatusEmpty
	} else {
		p.status = domain.CheckoutStatusFilled
	}
	return p.status, nil
}

// Submit validates the form and sends the order. The cart is cleared only
// when the Order API accepted it; any failure returns the pipeline to FILLED
// with the form values kept for a retry.
func (p *Pipeline) Submit(ctx context.Context, customer domain.Customer) error {
	p.mu.Lock()
	switch {
	case p.closed:
		p.mu.Unlock()
		return ErrClosed
	case p.status == domain.CheckoutStatusSubmitting:
		p.mu.Unlock()
		return ErrSubmitInProgress
	case !domain.CanTransitionTo(p.status, domain.CheckoutStatusSubmitting):
		p.mu.Unlock()
		return ErrNotReady
	}

	p.customer = customer
	if err := validateCustomer(customer); err != nil {
		p.mu.Unlock()
		p.toasterFor(ctx).Warning("Please fill in all required fields")
		p.opts.Metrics.CheckoutOutcome("invalid")
		return err
	}

	p.status = domain.CheckoutStatusSubmitting
	p.lastError = ""
	submission := domain.NewOrderSubmission(p.cart, customer)
	p.mu.Unlock()

	submitCtx, cancel := context.WithTimeout(ctx, p.opts.SubmitTimeout)
	receipt, err := p.orders.Submit(submitCtx, submission, p.idempotencyKey)
	cancel()
	if err != nil {
		return p.fail(ctx, err)
	}

	// the order exists now: the cart is cleared even if the caller has gone
	// away, and a failed clear must not turn it into a retry
	clearCtx, cancelClear := context.WithTimeout(context.WithoutCancel(ctx), clearTimeout)
	if clearErr := p.store.Clear(clearCtx); clearErr != nil {
		p.log.Error(ctx, "clearing cart after accepted order failed", clearErr)
	}
	cancelClear()

	p.mu.Lock()
	p.status = domain.CheckoutStatusSubmitted
	p.orderID = receipt.ID
	p.cart = domain.Cart{}
	if !p.closed {
		p.redirect = time.AfterFunc(p.opts.RedirectDelay, p.fireRedirect)
	}
	p.mu.Unlock()

	p.opts.Metrics.CheckoutOutcome("submitted")
	p.toasterFor(ctx).Success("Order placed! We will contact you shortly.")
	return nil
}

func (p *Pipeline) fail(ctx context.Context, err error) error {
	message := failureMessage(err)

	p.mu.Lock()
	p.status = domain.CheckoutStatusFilled
	p.lastError = message
	p.mu.Unlock()

	p.log.Warn(ctx, "order submission failed", err)
	p.opts.Metrics.CheckoutOutcome("failed")
	p.toasterFor(ctx).Error(message)
	return fmt.Errorf("submit order: %w", err)
}

func failureMessage(err error) string {
	var apiErr *orderapi.APIError
	switch {
	case errors.As(err, &apiErr) && apiErr.Detail != "":
		return "Order failed: " + apiErr.Detail
	case errors.Is(err, context.DeadlineExceeded):
		return "Order failed: the server did not respond in time, please try again"
	case errors.Is(err, orderapi.ErrUnavailable):
		return "Order failed: the service is temporarily unavailable, please try again"
	default:
		return "Order failed, please try again"
	}
}

// toasterFor prefers the toaster of the request driving the pipeline.
func (p *Pipeline) toasterFor(ctx context.Context) toast.Toaster {
	return toast.FromContext(ctx, p.toaster)
}

func (p *Pipeline) fireRedirect() {
	p.mu.Lock()
	closed := p.closed
	p.redirect = nil
	p.mu.Unlock()

	if closed || p.redirector == nil {
		return
	}
	p.redirector.Redirect(p.opts.RedirectPath)
}

// Close abandons the pipeline; a pending redirect never fires.
func (p *Pipeline) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	if p.redirect != nil {
		p.redirect.Stop()
		p.redirect = nil
	}
}

func (p *Pipeline) Status() domain.CheckoutStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// IdempotencyKey is sent with every submission attempt of this pipeline.
func (p *Pipeline) IdempotencyKey() string {
	return p.idempotencyKey
}

func (p *Pipeline) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	items := p.cart.Clone().Items
	if items == nil {
		items = []domain.LineItem{}
	}
	return Snapshot{
		Status:    p.status,
		Items:     items,
		Total:     p.cart.Total(),
		Customer:  p.customer,
		LastError: p.lastError,
		OrderID:   p.orderID,
	}
}

func validateCustomer(customer domain.Customer) error {
	err := validate.Struct(customer)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate checkout form: %w", err)
	}
	fields := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields = append(fields, fe.Field())
	}
	return &ValidationError{Fields: fields}
}
