package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/averkiev79-droid/avk-pro-sub000/internal/checkout"
	"github.com/averkiev79-droid/avk-pro-sub000/internal/domain"
	"github.com/averkiev79-droid/avk-pro-sub000/internal/logger"
	"github.com/averkiev79-droid/avk-pro-sub000/internal/orderapi"
	"github.com/averkiev79-droid/avk-pro-sub000/internal/tab"
	"github.com/averkiev79-droid/avk-pro-sub000/internal/toast"
)

type CheckoutHandler struct {
	orders checkout.OrderSubmitter
	opts   checkout.Options
	log    *logger.Logger
}

func NewCheckoutHandler(orders checkout.OrderSubmitter, opts checkout.Options, log *logger.Logger) *CheckoutHandler {
	return &CheckoutHandler{orders: orders, opts: opts, log: log}
}

type CheckoutResponse struct {
	checkout.Snapshot
	Toasts []toast.Toast `json:"toasts"`
}

// enter starts a fresh pipeline for the tab, replacing any previous one.
func (h *CheckoutHandler) enter(ctx context.Context, t *tab.Tab) *checkout.Pipeline {
	p := checkout.NewPipeline(t.Store, h.orders, nil, t, h.opts)
	t.SetCheckout(p)
	// a fresh pipeline can only fail to enter once closed, i.e. when its tab was swept
	if _, err := p.Enter(ctx); err != nil {
		h.log.Warn(ctx, "enter checkout failed", err)
	}
	return p
}

// GET /api/v1/checkout
func (h *CheckoutHandler) Enter(w http.ResponseWriter, r *http.Request) {
	t := getTab(r.Context())
	t.Lock()
	p := h.enter(r.Context(), t)
	t.Unlock()

	respondJSON(w, http.StatusOK, CheckoutResponse{Snapshot: p.Snapshot(), Toasts: []toast.Toast{}})
}

// POST /api/v1/checkout
//
// The tab lock is not held while the order is in flight so that a second
// submit is answered with a conflict instead of queueing behind the first.
func (h *CheckoutHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var customer domain.Customer
	if err := decodeJSON(w, r, &customer); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	t := getTab(r.Context())
	t.Lock()
	p := t.Checkout()
	if p == nil {
		p = h.enter(r.Context(), t)
	}
	t.Unlock()

	rec := &toast.Recorder{}
	ctx := toast.NewContext(r.Context(), rec)
	err := p.Submit(ctx, customer)
	if err == nil {
		respondJSON(w, http.StatusOK, CheckoutResponse{Snapshot: p.Snapshot(), Toasts: rec.Drain()})
		return
	}

	var vErr *checkout.ValidationError
	var apiErr *orderapi.APIError
	switch {
	case errors.As(err, &vErr):
		respondErrorWithToasts(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:  "required fields are missing or invalid",
			Code:   "validation_failed",
			Fields: vErr.Fields,
		}, rec)
	case errors.Is(err, checkout.ErrSubmitInProgress):
		respondError(w, http.StatusConflict, "submit_in_progress", err.Error())
	case errors.Is(err, checkout.ErrNotReady), errors.Is(err, checkout.ErrClosed):
		respondError(w, http.StatusConflict, "checkout_not_ready", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		respondErrorWithToasts(w, http.StatusGatewayTimeout, ErrorResponse{
			Error: "order api did not respond in time",
			Code:  "timeout",
		}, rec)
	case errors.As(err, &apiErr):
		respondErrorWithToasts(w, http.StatusBadGateway, ErrorResponse{
			Error:   "order was not accepted",
			Code:    "order_rejected",
			Details: apiErr.Detail,
		}, rec)
	case errors.Is(err, orderapi.ErrUnavailable):
		respondErrorWithToasts(w, http.StatusBadGateway, ErrorResponse{
			Error: "order api unavailable",
			Code:  "service_unavailable",
		}, rec)
	default:
		respondErrorWithToasts(w, http.StatusBadGateway, ErrorResponse{
			Error: "order submission failed",
			Code:  "order_failed",
		}, rec)
	}
}
