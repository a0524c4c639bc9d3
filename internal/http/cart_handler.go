package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/averkiev79-droid/avk-pro-sub000/internal/cart"
	"github.com/averkiev79-droid/avk-pro-sub000/internal/domain"
	"github.com/averkiev79-droid/avk-pro-sub000/internal/logger"
	"github.com/averkiev79-droid/avk-pro-sub000/internal/metrics"
	"github.com/averkiev79-droid/avk-pro-sub000/internal/toast"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type CartHandler struct {
	log     *logger.Logger
	metrics *metrics.Metrics
	timeout time.Duration
}

func NewCartHandler(log *logger.Logger, m *metrics.Metrics, timeout time.Duration) *CartHandler {
	return &CartHandler{log: log, metrics: m, timeout: timeout}
}

type UpdateQuantityRequestDTO struct {
	Quantity *int `json:"quantity"`
}

type CartResponse struct {
	Items  []domain.LineItem `json:"items"`
	Total  decimal.Decimal   `json:"total"`
	Count  int               `json:"count"`
	Empty  bool              `json:"empty"`
	Toasts []toast.Toast     `json:"toasts"`
}

type CountResponse struct {
	Count int `json:"count"`
}

func newCartResponse(view *cart.View, rec *toast.Recorder) CartResponse {
	items := view.Items()
	if items == nil {
		items = []domain.LineItem{}
	}
	return CartResponse{
		Items:  items,
		Total:  view.Total(),
		Count:  view.Count(),
		Empty:  view.Empty(),
		Toasts: rec.Drain(),
	}
}

// mountView opens a Cart View over the request's tab for the duration of the request.
func (h *CartHandler) mountView(ctx context.Context, rec *toast.Recorder) (*cart.View, func()) {
	t := getTab(ctx)
	view := cart.NewView(t.Store, t.Bus, rec)
	view.Mount(ctx)
	return view, view.Unmount
}

// GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	rec := &toast.Recorder{}
	view, unmount := h.mountView(ctx, rec)
	defer unmount()

	respondJSON(w, http.StatusOK, newCartResponse(view, rec))
}

// POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var item domain.LineItem
	if err := decodeJSON(w, r, &item); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	t := getTab(ctx)
	t.Lock()
	defer t.Unlock()

	rec := &toast.Recorder{}
	_, err := cart.Add(ctx, t.Store, item)
	switch {
	case errors.Is(err, cart.ErrBelowMinimum):
		h.metrics.CartMutation("add", "rejected")
		rec.Warning(fmt.Sprintf("Minimum order quantity is %d", domain.MinOrderQuantity))
		respondErrorWithToasts(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error: err.Error(),
			Code:  "below_minimum",
		}, rec)
		return
	case errors.Is(err, cart.ErrInvalidItem):
		h.metrics.CartMutation("add", "rejected")
		respondJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "invalid cart item",
			Code:    "invalid_item",
			Details: err.Error(),
		})
		return
	case err != nil:
		h.fail(ctx, w, "add", err, rec)
		return
	}

	h.metrics.CartMutation("add", "ok")
	rec.Success(fmt.Sprintf("%s added to cart", item.Name))

	view, unmount := h.mountView(ctx, rec)
	defer unmount()
	respondJSON(w, http.StatusCreated, newCartResponse(view, rec))
}

// PUT /api/v1/cart/items/{item_id}
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	itemID := chi.URLParam(r, "item_id")
	var req UpdateQuantityRequestDTO
	if err := decodeJSON(w, r, &req); err != nil || req.Quantity == nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "quantity is required")
		return
	}

	t := getTab(ctx)
	t.Lock()
	defer t.Unlock()

	rec := &toast.Recorder{}
	view, unmount := h.mountView(ctx, rec)
	defer unmount()

	err := view.UpdateQuantity(ctx, itemID, *req.Quantity)
	switch {
	case errors.Is(err, cart.ErrBelowMinimum):
		h.metrics.CartMutation("update", "rejected")
		respondErrorWithToasts(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error: err.Error(),
			Code:  "below_minimum",
		}, rec)
		return
	case errors.Is(err, cart.ErrItemNotFound):
		h.metrics.CartMutation("update", "rejected")
		respondError(w, http.StatusNotFound, "not_found", err.Error())
		return
	case err != nil:
		h.fail(ctx, w, "update", err, rec)
		return
	}

	h.metrics.CartMutation("update", "ok")
	respondJSON(w, http.StatusOK, newCartResponse(view, rec))
}

// DELETE /api/v1/cart/items/{item_id}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	t := getTab(ctx)
	t.Lock()
	defer t.Unlock()

	rec := &toast.Recorder{}
	view, unmount := h.mountView(ctx, rec)
	defer unmount()

	if err := view.RemoveItem(ctx, chi.URLParam(r, "item_id")); err != nil {
		h.fail(ctx, w, "remove", err, rec)
		return
	}

	h.metrics.CartMutation("remove", "ok")
	respondJSON(w, http.StatusOK, newCartResponse(view, rec))
}

// GET /api/v1/cart/count
func (h *CartHandler) GetCount(w http.ResponseWriter, r *http.Request) {
	t := getTab(r.Context())
	badge := cart.NewBadge(t.Store, nil)
	badge.Mount(r.Context())

	respondJSON(w, http.StatusOK, CountResponse{Count: badge.Count()})
}

func (h *CartHandler) fail(ctx context.Context, w http.ResponseWriter, op string, err error, rec *toast.Recorder) {
	h.metrics.CartMutation(op, "error")
	h.log.Error(ctx, "cart "+op+" failed", err)
	rec.Error("Could not update the cart, please try again")
	respondErrorWithToasts(w, http.StatusInternalServerError, ErrorResponse{
		Error: "could not update cart",
		Code:  "storage_error",
	}, rec)
}
