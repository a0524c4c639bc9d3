package orders

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/averkiev79-droid/avk-pro-sub000/internal/domain"
	"github.com/averkiev79-droid/avk-pro-sub000/internal/logger"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const maxOrderBody = 1 << 20

type Handler struct {
	svc *Service
	log *logger.Logger
}

func NewHandler(svc *Service, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{svc: svc, log: log}
}

type CreatedResponse struct {
	ID string `json:"id"`
}

type errorBody struct {
	Error  string `json:"error,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// Routes mounts the Order API under /api/orders.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api/orders", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/{order_id}", h.Get)
	})
}

// POST /api/orders
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var sub domain.OrderSubmission
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxOrderBody)).Decode(&sub); err != nil {
		respond(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body"})
		return
	}

	order, created, err := h.svc.Place(r.Context(), sub, r.Header.Get("Idempotency-Key"))
	var vErr *ValidationError
	switch {
	case errors.As(err, &vErr):
		respond(w, http.StatusUnprocessableEntity, errorBody{Detail: vErr.Detail})
		return
	case err != nil:
		h.log.Error(r.Context(), "place order failed", err)
		respond(w, http.StatusInternalServerError, errorBody{Error: "could not place order"})
		return
	}

	status := http.StatusCreated
	if !created {
		status = http.StatusOK
	}
	respond(w, status, CreatedResponse{ID: order.ID.String()})
}

// GET /api/orders/{order_id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "order_id"))
	if err != nil {
		respond(w, http.StatusBadRequest, errorBody{Error: "order_id must be a UUID"})
		return
	}

	order, err := h.svc.Get(r.Context(), id)
	if errors.Is(err, ErrOrderNotFound) {
		respond(w, http.StatusNotFound, errorBody{Error: "order not found"})
		return
	}
	if err != nil {
		h.log.Error(r.Context(), "get order failed", err)
		respond(w, http.StatusInternalServerError, errorBody{Error: "could not load order"})
		return
	}
	respond(w, http.StatusOK, order)
}

func respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
