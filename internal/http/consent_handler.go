package http

import (
	"net/http"

	"github.com/averkiev79-droid/avk-pro-sub000/internal/consent"
	"github.com/averkiev79-droid/avk-pro-sub000/internal/logger"
)

type ConsentHandler struct {
	consent *consent.Service
	log     *logger.Logger
}

func NewConsentHandler(svc *consent.Service, log *logger.Logger) *ConsentHandler {
	return &ConsentHandler{consent: svc, log: log}
}

type ConsentRequestDTO struct {
	Accepted *bool `json:"accepted"`
}

// GET /api/v1/consent
func (h *ConsentHandler) Get(w http.ResponseWriter, r *http.Request) {
	state, err := h.consent.Get(r.Context(), getOrigin(r.Context()))
	if err != nil {
		h.log.Error(r.Context(), "read consent failed", err)
		respondError(w, http.StatusInternalServerError, "storage_error", "could not read consent")
		return
	}
	respondJSON(w, http.StatusOK, state)
}

// PUT /api/v1/consent
func (h *ConsentHandler) Put(w http.ResponseWriter, r *http.Request) {
	var req ConsentRequestDTO
	if err := decodeJSON(w, r, &req); err != nil || req.Accepted == nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "accepted is required")
		return
	}

	if err := h.consent.Set(r.Context(), getOrigin(r.Context()), *req.Accepted); err != nil {
		h.log.Error(r.Context(), "save consent failed", err)
		respondError(w, http.StatusInternalServerError, "storage_error", "could not save consent")
		return
	}
	respondJSON(w, http.StatusOK, consent.State{Decided: true, Accepted: *req.Accepted})
}
