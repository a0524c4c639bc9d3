package http

import (
	"encoding/json"
	"net/http"

	"github.com/averkiev79-droid/avk-pro-sub000/internal/toast"
)

type ErrorResponse struct {
	Error   string        `json:"error"`
	Code    string        `json:"code,omitempty"`
	Details string        `json:"details,omitempty"`
	Fields  []string      `json:"fields,omitempty"`
	Toasts  []toast.Toast `json:"toasts,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// headers are already sent; nothing useful is left to do on failure
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

func respondErrorWithToasts(w http.ResponseWriter, status int, resp ErrorResponse, rec *toast.Recorder) {
	resp.Toasts = rec.Drain()
	respondJSON(w, status, resp)
}

const maxRequestBody = 1 << 20 // 1MB

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(dst)
}
