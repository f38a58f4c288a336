package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/ptfpinho23/HeadlessVendingMachine/internal/apperr"
)

// envelope is the body of every API response.
type envelope struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// writeJSON writes JSON response with status code.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeData sends a successful envelope.
func writeData(w http.ResponseWriter, status int, msg string, data any) {
	writeJSON(w, status, envelope{Status: status, Message: msg, Data: data})
}

// writeError sends an error message.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, envelope{Status: status, Message: msg})
}

// writeServiceError maps a service failure onto its status. Internal errors
// are logged with their cause and reported generically.
func (r *Router) writeServiceError(w http.ResponseWriter, req *http.Request, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.Internal {
		r.logger.Error("request failed", "method", req.Method, "path", req.URL.Path, "error", err)
	}
	writeError(w, kind.Status(), apperr.Message(err))
}

func decodeJSON(req *http.Request, dst any) error {
	return json.NewDecoder(req.Body).Decode(dst)
}
