package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/tunahanclrr/salon-api/internal/apperr"
	"github.com/tunahanclrr/salon-api/internal/storage"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
}

// writeError maps the domain error taxonomy to HTTP statuses. Unknown errors
// surface as a plain 500 so internals never leak into responses.
func writeError(w http.ResponseWriter, err error) {
	if storage.IsNotFound(err) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
		return
	}
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case apperr.KindNotFound:
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
	case apperr.KindConflict:
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	case apperr.KindInsufficientBalance, apperr.KindInvalidRefund:
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}
