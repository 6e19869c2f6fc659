package http

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/taskflow/internal/errs"
)

type errorBody struct {
	Error string `json:"error"`
}

// WriteJSON writes v as the JSON response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("Failed to write response body")
	}
}

// WriteError maps err to its status and writes {"error": message}. Only the
// caller-facing message is sent; the full error is logged for server faults.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	kind := errs.KindOf(err)
	status := errs.HTTPStatus(kind)

	logger := zerolog.Ctx(r.Context())
	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).Str("kind", kind.String()).Msg("Request failed")
	} else {
		logger.Debug().Err(err).Str("kind", kind.String()).Msg("Request rejected")
	}

	WriteJSON(w, status, errorBody{Error: errs.Message(err)})
}
