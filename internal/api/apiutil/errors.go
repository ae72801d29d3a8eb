package apiutil

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/codr1/oche/internal/leagues"
)

type errorBody struct {
	Error string `json:"error"`
}

// StatusFor maps league error kinds onto HTTP status codes.
func StatusFor(err error) int {
	var handlerErr HandlerError
	switch {
	case errors.As(err, &handlerErr):
		return handlerErr.Status
	case errors.Is(err, leagues.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, leagues.ErrPreconditionFailed):
		return http.StatusConflict
	case errors.Is(err, leagues.ErrValidationFailed):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// WriteError writes err as {"error": reason}. Server errors are logged with
// the cause and reported with fallback instead of the internal message.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status := StatusFor(err)
	message := leagues.Reason(err)
	var handlerErr HandlerError
	if errors.As(err, &handlerErr) && handlerErr.Message != "" {
		message = handlerErr.Message
	}

	if status >= http.StatusInternalServerError {
		event := log.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path)
		if errors.Is(err, leagues.ErrInconsistency) {
			event = event.Bool("inconsistency", true)
		}
		event.Msg(fallback)
		message = fallback
	}
	WriteErrorMessage(w, status, message)
}

func WriteErrorMessage(w http.ResponseWriter, status int, message string) {
	if err := WriteJSON(w, status, errorBody{Error: message}); err != nil {
		http.Error(w, message, status)
	}
}
