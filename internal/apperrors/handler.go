package apperrors

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

// ErrorBody is the JSON body written for every failed request.
type ErrorBody struct {
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
	Stack   string            `json:"stack,omitempty"`
}

// HandlerFunc is an http handler that reports failure by returning an error.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

// Handler converts errors into responses. Debug exposes the cause chain in
// the response body and must be off in production.
type Handler struct {
	Debug bool
}

// Wrap adapts an error-returning handler to http.HandlerFunc.
func (h *Handler) Wrap(fn HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(w, r); err != nil {
			h.Handle(w, r, err)
		}
	}
}

// Handle logs err and writes the matching status and ErrorBody.
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request, err error) {
	appErr, ok := As(err)
	if !ok {
		appErr = Internal(err)
	}
	status := appErr.Status()

	logger := log.With().
		Str("request_id", middleware.GetReqID(r.Context())).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", status).
		Logger()
	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).Msg("Request failed")
	} else {
		logger.Warn().Err(err).Msg("Request rejected")
	}

	body := ErrorBody{Message: appErr.Message, Fields: appErr.Fields}
	if h.Debug && appErr.Err != nil {
		body.Stack = appErr.Err.Error()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
