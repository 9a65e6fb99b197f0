package handlers

import (
	"net/http"
	"strconv"

	"github.com/mohamed20039/Renter/internal/apperrors"
	"github.com/mohamed20039/Renter/internal/auth"
	"github.com/mohamed20039/Renter/internal/services"
)

const (
	defaultEventLimit = 20
	maxEventLimit     = 100
)

// EventHandler handles HTTP requests related to account activity.
type EventHandler struct {
	service services.EventServiceProvider
}

// NewEventHandler creates a new EventHandler.
func NewEventHandler(service services.EventServiceProvider) *EventHandler {
	return &EventHandler{service: service}
}

// GetRecent returns the caller's most recent events.
func (h *EventHandler) GetRecent(w http.ResponseWriter, r *http.Request) error {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		return apperrors.Unauthorized("Not authorized, no token")
	}

	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = defaultEventLimit
	}
	if limit > maxEventLimit {
		limit = maxEventLimit
	}

	events, err := h.service.GetRecentEvents(r.Context(), claims.UserID, limit)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, events)
}
