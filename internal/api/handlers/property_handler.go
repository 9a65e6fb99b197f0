package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/mohamed20039/Renter/internal/apperrors"
	"github.com/mohamed20039/Renter/internal/auth"
	"github.com/mohamed20039/Renter/internal/services"
	"github.com/mohamed20039/Renter/internal/storage"
	"github.com/rs/zerolog/log"
)

// PropertyHandler handles HTTP requests for rental listings.
type PropertyHandler struct {
	service services.PropertyServiceProvider
	store   storage.Storage
}

// NewPropertyHandler creates a new PropertyHandler.
func NewPropertyHandler(service services.PropertyServiceProvider, store storage.Storage) *PropertyHandler {
	return &PropertyHandler{service: service, store: store}
}

// GetAll lists properties; ?available=true keeps only unrented ones.
func (h *PropertyHandler) GetAll(w http.ResponseWriter, r *http.Request) error {
	onlyAvailable, _ := strconv.ParseBool(r.URL.Query().Get("available"))
	properties, err := h.service.GetAllProperties(r.Context(), onlyAvailable)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, properties)
}

// Get returns a single property.
func (h *PropertyHandler) Get(w http.ResponseWriter, r *http.Request) error {
	property, err := h.service.GetPropertyByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, property)
}

// Create publishes a listing for the authenticated owner.
func (h *PropertyHandler) Create(w http.ResponseWriter, r *http.Request) error {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		return apperrors.Unauthorized("Not authorized, no token")
	}

	var input services.CreatePropertyInput
	var image *uploadedImage
	if isJSON(r) {
		if err := decodeJSON(w, r, &input); err != nil {
			return err
		}
	} else {
		if err := parseForm(w, r); err != nil {
			return err
		}
		input.Title = r.PostFormValue("title")
		input.Description = r.PostFormValue("description")
		input.Location = r.PostFormValue("location")
		if raw := strings.TrimSpace(r.PostFormValue("price")); raw != "" {
			price, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return apperrors.Validation("Invalid request fields", map[string]string{"price": "must be a number"})
			}
			input.Price = price
		}
		var err error
		if image, err = saveImage(r, h.store, "properties"); err != nil {
			return err
		}
		if image != nil {
			input.Image = image.URL
		}
	}

	property, err := h.service.CreateProperty(r.Context(), claims.UserID, input)
	if err != nil {
		image.Discard(r)
		return err
	}
	log.Info().Str("user_id", claims.UserID).Str("property_id", property.ID).Msg("Property published")
	return writeJSON(w, http.StatusCreated, property)
}

// Rent assigns the property to the authenticated renter.
func (h *PropertyHandler) Rent(w http.ResponseWriter, r *http.Request) error {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		return apperrors.Unauthorized("Not authorized, no token")
	}
	property, err := h.service.RentProperty(r.Context(), claims.UserID, chi.URLParam(r, "id"))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, property)
}

// Release ends the current rental.
func (h *PropertyHandler) Release(w http.ResponseWriter, r *http.Request) error {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		return apperrors.Unauthorized("Not authorized, no token")
	}
	property, err := h.service.ReleaseProperty(r.Context(), claims.UserID, chi.URLParam(r, "id"))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, property)
}

// Delete removes a listing owned by the caller.
func (h *PropertyHandler) Delete(w http.ResponseWriter, r *http.Request) error {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		return apperrors.Unauthorized("Not authorized, no token")
	}
	id := chi.URLParam(r, "id")
	if err := h.service.DeleteProperty(r.Context(), claims.UserID, id); err != nil {
		return err
	}
	log.Info().Str("user_id", claims.UserID).Str("property_id", id).Msg("Property deleted")
	w.WriteHeader(http.StatusNoContent)
	return nil
}
