package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mohamed20039/Renter/internal/apperrors"
	"github.com/mohamed20039/Renter/internal/auth"
	"github.com/mohamed20039/Renter/internal/metrics"
	"github.com/mohamed20039/Renter/internal/models"
	"github.com/mohamed20039/Renter/internal/services"
	"github.com/mohamed20039/Renter/internal/storage"
	"github.com/rs/zerolog/log"
)

// UserHandler handles HTTP requests for user accounts.
type UserHandler struct {
	service      services.UserServiceProvider
	tokens       *auth.TokenManager
	store        storage.Storage
	metrics      *metrics.Metrics
	secureCookie bool
}

// NewUserHandler creates a new UserHandler. m may be nil.
func NewUserHandler(service services.UserServiceProvider, tokens *auth.TokenManager, store storage.Storage, m *metrics.Metrics, secureCookie bool) *UserHandler {
	return &UserHandler{service: service, tokens: tokens, store: store, metrics: m, secureCookie: secureCookie}
}

// AuthPayload defines the structure for login requests.
type AuthPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register handles new user registration. The role comes from the "role"
// query parameter, falling back to the body.
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) error {
	var input services.CreateUserInput
	var image *uploadedImage

	if isJSON(r) {
		if err := decodeJSON(w, r, &input); err != nil {
			return err
		}
	} else {
		if err := parseForm(w, r); err != nil {
			return err
		}
		input = services.CreateUserInput{
			FirstName: r.PostFormValue("firstName"),
			LastName:  r.PostFormValue("lastName"),
			Username:  r.PostFormValue("username"),
			Email:     r.PostFormValue("email"),
			Password:  r.PostFormValue("password"),
			Role:      r.PostFormValue("role"),
		}
		var err error
		if image, err = saveImage(r, h.store, "users"); err != nil {
			return err
		}
		if image != nil {
			input.Image = image.URL
		}
	}
	if role := r.URL.Query().Get("role"); role != "" {
		input.Role = role
	}

	user, err := h.service.CreateUser(r.Context(), input)
	if err != nil {
		image.Discard(r)
		h.metrics.ObserveAuth("register", "failure")
		return err
	}

	token, err := h.tokens.Generate(user.ID, user.Email)
	if err != nil {
		image.Discard(r)
		return err
	}
	h.metrics.ObserveAuth("register", "success")
	log.Info().Str("user_id", user.ID).Str("role", string(user.Role)).Msg("User registered")

	h.setTokenCookie(w, token)
	return writeJSON(w, http.StatusCreated, Envelope{Success: true, Data: user, Token: token})
}

// Login handles user authentication and token issuance.
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) error {
	var payload AuthPayload
	if isJSON(r) {
		if err := decodeJSON(w, r, &payload); err != nil {
			return err
		}
	} else {
		if err := parseForm(w, r); err != nil {
			return err
		}
		payload = AuthPayload{Email: r.PostFormValue("email"), Password: r.PostFormValue("password")}
	}

	user, err := h.service.AuthenticateUser(r.Context(), payload.Email, payload.Password)
	if err != nil {
		h.metrics.ObserveAuth("login", "failure")
		return err
	}

	token, err := h.tokens.Generate(user.ID, user.Email)
	if err != nil {
		return err
	}
	h.metrics.ObserveAuth("login", "success")

	h.setTokenCookie(w, token)
	return writeJSON(w, http.StatusOK, Envelope{
		Success: true,
		Message: "User logged in successfully",
		Data:    user,
		Token:   token,
	})
}

func (h *UserHandler) setTokenCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     "token",
		Value:    token,
		Expires:  time.Now().Add(auth.TokenTTL),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteStrictMode,
		Path:     "/",
	})
}

// Profile returns the authenticated user with their properties.
func (h *UserHandler) Profile(w http.ResponseWriter, r *http.Request) error {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		return apperrors.Unauthorized("Not authorized, no token")
	}

	user, err := h.service.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		return err
	}

	return writeJSON(w, http.StatusOK, Envelope{
		Success: true,
		Message: "You are authorized to check user profile",
		Data:    user,
	})
}

// Update handles a partial update of the caller's own account. The target is
// the "userId" query parameter, falling back to the path id; both must match
// the token subject.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) error {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		return apperrors.Unauthorized("Not authorized, no token")
	}

	pathID := chi.URLParam(r, "id")
	targetID := r.URL.Query().Get("userId")
	if targetID == "" {
		targetID = pathID
	}
	if targetID != claims.UserID || (pathID != "" && pathID != claims.UserID) {
		log.Warn().Str("user_id", claims.UserID).Str("target_id", targetID).Msg("Rejected update of another user")
		return apperrors.Forbidden("You aren't allowed to update this user")
	}

	var input services.UpdateUserInput
	var image *uploadedImage
	if isJSON(r) {
		if err := decodeJSON(w, r, &input); err != nil {
			return err
		}
	} else {
		if err := parseForm(w, r); err != nil {
			return err
		}
		input = services.UpdateUserInput{
			FirstName: formValue(r, "firstName"),
			LastName:  formValue(r, "lastName"),
			Username:  formValue(r, "username"),
			Email:     formValue(r, "email"),
			Password:  formValue(r, "password"),
			Role:      formValue(r, "role"),
		}
		var err error
		if image, err = saveImage(r, h.store, "users"); err != nil {
			return err
		}
		if image != nil {
			input.Image = &image.URL
		}
	}
	if role := r.URL.Query().Get("role"); role != "" {
		input.Role = &role
	}

	user, err := h.service.UpdateUser(r.Context(), claims.UserID, targetID, input)
	if err != nil {
		image.Discard(r)
		return err
	}

	return writeJSON(w, http.StatusOK, Envelope{
		Success: true,
		Message: "User updated successfully",
		Data:    user,
	})
}

// List returns every user.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) error {
	users, err := h.service.GetAllUsers(r.Context())
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string][]models.User{"users": users})
}
