package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/mohamed20039/Renter/internal/api/handlers"
	"github.com/mohamed20039/Renter/internal/apperrors"
	"github.com/mohamed20039/Renter/internal/auth"
	"github.com/mohamed20039/Renter/internal/config"
	"github.com/mohamed20039/Renter/internal/metrics"
	"github.com/mohamed20039/Renter/internal/services"
	"github.com/mohamed20039/Renter/internal/storage"
	"github.com/mohamed20039/Renter/internal/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
)

// Dependencies are the collaborators the router wires into handlers.
type Dependencies struct {
	Config     *config.Config
	DB         handlers.Pinger
	Tokens     *auth.TokenManager
	Users      services.UserServiceProvider
	Properties services.PropertyServiceProvider
	Events     services.EventServiceProvider
	Store      storage.Storage
	Hub        *websocket.Hub
	Metrics    *metrics.Metrics
}

// NewRouter creates and configures a new Chi router.
func NewRouter(deps Dependencies) *chi.Mux {
	cfg := deps.Config
	errs := &apperrors.Handler{Debug: !cfg.IsProduction()}
	wrap := errs.Wrap

	r := chi.NewRouter()

	// Basic middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(hlog.NewHandler(log.Logger))
	r.Use(requestIDLogger)
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("Request")
	}))
	r.Use(middleware.Recoverer)
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware)
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.NotFound(wrap(func(w http.ResponseWriter, r *http.Request) error {
		return apperrors.NotFound("Route not found")
	}))

	// Initialize handlers
	userHandler := handlers.NewUserHandler(deps.Users, deps.Tokens, deps.Store, deps.Metrics, cfg.IsProduction())
	propertyHandler := handlers.NewPropertyHandler(deps.Properties, deps.Store)
	eventHandler := handlers.NewEventHandler(deps.Events)
	healthHandler := handlers.NewHealthHandler(deps.DB)
	wsHandler := handlers.NewWebSocketHandler(deps.Hub, cfg.AllowedOrigins)
	requireAuth := deps.Tokens.Middleware(errs)

	r.Get("/health", wrap(healthHandler.Check))
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics.Handler())
	}
	r.Get("/ws", wsHandler.Serve)

	if local, ok := deps.Store.(*storage.LocalStorage); ok && strings.HasPrefix(cfg.Storage.BaseURL, "/") {
		prefix := strings.TrimSuffix(cfg.Storage.BaseURL, "/")
		r.Handle(prefix+"/*", http.StripPrefix(prefix, noDirListing(http.FileServer(http.Dir(local.BasePath())))))
	}

	// Accounts
	r.Post("/", wrap(userHandler.Register))
	r.Get("/", wrap(userHandler.List))
	r.Post("/login", wrap(userHandler.Login))
	r.Group(func(r chi.Router) {
		r.Use(requireAuth)
		r.Get("/profile", wrap(userHandler.Profile))
		r.Put("/updateUser/{id}", wrap(userHandler.Update))
		r.Get("/events", wrap(eventHandler.GetRecent))
	})

	// Listings
	r.Route("/property", func(r chi.Router) {
		r.Get("/", wrap(propertyHandler.GetAll))
		r.Get("/{id}", wrap(propertyHandler.Get))
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/", wrap(propertyHandler.Create))
			r.Put("/{id}/rent", wrap(propertyHandler.Rent))
			r.Put("/{id}/release", wrap(propertyHandler.Release))
			r.Delete("/{id}", wrap(propertyHandler.Delete))
		})
	})

	return r
}

// requestIDLogger adds chi's request id to the request-scoped logger.
func requestIDLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			zerolog.Ctx(r.Context()).UpdateContext(func(c zerolog.Context) zerolog.Context {
				return c.Str("request_id", id)
			})
		}
		next.ServeHTTP(w, r)
	})
}

func noDirListing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
