package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mohamed20039/Renter/internal/api"
	"github.com/mohamed20039/Renter/internal/auth"
	"github.com/mohamed20039/Renter/internal/config"
	"github.com/mohamed20039/Renter/internal/database"
	"github.com/mohamed20039/Renter/internal/logger"
	"github.com/mohamed20039/Renter/internal/metrics"
	"github.com/mohamed20039/Renter/internal/scheduler"
	"github.com/mohamed20039/Renter/internal/services"
	"github.com/mohamed20039/Renter/internal/storage"
	"github.com/mohamed20039/Renter/internal/validator"
	"github.com/mohamed20039/Renter/internal/websocket"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logger.Init(cfg.LogLevel, !cfg.IsProduction())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Set up database
	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply database migrations")
	}

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		log.Fatal().Err(err).Str("type", cfg.Storage.Type).Msg("Failed to initialize image storage")
	}

	tokens, err := auth.NewTokenManager(cfg.JWTSecret)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize token manager")
	}

	// Set up WebSocket Hub
	hub := websocket.NewHub()
	go hub.Run(ctx)

	// Set up services
	v := validator.New()
	eventService := services.NewEventService(db)
	propertyService := services.NewPropertyService(db, v, eventService, hub)
	userService := services.NewUserService(db, v, propertyService, eventService)

	// Set up and run the background scheduler
	sched, err := scheduler.New(eventService, cfg.EventRetention, cfg.EventRetentionSchedule)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize scheduler")
	}
	sched.Start()

	// Set up router
	router := api.NewRouter(api.Dependencies{
		Config:     cfg,
		DB:         db,
		Tokens:     tokens,
		Users:      userService,
		Properties: propertyService,
		Events:     eventService,
		Store:      store,
		Hub:        hub,
		Metrics:    metrics.New(),
	})

	// Set up server
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Int("port", cfg.ServerPort).Str("env", cfg.AppEnv).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("ListenAndServe failed")
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sched.Stop(shutdownCtx)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exiting")
}
