package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/signflow/signflow-backend/internal/documents/pages"
	"github.com/signflow/signflow-backend/internal/fields/consumers"
	"github.com/signflow/signflow-backend/internal/fields/events"
	"github.com/signflow/signflow-backend/internal/fields/handler"
	"github.com/signflow/signflow-backend/internal/fields/repository"
	"github.com/signflow/signflow-backend/internal/fields/service"
	"github.com/signflow/signflow-backend/internal/signing/token"
	"github.com/signflow/signflow-backend/pkg/config"
	"github.com/signflow/signflow-backend/pkg/database"
	"github.com/signflow/signflow-backend/pkg/httputil"
	"github.com/signflow/signflow-backend/pkg/logger"
	"github.com/signflow/signflow-backend/pkg/messaging"
)

func main() {
	// Load configuration
	cfg, err := config.LoadWithValidation("field-service")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New("field-service", cfg.Server.Environment)
	log.Info().Msg("starting Field Service")

	// Connect to database
	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Connect to RabbitMQ
	rmq, err := messaging.New(&cfg.RabbitMQ, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer rmq.Close()

	// Initialize event publisher
	publisher, err := events.NewFieldEventPublisher(rmq, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event publisher")
	}

	// Initialize repository and page measurement
	fieldRepo := repository.NewFieldRepository(db)
	measurer := pages.NewMeasurer(
		pages.NewDirSource(cfg.Storage.PDFDirectory, cfg.Storage.MaxFileSize),
		nil,
		log,
	)

	// Initialize service
	fieldService := service.NewFieldService(fieldRepo, measurer, publisher, cfg.Overlay, log)

	// Initialize handlers
	fieldHandler := handler.NewFieldHandler(fieldService, log)
	tokens := token.NewManager(&cfg.JWT)

	// Start document event consumer
	documentConsumer, err := consumers.NewDocumentEventConsumer(rmq, fieldRepo, log, measurer, fieldService)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create document event consumer")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := documentConsumer.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start document event consumer")
	}

	// Create router
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]interface{}{
			"status":   "healthy",
			"service":  "field-service",
			"database": db.Health(r.Context()),
			"rabbitmq": rmq.Health(),
		})
	})

	// API routes (signer token or gateway-provided owner identity)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(token.Middleware(tokens, log))
		fieldHandler.RegisterRoutes(r)
	})

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Cancel context to stop consumers
	cancel()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
