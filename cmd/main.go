package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"watchnext-suggestion-service/internal/config"
	"watchnext-suggestion-service/internal/conversation"
	"watchnext-suggestion-service/internal/database"
	"watchnext-suggestion-service/internal/handler"
	"watchnext-suggestion-service/internal/imdb"
	"watchnext-suggestion-service/internal/middleware"
	"watchnext-suggestion-service/internal/repository"
	"watchnext-suggestion-service/internal/session"
	"watchnext-suggestion-service/internal/suggest"
)

func main() {
	// Structured logging
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Connect to PostgreSQL
	db, err := database.NewPostgres(cfg.DB)
	if err != nil {
		slog.Error("failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Connect to Redis. Conversation state falls back to process memory
	// when Redis is unavailable; durable data is unaffected.
	var sessions session.Store
	rdb, err := database.NewRedis(cfg.Redis)
	if err != nil {
		slog.Warn("Redis unavailable, keeping conversation state in memory", "error", err)
		sessions = session.NewMemoryStore(cfg.Session.TTL)
	} else {
		sessions = session.NewRedisStore(rdb, cfg.Session.TTL)
	}

	// Initialize layers
	titleRepo := repository.NewPostgresTitleRepository(db)
	userRepo := repository.NewPostgresUserRepository(db)
	selector := suggest.NewSelector(titleRepo, userRepo, cfg.Suggest.MaxRetries)
	machine := conversation.NewMachine(sessions, userRepo, userRepo, selector)
	importer := imdb.NewImporter(titleRepo)

	eventHandler := handler.NewEventHandler(machine, sessions, userRepo, titleRepo)
	adminHandler := handler.NewAdminHandler(importer, cfg.Import)

	rateLimiter := middleware.NewUserRateLimiter(cfg.RateLimit)
	defer rateLimiter.Stop()

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "Watchnext Suggestion Service",
		ServerHeader: "Watchnext-Suggestion-Service",
		ErrorHandler: func(c fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			slog.Error("unhandled error", "error", err, "status", code)
			return c.Status(code).JSON(handler.ErrorResponse{Error: err.Error()})
		},
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New())

	// API routes
	api := app.Group("/api/v1")
	api.Get("/health", eventHandler.Health)
	api.Get("/genres", eventHandler.ListGenres)
	api.Post("/users/:id/events", eventHandler.PostEvent, rateLimiter.Handler())
	api.Get("/users/:id/session", eventHandler.GetSession)
	api.Get("/users/:id/filters", eventHandler.GetFilters)
	app.Post("/admin/import", adminHandler.StartImport)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		slog.Info("shutting down suggestion service...")
		_ = app.Shutdown()
	}()

	// Start server
	addr := ":" + cfg.Port
	slog.Info("starting suggestion service", "addr", addr)
	if err := app.Listen(addr); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
