package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/docgraph/backend/internal/api/handlers"
	"github.com/docgraph/backend/internal/app"
	"github.com/docgraph/backend/internal/indexer"
	"github.com/docgraph/backend/internal/metrics"
	"github.com/docgraph/backend/internal/middleware/ratelimit"
	"github.com/docgraph/backend/internal/middleware/security"
	"github.com/docgraph/backend/internal/middleware/validation"
	"github.com/docgraph/backend/pkg/config"
	appLogger "github.com/docgraph/backend/pkg/logger"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Printf("Failed to load .env: %v\n", err)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting markdown graph API server")

	ctx := context.Background()
	a, err := app.Open(ctx, cfg)
	if err != nil {
		appLogger.Fatal("Failed to initialize application", zap.Error(err))
	}
	defer a.Close(ctx)

	if cfg.Metrics.Enabled {
		metrics.Init()
	}

	if cfg.Indexer.IndexOnStart {
		go func() {
			if _, err := a.Indexer.Rebuild(ctx); err != nil && !errors.Is(err, indexer.ErrIndexInProgress) {
				appLogger.Error("Initial index rebuild failed", zap.Error(err))
			}
		}()
	}

	fiberApp := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	fiberApp.Use(recover.New())
	fiberApp.Use(logger.New())
	fiberApp.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.Server.AllowedOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept",
		AllowMethods: "GET, POST, OPTIONS",
	}))
	fiberApp.Use(security.HeadersMiddleware(security.HeadersConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		IsDevelopment:  cfg.Server.IsDevelopment,
	}))
	fiberApp.Use(validation.JSONBody())

	if cfg.RateLimit.Enabled {
		limiter := ratelimit.New(ratelimit.Config{
			MaxRequestsPerMinute: cfg.RateLimit.MaxRequestsPerMinute,
			Burst:                cfg.RateLimit.Burst,
			Logger:               appLogger.GetLogger(),
		})
		defer limiter.Stop()
		fiberApp.Use(limiter.Middleware())
	}

	if cfg.Metrics.Enabled {
		fiberApp.Get(cfg.Metrics.Path, metrics.MetricsHandler())
	}

	var cache handlers.Cache
	if a.Cache != nil {
		cache = a.Cache
	}

	graphHandler := handlers.NewGraphHandler(a.Store, cache, a.GraphOptions())
	documentHandler := handlers.NewDocumentHandler(a.Store)
	indexHandler := handlers.NewIndexHandler(a.Indexer)
	progressHandler := handlers.NewProgressHandler(a.Events)

	api := fiberApp.Group("/api/v1")

	api.Get("/graph", graphHandler.GetGraph)
	api.Get("/search", validation.SearchQuery(validation.Config{Logger: appLogger.GetLogger()}), graphHandler.Search)

	api.Get("/documents", documentHandler.ListDocuments)
	api.Get("/documents/*", documentHandler.GetDocument)
	api.Get("/sections/:id", documentHandler.GetSection)

	api.Post("/index", indexHandler.Rebuild)
	api.Get("/index", indexHandler.Status)
	api.Get("/index/stream", progressHandler.Upgrade, websocket.New(progressHandler.HandleConnection))

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	api.Get("/ready", func(c *fiber.Ctx) error {
		if _, err := a.Store.ListKeywords(c.UserContext()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "unavailable",
			})
		}
		return c.JSON(fiber.Map{
			"status":   "ready",
			"indexing": a.Indexer.Running(),
		})
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := fiberApp.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	if err := fiberApp.ShutdownWithTimeout(10 * time.Second); err != nil {
		appLogger.Warn("Server shutdown incomplete", zap.Error(err))
	}
	appLogger.Info("Server stopped")
}
