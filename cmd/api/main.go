package main

import (
	"context"
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
	"go.uber.org/zap"

	"github.com/supportdesk/backend/internal/api/handlers"
	"github.com/supportdesk/backend/internal/cache/redis"
	"github.com/supportdesk/backend/internal/corpus"
	"github.com/supportdesk/backend/internal/escalation"
	"github.com/supportdesk/backend/internal/matcher"
	"github.com/supportdesk/backend/internal/metrics"
	"github.com/supportdesk/backend/internal/middleware/ratelimit"
	"github.com/supportdesk/backend/internal/middleware/security"
	"github.com/supportdesk/backend/internal/middleware/validation"
	"github.com/supportdesk/backend/internal/query"
	"github.com/supportdesk/backend/internal/storage/sqlite"
	"github.com/supportdesk/backend/pkg/config"
	appLogger "github.com/supportdesk/backend/pkg/logger"
)

func main() {
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

	appLogger.Info("Starting support desk API server")
	metrics.Init()

	pairs, err := corpus.LoadFile(cfg.Corpus.Path, corpus.LoadOptions{
		ResponseColumn: cfg.Corpus.ResponseColumn,
		QuestionColumn: cfg.Corpus.QuestionColumn,
	})
	if err != nil {
		appLogger.Fatal("Failed to load corpus", zap.Error(err), zap.String("path", cfg.Corpus.Path))
	}

	index, err := corpus.NewIndex(pairs)
	if err != nil {
		appLogger.Fatal("Failed to build corpus index", zap.Error(err))
	}
	metrics.CorpusEntries.Set(float64(index.Len()))
	appLogger.Info("Corpus indexed",
		zap.Int("entries", index.Len()),
		zap.Int("vocabulary", index.VocabularySize()),
		zap.String("fingerprint", index.Fingerprint()),
	)

	m, err := matcher.New(index, cfg.Matcher.Threshold)
	if err != nil {
		appLogger.Fatal("Failed to create matcher", zap.Error(err))
	}

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path, cfg.SQLite.BusyTimeoutMs)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	err = sqliteClient.InitSchema()
	if err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	store := escalation.NewStore(sqliteClient)
	workflow := escalation.NewWorkflow(sqliteClient)

	if pending, err := store.SyncPendingGauge(context.Background()); err != nil {
		appLogger.Warn("Failed to count pending escalations", zap.Error(err))
	} else {
		appLogger.Info("Pending escalations", zap.Int("count", pending))
	}

	var engineOpts []query.Option
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(
			cfg.Redis.Host,
			cfg.Redis.Port,
			cfg.Redis.Password,
			cfg.Redis.DB,
			time.Duration(cfg.Redis.TTLSeconds)*time.Second,
		)
		if err != nil {
			appLogger.Warn("Answer cache unavailable, continuing without it", zap.Error(err))
		} else {
			defer redisClient.Close()
			engineOpts = append(engineOpts, query.WithCache(redisClient))
		}
	}

	queryEngine := query.NewEngine(m, store, engineOpts...)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.Server.AllowedOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Staff-Token, X-Staff-ID",
		AllowMethods: "GET, POST, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		AllowedOrigins: splitOrigins(cfg.Server.AllowedOrigins),
		IsDevelopment:  cfg.Logging.Level == "debug",
	}))

	validationCfg := validation.Config{Logger: appLogger.Log}
	app.Use(validation.ContentType(validationCfg))

	limiter := ratelimit.New(ratelimit.Config{
		RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
		Logger:            appLogger.Log,
	})
	defer limiter.Stop()

	queryHandler := handlers.NewQueryHandler(queryEngine)
	staffHandler := handlers.NewStaffHandler(store, workflow)
	wsHandler := handlers.NewWebSocketHandler(queryEngine, validationCfg)

	api := app.Group("/api/v1")

	api.Post("/ask", limiter.Middleware(), validation.Ask(validationCfg), queryHandler.HandleAsk)

	staff := api.Group("/staff", security.StaffAuth(cfg.Staff.Token))
	staff.Get("/queries", staffHandler.ListPending)
	staff.Get("/queries/:id", staffHandler.GetQuery)
	staff.Post("/queries/:id/resolve", validation.Resolve(validationCfg), staffHandler.Resolve)

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	api.Get("/ready", func(c *fiber.Ctx) error {
		if err := sqliteClient.Ping(c.Context()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "unavailable",
				"error":  err.Error(),
			})
		}
		return c.JSON(fiber.Map{
			"status":         "ready",
			"corpus_entries": index.Len(),
		})
	})

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/ask", websocket.New(wsHandler.HandleConnection))

	app.Get("/metrics", metrics.MetricsHandler(store.RefreshPending))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		appLogger.Warn("Shutdown did not complete cleanly", zap.Error(err))
	}
	appLogger.Info("Server stopped")
}

func splitOrigins(origins string) []string {
	var out []string
	for _, o := range strings.Split(origins, ",") {
		o = strings.TrimSpace(o)
		if o != "" && o != "*" {
			out = append(out, o)
		}
	}
	return out
}
