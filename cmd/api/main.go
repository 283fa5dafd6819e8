package main

import (
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

	"github.com/feedback-insights/backend/internal/analysis"
	"github.com/feedback-insights/backend/internal/api/handlers"
	"github.com/feedback-insights/backend/internal/cache/redis"
	"github.com/feedback-insights/backend/internal/dispatch"
	"github.com/feedback-insights/backend/internal/ingestion"
	"github.com/feedback-insights/backend/internal/llm"
	"github.com/feedback-insights/backend/internal/metrics"
	"github.com/feedback-insights/backend/internal/middleware/ratelimit"
	"github.com/feedback-insights/backend/internal/middleware/security"
	"github.com/feedback-insights/backend/internal/middleware/validation"
	"github.com/feedback-insights/backend/internal/session"
	"github.com/feedback-insights/backend/internal/storage/sqlite"
	"github.com/feedback-insights/backend/pkg/config"
	appLogger "github.com/feedback-insights/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting Feedback Insights API Server")

	metrics.Init()

	deps := map[string]handlers.Pinger{}

	// Optional stores stay nil interfaces when disabled.
	var (
		runLog      ingestion.RunLog
		runLister   handlers.RunLister
		questions   session.QuestionLog
		history     handlers.QuestionHistory
		answers     session.AnswerCache
		invalidator ingestion.AnswerInvalidator
	)

	if cfg.SQLite.Enabled {
		sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
		if err != nil {
			appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
		}
		defer sqliteClient.Close()

		err = sqliteClient.InitSchema()
		if err != nil {
			appLogger.Fatal("Failed to initialize schema", zap.Error(err))
		}

		runLog, runLister = sqliteClient, sqliteClient
		questions, history = sqliteClient, sqliteClient
		deps["sqlite"] = sqliteClient
	}

	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(
			cfg.Redis.Addr(),
			cfg.Redis.Password,
			cfg.Redis.DB,
			time.Duration(cfg.Redis.AnswerTTL)*time.Second,
		)
		if err != nil {
			appLogger.Fatal("Failed to create Redis client", zap.Error(err))
		}
		defer redisClient.Close()

		answers, invalidator = redisClient, redisClient
		deps["redis"] = redisClient
	}

	if cfg.LLM.APIKey == "" {
		appLogger.Warn("No LLM API key configured; analysis will record provider failures")
	}
	llmClient := llm.NewClient(cfg.LLM)

	engine := analysis.NewEngine(llmClient, cfg.Analysis.MaxInputChars)
	store := session.NewStore()
	navigator := session.NewNavigator(store, llmClient, answers, questions)
	coordinator := ingestion.NewCoordinator(engine, store, cfg.Analysis.Concurrency, invalidator, runLog)
	dispatcher := dispatch.NewDispatcher(navigator, llmClient, cfg.Chat.BotName, cfg.Chat.MaxMessageLength)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	limiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
		Logger:               appLogger.Named("ratelimit"),
	})
	defer limiter.Stop()

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.Server.AllowedOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, X-Session-ID",
		AllowMethods: "GET, POST, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		IsDevelopment:  cfg.Server.Development,
	}))

	feedbackHandler := handlers.NewFeedbackHandler(coordinator, store, runLister)
	chatHandler := handlers.NewChatHandler(dispatcher, history)
	wsHandler := handlers.NewWebSocketHandler(dispatcher)
	healthHandler := handlers.NewHealthHandler(store, deps)

	app.Get("/metrics", metrics.MetricsHandler())

	api := app.Group("/api/v1")

	api.Get("/health", healthHandler.Health)
	api.Get("/ready", healthHandler.Ready)

	limited := api.Group("", limiter.Middleware(), validation.Middleware(validation.Config{
		MaxMessageLength: cfg.Chat.MaxMessageLength,
		Logger:           appLogger.Named("validation"),
	}))

	limited.Post("/feedback", feedbackHandler.Ingest)
	limited.Get("/insights/latest", feedbackHandler.Latest)
	limited.Get("/ingestions", feedbackHandler.ListIngestions)
	limited.Post("/chat", chatHandler.HandleMessage)
	limited.Get("/chat/history", chatHandler.GetQuestionHistory)

	app.Use("/ws", wsHandler.Upgrade)
	app.Get("/ws/chat", limiter.Middleware(), websocket.New(wsHandler.HandleConnection))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting",
		zap.String("address", addr),
		zap.String("model", cfg.LLM.Model),
		zap.Int("analysis_concurrency", cfg.Analysis.Concurrency),
		zap.Bool("redis", cfg.Redis.Enabled),
		zap.Bool("sqlite", cfg.SQLite.Enabled),
	)

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	if err := app.ShutdownWithTimeout(15 * time.Second); err != nil {
		appLogger.Error("Server shutdown failed", zap.Error(err))
	}
	appLogger.Info("Server stopped")
}
