package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/toanlq204/IT-helpdesk-bot/internal/api/handlers"
	"github.com/toanlq204/IT-helpdesk-bot/internal/auditlog"
	"github.com/toanlq204/IT-helpdesk-bot/internal/confidence"
	"github.com/toanlq204/IT-helpdesk-bot/internal/kb"
	"github.com/toanlq204/IT-helpdesk-bot/internal/llm"
	"github.com/toanlq204/IT-helpdesk-bot/internal/memory"
	"github.com/toanlq204/IT-helpdesk-bot/internal/metrics"
	"github.com/toanlq204/IT-helpdesk-bot/internal/middleware/ratelimit"
	"github.com/toanlq204/IT-helpdesk-bot/internal/middleware/security"
	"github.com/toanlq204/IT-helpdesk-bot/internal/middleware/validation"
	"github.com/toanlq204/IT-helpdesk-bot/internal/pipeline"
	"github.com/toanlq204/IT-helpdesk-bot/internal/retrieval/milvus"
	"github.com/toanlq204/IT-helpdesk-bot/internal/storage/sqlite"
	"github.com/toanlq204/IT-helpdesk-bot/pkg/config"
	appLogger "github.com/toanlq204/IT-helpdesk-bot/pkg/logger"
)

func main() {
	godotenv.Load()

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

	appLogger.Info("Starting IT Helpdesk API Server")

	metrics.Init()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	err = sqliteClient.InitSchema()
	if err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	llmClient := llm.NewClient(
		cfg.LLM.APIKey,
		cfg.LLM.BaseURL,
		cfg.LLM.Model,
		cfg.LLM.EmbeddingModel,
		cfg.LLM.TimeoutSec,
	)

	milvusClient, err := milvus.NewClient(
		cfg.Milvus.Endpoint,
		cfg.Milvus.APIKey,
		cfg.Milvus.CollectionName,
		cfg.Milvus.VectorDim,
		llmClient,
	)
	if err != nil {
		appLogger.Fatal("Failed to create Milvus client", zap.Error(err))
	}
	defer milvusClient.Close()

	err = milvusClient.CreateCollection(context.Background())
	if err != nil {
		appLogger.Fatal("Failed to create collection", zap.Error(err))
	}

	var memStore memory.Store
	if cfg.Redis.Enabled {
		memStore, err = memory.NewRedisStore(
			cfg.Redis.Host,
			cfg.Redis.Port,
			cfg.Redis.Password,
			cfg.Redis.DB,
			cfg.Memory.MaxTurns,
			cfg.Memory.MaxContextChars,
		)
		if err != nil {
			appLogger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
	} else {
		memStore = memory.NewMemStore(cfg.Memory.MaxTurns, cfg.Memory.MaxContextChars)
	}

	classifier := confidence.NewClassifier(
		cfg.Pipeline.HighThreshold,
		cfg.Pipeline.LowThreshold,
		cfg.LLM.Temperature,
	)

	auditService := auditlog.NewService(sqliteClient, cfg.AuditLog.MaxEntries)
	kbService := kb.NewService(milvusClient, llmClient)

	engine := pipeline.NewEngine(
		milvusClient,
		llmClient,
		memStore,
		classifier,
		auditService,
		cfg.Pipeline.TopK,
		cfg.LLM.MaxTokens,
	)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, X-Session-ID",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{}))

	limiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: 60,
		Logger:               appLogger.GetLogger(),
	})
	defer limiter.Stop()
	app.Use(limiter.Middleware())

	app.Use(validation.Middleware(validation.Config{
		Logger: appLogger.GetLogger(),
	}))

	chatHandler := handlers.NewChatHandler(engine, memStore)
	feedbackHandler := handlers.NewFeedbackHandler(auditService)
	faqHandler := handlers.NewFAQHandler(kbService)
	wsHandler := handlers.NewWebSocketHandler(engine)

	api := app.Group("/api/v1")

	api.Post("/chat", chatHandler.HandleChat)
	api.Delete("/conversation/:id", chatHandler.HandleClearConversation)
	api.Get("/conversation/:id/stats", chatHandler.HandleConversationStats)

	api.Post("/feedback", feedbackHandler.HandleSubmitFeedback)
	api.Get("/logs/recent", feedbackHandler.HandleRecentLogs)
	api.Get("/logs/:id", feedbackHandler.HandleGetLog)
	api.Get("/feedback/queue", feedbackHandler.HandleFeedbackQueue)
	api.Put("/feedback/admin", feedbackHandler.HandleAdminUpdate)
	api.Get("/analytics", feedbackHandler.HandleAnalytics)
	api.Get("/analytics/summary", feedbackHandler.HandleAnalyticsSummary)

	api.Post("/faqs", faqHandler.HandleAddFAQ)
	api.Post("/faqs/bulk", faqHandler.HandleAddFAQsBulk)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/chat", websocket.New(wsHandler.HandleConnection))

	app.Get("/metrics", metrics.MetricsHandler())

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	api.Get("/ready", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ready",
		})
	})

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
	app.Shutdown()
	appLogger.Info("Server stopped")
}
