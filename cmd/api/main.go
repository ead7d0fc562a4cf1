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
	"go.uber.org/zap"

	"github.com/relay-agent/backend/internal/api/handlers"
	"github.com/relay-agent/backend/internal/cache/redis"
	"github.com/relay-agent/backend/internal/classify"
	"github.com/relay-agent/backend/internal/evaluation"
	"github.com/relay-agent/backend/internal/ingestion"
	"github.com/relay-agent/backend/internal/llm"
	"github.com/relay-agent/backend/internal/metrics"
	"github.com/relay-agent/backend/internal/middleware/ratelimit"
	"github.com/relay-agent/backend/internal/middleware/security"
	"github.com/relay-agent/backend/internal/middleware/validation"
	"github.com/relay-agent/backend/internal/pipeline"
	"github.com/relay-agent/backend/internal/retrieval"
	"github.com/relay-agent/backend/internal/storage/sqlite"
	"github.com/relay-agent/backend/internal/storage/writer"
	"github.com/relay-agent/backend/internal/synthesis"
	"github.com/relay-agent/backend/internal/vector"
	"github.com/relay-agent/backend/internal/vector/memory"
	"github.com/relay-agent/backend/internal/vector/milvus"
	"github.com/relay-agent/backend/internal/weather"
	"github.com/relay-agent/backend/pkg/config"
	appLogger "github.com/relay-agent/backend/pkg/logger"
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

	appLogger.Info("Starting Relay Agent API Server")
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

	store := openVectorStore(cfg)

	var cache *redis.Client
	if cfg.Redis.Enabled {
		cache, err = redis.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			appLogger.Warn("Redis unavailable, running without cache", zap.Error(err))
			cache = nil
		} else {
			defer cache.Close()
		}
	}

	llmClient := llm.NewClient(
		cfg.LLM.APIKey,
		cfg.LLM.Model,
		cfg.LLM.EmbeddingModel,
		cfg.LLM.Temperature,
		cfg.LLM.MaxTokens,
		cfg.LLM.TimeoutSec,
	)

	weatherClient := weather.NewClient(
		cfg.Weather.BaseURL,
		cfg.Weather.GeoURL,
		cfg.Weather.APIKey,
		cfg.Weather.Units,
		cfg.Weather.TimeoutSec,
	)

	var embeddingCache retrieval.EmbeddingCache
	if cache != nil {
		embeddingCache = cache
	}
	retriever := retrieval.NewBranch(llmClient, store, embeddingCache, cfg.Retrieval.TopK, cfg.Retrieval.MinScore)

	storageWriter := writer.New(llmClient, store, sqliteClient, writer.Config{
		OnResult: func(ok bool) {
			status := "ok"
			if !ok {
				status = "failed"
			}
			metrics.StorageWrites.WithLabelValues(status).Inc()
		},
	})

	pipe := pipeline.New(
		classify.New(),
		weatherClient,
		retriever,
		synthesis.NewSynthesizer(llmClient),
		synthesis.NewEnhancer(llmClient),
		storageWriter,
		evaluation.New(),
		cfg.LLM.Model,
	)

	var responseCache ingestion.ResponseCache
	if cache != nil {
		responseCache = cache
	}
	processor := ingestion.NewProcessor(sqliteClient, store, llmClient, responseCache,
		cfg.Ingestion.ChunkSize, cfg.Ingestion.ChunkOverlap)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	limiter := ratelimit.New(ratelimit.Config{})
	defer limiter.Stop()

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-User-ID",
		AllowMethods: "GET, POST, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{}))
	app.Use(limiter.Middleware())
	app.Use(validation.Middleware(validation.Config{
		MaxDocumentSize: cfg.Server.BodyLimit,
	}))

	var queryCache handlers.ResponseCache
	if cache != nil {
		queryCache = cache
	}
	queryHandler := handlers.NewQueryHandler(pipe, sqliteClient, queryCache)
	documentHandler := handlers.NewDocumentHandler(processor, sqliteClient)
	feedbackHandler := handlers.NewFeedbackHandler(sqliteClient)
	evaluateHandler := handlers.NewEvaluateHandler(evaluation.New())
	wsHandler := handlers.NewWebSocketHandler(pipe)

	api := app.Group("/api/v1")

	api.Post("/query", queryHandler.HandleQuery)
	api.Get("/query/history", queryHandler.GetQueryHistory)

	api.Post("/documents", documentHandler.UploadDocument)
	api.Get("/documents/:id", documentHandler.GetDocument)
	api.Post("/feedback", feedbackHandler.SubmitFeedback)
	api.Post("/evaluate", evaluateHandler.EvaluatePair)
	api.Post("/evaluate/batch", evaluateHandler.EvaluateBatch)

	app.Get("/ws", websocket.New(wsHandler.HandleConnection))
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
	pipe.Close()
	appLogger.Info("Server stopped")
}

// openVectorStore connects to Milvus, falling back to the in-memory store
// so the pipeline stays usable in development without a running cluster.
func openVectorStore(cfg *config.Config) vector.Store {
	if cfg.Milvus.Endpoint != "" {
		client, err := milvus.NewClient(cfg.Milvus.Endpoint, cfg.Milvus.CollectionName, cfg.Milvus.VectorDim)
		if err == nil {
			if err := client.EnsureCollection(context.Background()); err != nil {
				appLogger.Fatal("Failed to ensure collection", zap.Error(err))
			}
			return client
		}
		appLogger.Warn("Milvus unavailable, using in-memory vector store", zap.Error(err))
	}
	return memory.NewStore()
}
