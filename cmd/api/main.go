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
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/worklens/backend/internal/api/handlers"
	"github.com/worklens/backend/internal/cache/redis"
	"github.com/worklens/backend/internal/correlation"
	"github.com/worklens/backend/internal/metrics"
	"github.com/worklens/backend/internal/middleware/ratelimit"
	"github.com/worklens/backend/internal/middleware/security"
	"github.com/worklens/backend/internal/middleware/validation"
	"github.com/worklens/backend/internal/semantic"
	"github.com/worklens/backend/internal/storage/sqlite"
	"github.com/worklens/backend/pkg/config"
	appLogger "github.com/worklens/backend/pkg/logger"
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

	appLogger.Info("Starting WorkLens Correlation API Server")

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

	thresholds := thresholdsFromConfig(cfg.Correlation)
	engine := correlation.NewEngine(thresholds)

	var ledger *semantic.CostLedger
	if cfg.Semantic.Enabled {
		ledger, err = buildSemanticTier(cfg, engine, thresholds, sqliteClient)
		if err != nil {
			appLogger.Fatal("Failed to initialize semantic tier", zap.Error(err))
		}
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware())

	limiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: 60,
		Logger:               appLogger.GetLogger(),
	})
	app.Use(limiter.Middleware())

	app.Use(validation.Middleware(validation.Config{
		Logger: appLogger.GetLogger(),
	}))

	defaults := correlation.DefaultRequest(nil)
	defaults.ConfidenceThreshold = cfg.Correlation.ConfidenceThreshold
	defaults.MaxWorkStories = cfg.Correlation.MaxWorkStories
	defaults.MinEvidencePerStory = cfg.Correlation.MinEvidencePerStory

	correlateHandler := handlers.NewCorrelateHandler(engine, sqliteClient, ledger, defaults)

	api := app.Group("/api/v1")

	api.Post("/correlate", correlateHandler.Correlate)
	api.Post("/evidence/validate", correlateHandler.ValidateEvidence)
	api.Get("/correlate/history", correlateHandler.GetRunHistory)
	api.Get("/semantic/usage", correlateHandler.GetSemanticUsage)

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

// thresholdsFromConfig maps the correlation config section onto the pipeline
// thresholds. The config defaults mirror DefaultThresholds.
func thresholdsFromConfig(cfg config.CorrelationConfig) correlation.Thresholds {
	return correlation.Thresholds{
		IssueKeyConfidence:       cfg.IssueKeyConfidence,
		BranchNameConfidence:     cfg.BranchNameConfidence,
		ContentSimilarityMin:     cfg.ContentSimilarityMin,
		ContentConfidenceScale:   cfg.ContentConfidenceScale,
		TemporalBonusWindowDays:  cfg.TemporalBonusWindowDays,
		GroupingConfidenceMin:    cfg.GroupingConfidenceMin,
		RecentActivityWindowDays: cfg.RecentActivityWindowDays,
		OrphanWindowDays:         cfg.OrphanWindowDays,
		SprintGapDays:            cfg.SprintGapDays,
		SprintMinItems:           cfg.SprintMinItems,
		LongCycleDays:            cfg.LongCycleDays,
		QuickTurnDays:            cfg.QuickTurnDays,
	}
}

// buildSemanticTier wires the paid analysis pipeline: the OpenAI provider, a
// spend ledger backed by redis when available and sqlite otherwise, and the
// rule-based fallback. The engine gets the matcher attached.
func buildSemanticTier(cfg *config.Config, engine *correlation.Engine, thresholds correlation.Thresholds, sqliteClient *sqlite.Client) (*semantic.CostLedger, error) {
	var store semantic.LedgerStore = sqliteClient
	var embedder semantic.Embedder

	provider := semantic.NewOpenAIProvider(cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.EmbeddingModel)
	embedder = provider

	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, fmt.Errorf("failed to create redis client: %w", err)
		}
		store = redisClient
		embedder = semantic.NewCachedEmbedder(provider, redisClient, time.Duration(cfg.Semantic.EmbeddingTTLHours)*time.Hour)
	}

	ledger, err := semantic.NewCostLedger(context.Background(), store, cfg.Semantic.MonthlyBudgetUSD)
	if err != nil {
		return nil, err
	}

	matcher := semantic.NewMatcher(embedder, provider, ledger, correlation.NewPairFallback(thresholds))
	engine.WithSemanticMatcher(matcher)

	return ledger, nil
}
