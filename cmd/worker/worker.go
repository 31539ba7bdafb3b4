package main

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"docqa-platform/internal/ai"
	"docqa-platform/internal/config"
	"docqa-platform/internal/logger"
	"docqa-platform/internal/queue"
	"docqa-platform/internal/telemetry"
	"docqa-platform/internal/vector"
	"docqa-platform/services"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		logger.Warn("metrics disabled", "error", err)
	}

	// Connect to MongoDB
	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mongoClient.Disconnect(ctx)
	}()
	db := mongoClient.Database(cfg.DBName)

	// AI backends
	geminiClient, err := ai.NewGeminiClient(cfg, metrics)
	if err != nil {
		log.Fatal("Failed to initialize Gemini client:", err)
	}
	defer geminiClient.Close()

	embedder, err := ai.NewGeminiEmbedder(context.Background(), cfg)
	if err != nil {
		log.Fatal("Failed to initialize embedder:", err)
	}
	defer embedder.Close()

	// Pipeline services
	files, err := services.NewFileStore(cfg.FileStorageDir)
	if err != nil {
		log.Fatal("Failed to initialize file storage:", err)
	}

	chunker, err := services.NewChunker(cfg.ChunkSize, cfg.ChunkOverlap, cfg.ChunkLookback)
	if err != nil {
		log.Fatal("Invalid chunking configuration:", err)
	}

	registry := services.NewMongoRegistry(db)
	index := vector.NewMongoIndex(db, config.DocChunksCollection, config.CollectionsCollection, cfg.VectorDimensions)
	classifier := services.NewClassifier(geminiClient)
	summarizer := services.NewSummarizer(geminiClient)

	ingest := services.NewIngestService(registry, files, services.NewExtractor(), chunker, embedder, index, classifier, summarizer, metrics)
	sweeper := services.NewSweeper(registry, index)

	// Create Asynq server
	server := asynq.NewServer(
		workerRedisOpt(cfg),
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			StrictPriority: true,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("task failed", "type", task.Type(), "error", err)
			}),
		},
	)

	// Create task processor and register handlers
	processor := queue.NewTaskProcessor(ingest, files, sweeper)
	mux := asynq.NewServeMux()
	processor.RegisterHandlers(mux)

	logger.Info("starting worker", "redis", cfg.RedisURL, "concurrency", 10)

	// Start the server
	if err := server.Run(mux); err != nil {
		log.Fatal("Failed to start worker:", err)
	}
}

func workerRedisOpt(cfg *config.Config) asynq.RedisConnOpt {
	if strings.HasPrefix(cfg.RedisURL, "redis://") || strings.HasPrefix(cfg.RedisURL, "rediss://") {
		if opt, err := asynq.ParseRedisURI(cfg.RedisURL); err == nil {
			return opt
		}
	}
	return asynq.RedisClientOpt{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
}
