package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/workmait/digestd/internal/bus"
	"github.com/workmait/digestd/internal/config"
	"github.com/workmait/digestd/internal/consumer"
	"github.com/workmait/digestd/internal/dlq"
	"github.com/workmait/digestd/internal/filestore"
	"github.com/workmait/digestd/internal/handlers"
	"github.com/workmait/digestd/internal/logging"
	"github.com/workmait/digestd/internal/notify"
	"github.com/workmait/digestd/internal/pipeline"
	"github.com/workmait/digestd/internal/server"
	"github.com/workmait/digestd/internal/service"
	"github.com/workmait/digestd/internal/store"
	"github.com/workmait/digestd/internal/strategies"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logging.New(
		logging.ParseLevel(cfg.Logging.Level),
		cfg.Logging.Format,
	).With(logging.Service("digestd"))
	logging.SetDefault(logger)

	slog.Info("Starting digestd",
		slog.Int("port", cfg.Server.Port),
		slog.String("redis_addr", cfg.Redis.Addr),
		slog.String("log_level", cfg.Logging.Level))

	// Event bus
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
	defer rdb.Close()
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		pingCancel()
		log.Fatalf("Failed to connect to Redis at %s: %v", cfg.Redis.Addr, err)
	}
	pingCancel()

	eventBus := bus.NewRedis(rdb,
		bus.WithBlockInterval(cfg.Redis.BlockInterval),
		bus.WithVisibilityTimeout(cfg.Redis.VisibilityTimeout),
		bus.WithLogger(logger),
	)

	// File store
	files, err := filestore.NewLocal(cfg.FileStore.Root)
	if err != nil {
		log.Fatalf("Failed to open file store: %v", err)
	}
	slog.Info("File store ready", slog.String("root", files.Root()))

	// Store backends; in-memory stands in for any disabled backend.
	stores := map[pipeline.Type]store.Store{
		pipeline.TypeVector: store.NewMemory(),
		pipeline.TypeGraph:  store.NewMemory(),
	}
	if cfg.OpenSearch.Enabled {
		vectorStore, err := store.NewOpenSearch(store.OpenSearchConfig{
			URL:           cfg.OpenSearch.URL,
			Username:      cfg.OpenSearch.Username,
			Password:      cfg.OpenSearch.Password,
			TLSSkipVerify: cfg.OpenSearch.TLSSkipVerify,
			IndexPrefix:   cfg.OpenSearch.IndexPrefix,
			Dimensions:    cfg.OpenSearch.Dimensions,
		})
		if err != nil {
			log.Fatalf("Failed to connect to OpenSearch: %v", err)
		}
		stores[pipeline.TypeVector] = vectorStore
		slog.Info("Vector store using OpenSearch", slog.String("url", cfg.OpenSearch.URL))
	} else {
		slog.Warn("OpenSearch disabled, vector nodes are held in memory only")
	}
	if cfg.Postgres.Enabled {
		pgCtx, pgCancel := context.WithTimeout(context.Background(), 30*time.Second)
		pg, err := store.NewPostgres(pgCtx, cfg.Postgres.URL)
		pgCancel()
		if err != nil {
			log.Fatalf("Failed to connect to Postgres: %v", err)
		}
		defer pg.Close()
		stores[pipeline.TypeGraph] = pg
		slog.Info("Graph store using Postgres")
	} else {
		slog.Warn("Postgres disabled, graph nodes are held in memory only")
	}

	// Embedding model
	var embedder embeddings.Embedder
	if cfg.Embedding.Enabled {
		token := cfg.Embedding.APIKey
		if token == "" {
			// Local OpenAI-compatible services accept any token.
			token = "none"
		}
		llm, err := openai.New(
			openai.WithBaseURL(cfg.Embedding.BaseURL),
			openai.WithToken(token),
			openai.WithEmbeddingModel(cfg.Embedding.Model),
		)
		if err != nil {
			log.Fatalf("Failed to create embedding client: %v", err)
		}
		embedder, err = embeddings.NewEmbedder(llm, embeddings.WithStripNewLines(true))
		if err != nil {
			log.Fatalf("Failed to create embedder: %v", err)
		}
		slog.Info("Embedding enabled",
			slog.String("base_url", cfg.Embedding.BaseURL),
			slog.String("model", cfg.Embedding.Model))
	} else {
		slog.Warn("Embedding disabled, vector nodes will carry no vectors")
	}

	// Strategy registry
	registry, err := strategies.BuildRegistry(cfg.Strategies, strategies.Deps{
		Files:    files,
		Stores:   stores,
		Embedder: embedder,
		Logger:   logger,
	})
	if err != nil {
		log.Fatalf("Failed to build strategies: %v", err)
	}

	// Completion notifier
	notifier, err := notify.New(8, logger)
	if err != nil {
		log.Fatalf("Failed to create notifier: %v", err)
	}
	defer notifier.Close()

	// Dead-letter queue
	var deadLetters consumer.DeadLetterer
	if cfg.NATS.Enabled {
		nc, err := nats.Connect(cfg.NATS.URL,
			nats.Name("digestd"),
			nats.MaxReconnects(-1),
			nats.ReconnectWait(2*time.Second),
		)
		if err != nil {
			log.Fatalf("Failed to connect to NATS at %s: %v", cfg.NATS.URL, err)
		}
		defer nc.Close()

		dlqCtx, dlqCancel := context.WithTimeout(context.Background(), 30*time.Second)
		queue, err := dlq.New(dlqCtx, nc, logger)
		dlqCancel()
		if err != nil {
			log.Fatalf("Failed to create dead-letter queue: %v", err)
		}
		deadLetters = queue
		slog.Info("Dead-letter queue enabled", slog.String("nats_url", cfg.NATS.URL))
	} else {
		slog.Warn("NATS disabled, exhausted events are not dead-lettered")
	}

	// Digestion service and consumers
	digest := service.New(registry, stores, notifier, logger)
	dispatcher := consumer.NewDispatcher(eventBus, logger)
	dispatcher.Bind(consumer.Bindings(digest, deadLetters, logger, cfg.Redis.MaxDeliveries)...)

	consumeCtx, stopConsumers := context.WithCancel(context.Background())
	consumersDone := make(chan struct{})
	go func() {
		defer close(consumersDone)
		if err := dispatcher.Run(consumeCtx); err != nil && consumeCtx.Err() == nil {
			slog.Error("Dispatcher stopped", logging.Error(err))
		}
	}()

	// HTTP surface
	handler := handlers.NewDigestHandler(eventBus, files, notifier, handlers.Defaults{
		Namespace:  cfg.Digest.DefaultNamespace,
		Strategies: cfg.Digest.DefaultStrategies,
	}, func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	}, logger)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server.NewRouter(handler),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		slog.Info("HTTP server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", logging.Error(err))
	}

	stopConsumers()
	select {
	case <-consumersDone:
	case <-shutdownCtx.Done():
		slog.Error("Consumers did not stop before deadline")
	}

	slog.Info("Stopped")
}
