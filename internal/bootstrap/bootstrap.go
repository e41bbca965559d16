package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/junhyuk-dev/fortune-rag/internal/config"
	"github.com/junhyuk-dev/fortune-rag/internal/core/ports"
	"github.com/junhyuk-dev/fortune-rag/internal/core/usecase"
	"github.com/junhyuk-dev/fortune-rag/internal/infrastructure/cache"
	"github.com/junhyuk-dev/fortune-rag/internal/infrastructure/ingest"
	"github.com/junhyuk-dev/fortune-rag/internal/infrastructure/llm/openai"
	"github.com/junhyuk-dev/fortune-rag/internal/infrastructure/queue/nats"
	"github.com/junhyuk-dev/fortune-rag/internal/infrastructure/repository/postgres"
	"github.com/junhyuk-dev/fortune-rag/internal/infrastructure/resilience"
	"github.com/junhyuk-dev/fortune-rag/internal/infrastructure/vector/noop"
	"github.com/junhyuk-dev/fortune-rag/internal/infrastructure/vector/qdrant"
	"github.com/junhyuk-dev/fortune-rag/internal/observability/logging"
	"github.com/junhyuk-dev/fortune-rag/internal/observability/metrics"
)

// App wires infrastructure into the reading use cases. One App backs one
// process; the api, worker and selfcheck binaries each pull out what they need.
type App struct {
	Config config.Config
	Logger *slog.Logger

	Metrics *metrics.ServerMetrics

	Initializer *usecase.Initializer
	Conductor   *usecase.Conductor
	Ingestor    *usecase.Ingestor
	SelfCheck   *usecase.SelfCheck

	Queue ports.CardQueue

	closeFn func()
}

func New(ctx context.Context, service string, cfg config.Config) (*App, error) {
	logger := logging.NewJSONLogger(service, cfg.LogLevel)
	slog.SetDefault(logger)

	serverMetrics := metrics.NewServerMetrics(service)
	executor := resilience.NewExecutor(resilience.DefaultConfig())

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	conversations := postgres.NewConversationStore(db)
	if err := conversations.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init card queue: %w", err)
	}

	llmClient := openai.New(openai.Config{
		APIKey:         cfg.OpenAIAPIKey,
		BaseURL:        cfg.OpenAIBaseURL,
		ChatModel:      cfg.ChatModel,
		ChatModelB:     cfg.ChatModelB,
		EmbedModel:     cfg.EmbedModel,
		Timeout:        cfg.LLMTimeout,
		ConnectTimeout: cfg.LLMConnectTimeout,
	})
	chatModel := openai.NewChatModel(llmClient)
	embedder := openai.NewEmbedderWithExecutor(llmClient, executor)

	var factory ports.VectorStoreFactory = qdrant.NewFactoryWithOptions(cfg.QdrantURL, llmClient.EmbedModelID(), qdrant.Options{
		ResilienceExecutor: executor,
	})
	if cfg.VectorBackend != "qdrant" {
		logger.Warn("vector backend disabled, retrieval degrades to empty", "backend", cfg.VectorBackend)
		factory = noop.NewFactory()
	}
	sessions := cache.NewSessionCache(cfg.SessionTTL)

	cross := usecase.NewCrossStore(factory, embedder, usecase.CrossOptions{
		TopK:      cfg.CrossTopK,
		MinScore:  cfg.CrossMinScore,
		MaxGroups: cfg.MaxCrossGroups,
		Advanced:  cfg.CrossAdvanced,
	}, logger)
	cross.SetBackfillHook(func(side string, slots int) {
		serverMetrics.RecordBackfill(service, side, slots)
	})

	manager := usecase.NewRAGManager(cross, factory, embedder, usecase.ManagerOptions{
		Workers:       cfg.PrefetchWorkers,
		WorkerTimeout: cfg.WorkerTimeout,
		Budget:        cfg.PrefetchTimeout,
		LeakGuard:     cfg.ExcludeNonSajuAstro,
		Trace:         cfg.RAGTrace,
	}, logger)
	manager.SetHooks(usecase.ManagerHooks{
		OnPrefetch: func(outcome string, groups int, duration time.Duration) {
			serverMetrics.RecordPrefetch(service, outcome, groups, duration)
		},
		OnStoreSearch: func(collection, status string) {
			serverMetrics.RecordStoreSearch(service, collection, status)
		},
		OnStoreSkip: func(store string) {
			serverMetrics.RecordStoreSkipped(service, store)
		},
	})

	initializer := usecase.NewInitializer(manager, sessions, usecase.InitializerOptions{
		RequirePayload: cfg.RequireComputedPayload,
		AllowBirthOnly: cfg.AllowBirthOnly,
	}, logger)

	composer := usecase.NewComposer(usecase.ComposerOptions{
		Advanced:     cfg.CrossAdvanced,
		SummaryAfter: cfg.SummaryAfterMessages,
	})
	tarot := usecase.NewTarotValidator(chatModel, llmClient.ModelForSession, usecase.TarotOptions{
		Temperature: cfg.ChatTemperature,
	}, logger)
	tarot.SetHooks(
		func(string) { serverMetrics.RecordTarotRepair(service, "attempt") },
		func() { serverMetrics.RecordTarotFallback(service) },
	)

	conductor := usecase.NewConductor(chatModel, sessions, conversations, composer, tarot, llmClient.ModelForSession, usecase.ConductorOptions{
		ChunkSize:      cfg.StreamChunkSize,
		Temperature:    cfg.ChatTemperature,
		MaxTokens:      cfg.AskStreamMaxTokens,
		SajuMaxTokens:  cfg.SajuAskMaxTokens,
		AstroMaxTokens: cfg.AstroAskMaxTokens,
		RequirePayload: cfg.RequireComputedPayload,
		HistoryWindow:  cfg.HistoryWindow,
	}, logger)
	conductor.SetHooks(usecase.ConductorHooks{
		OnChunks: func(mode string, chunks int) {
			serverMetrics.RecordStreamChunks(service, mode, chunks)
		},
		OnAddendum: func(category string) {
			serverMetrics.RecordAddendum(service, category)
		},
		OnCrisis: func(severity string) {
			serverMetrics.RecordCrisis(service, severity)
		},
	})

	sheets := ingest.NewSheetReader()
	ingestor := usecase.NewIngestor(factory, embedder, sheets, logger)
	selfCheck := usecase.NewSelfCheck(factory, embedder, cfg.CrossAdvanced, logger)

	return &App{
		Config: cfg,
		Logger: logger,

		Metrics: serverMetrics,

		Initializer: initializer,
		Conductor:   conductor,
		Ingestor:    ingestor,
		SelfCheck:   selfCheck,

		Queue: queue,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
