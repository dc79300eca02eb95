package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/OFFIS-RIT/relgraph/internal/config"
	"github.com/OFFIS-RIT/relgraph/pkg/ai"
	"github.com/OFFIS-RIT/relgraph/pkg/ai/ollama"
	"github.com/OFFIS-RIT/relgraph/pkg/ai/openai"
	"github.com/OFFIS-RIT/relgraph/pkg/graph"
	"github.com/OFFIS-RIT/relgraph/pkg/leaselock"
	"github.com/OFFIS-RIT/relgraph/pkg/logger"
	"github.com/OFFIS-RIT/relgraph/pkg/ner"
	"github.com/OFFIS-RIT/relgraph/pkg/store"
	"github.com/OFFIS-RIT/relgraph/pkg/store/badger"
	"github.com/OFFIS-RIT/relgraph/pkg/store/neo4j"
	"github.com/OFFIS-RIT/relgraph/pkg/store/pgx"

	"github.com/jackc/pgx/v5/pgxpool"
)

// App holds everything a server or worker process needs to run extractions.
type App struct {
	Config   config.Config
	AI       ai.GraphAIClient
	Pipeline *graph.Pipeline

	closers []func(ctx context.Context) error
}

// New builds the AI client, the graph client, the graph writer and the
// pipeline from cfg.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	a := &App{Config: cfg}

	aiClient, err := NewAIClient(cfg)
	if err != nil {
		return nil, err
	}
	a.AI = aiClient

	client, err := graph.NewGraphClient(graph.NewGraphClientParams{
		AIClient:           aiClient,
		Recognizer:         ner.NewProseRecognizer(),
		EntityModel:        cfg.AIEntityModel,
		RelationModel:      cfg.AIRelationModel,
		ParallelAiRequests: cfg.AIParallelReq,
		MaxRetries:         cfg.AIMaxRetries,
		Timeout:            cfg.AITimeout,
		MaxResponseTokens:  cfg.AIMaxResponseToks,
		LocalChunks:        cfg.LocalChunks,
		EntityChunks:       cfg.EntityChunks,
		RelationChunks:     cfg.RelationChunks,
		RecheckBlended:     cfg.RecheckBlended,
		ReasoningEffort:    cfg.AIReasoningEffort,
		Temperature:        cfg.AITemperature,
	})
	if err != nil {
		return nil, err
	}

	writer, err := a.newGraphWriter(ctx)
	if err != nil {
		_ = a.Close(ctx)
		return nil, err
	}

	a.Pipeline = graph.NewPipeline(client, writer)
	return a, nil
}

// NewAIClient returns the chat client selected by AI_ADAPTER.
func NewAIClient(cfg config.Config) (ai.GraphAIClient, error) {
	switch cfg.AIAdapter {
	case config.AdapterOpenAI:
		return openai.NewGraphOpenAIClient(openai.NewGraphOpenAIClientParams{
			Model:   cfg.AIRelationModel,
			ChatURL: cfg.AIChatURL,
			ChatKey: cfg.AIChatKey,
		}), nil
	case config.AdapterOllama:
		client, err := ollama.NewGraphOllamaClient(ollama.NewGraphOllamaClientParams{
			Model:                 cfg.AIRelationModel,
			BaseURL:               cfg.AIChatURL,
			ApiKey:                cfg.AIChatKey,
			MaxConcurrentRequests: int64(cfg.AIParallelReq),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create ollama client: %w", err)
		}
		return client, nil
	}
	return nil, fmt.Errorf("unknown AI adapter %q", cfg.AIAdapter)
}

func (a *App) newGraphWriter(ctx context.Context) (store.GraphWriter, error) {
	cfg := a.Config

	var locker store.Locker = store.NewLocalLocker()
	if cfg.DatabaseURL != "" {
		if err := pgx.Migrate(cfg.DatabaseURL); err != nil {
			return nil, err
		}
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create lock pool: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error {
			pool.Close()
			return nil
		})
		locker = leaselock.NewGraphLock(leaselock.New(pool))
		logger.Info("Using database lease for graph writes")
	}
	if !sharesWriteLock(cfg) {
		logger.Warn("Graph writes are only serialized within this process; set DATABASE_URL to share the write lock between server and worker",
			"store", cfg.GraphStore)
	}

	var (
		writer store.GraphWriter
		err    error
	)
	switch cfg.GraphStore {
	case config.StoreNeo4j:
		writer, err = neo4j.NewGraphNeo4jStorage(ctx, neo4j.NewGraphNeo4jStorageParams{
			URL:      cfg.Neo4jURL,
			User:     cfg.Neo4jUser,
			Password: cfg.Neo4jPassword,
			Database: cfg.Neo4jDatabase,
			Mode:     cfg.GraphWriteMode,
		})
	case config.StorePostgres:
		writer, err = pgx.NewGraphPgxStorage(ctx, cfg.DatabaseURL, cfg.GraphWriteMode)
	case config.StoreBadger:
		writer, err = badger.NewGraphBadgerStorage(badger.NewGraphBadgerStorageParams{
			Path: cfg.BadgerPath,
			Mode: cfg.GraphWriteMode,
		})
	default:
		err = fmt.Errorf("unknown graph store %q", cfg.GraphStore)
	}
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, writer.Close)

	logger.Info("Graph store ready", "store", cfg.GraphStore, "mode", cfg.GraphWriteMode)
	return store.NewLockedWriter(writer, locker), nil
}

// sharesWriteLock reports whether concurrent processes writing to the
// configured store are serialized. A badger directory can only be opened by
// one process, so only neo4j needs the database lease.
func sharesWriteLock(cfg config.Config) bool {
	return cfg.DatabaseURL != "" || cfg.GraphStore != config.StoreNeo4j
}

// Close releases the graph store and database connections in reverse
// order of creation.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
