package main

import (
	"context"
	"fmt"

	"github.com/dshills/snipvault/internal/assistant"
	"github.com/dshills/snipvault/internal/config"
	"github.com/dshills/snipvault/internal/embedder"
	"github.com/dshills/snipvault/internal/indexer"
	"github.com/dshills/snipvault/internal/searcher"
	"github.com/dshills/snipvault/internal/snippets"
	"github.com/dshills/snipvault/internal/storage"
)

// app holds the wired components shared by every command
type app struct {
	store     *storage.SQLStorage
	embedder  embedder.Embedder
	snippets  *snippets.Service
	searcher  *searcher.Searcher
	assistant *assistant.Assistant
	indexer   *indexer.Indexer
}

func newApp(ctx context.Context) (*app, error) {
	store, err := openStore(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	emb, err := embedder.New(ctx, cfg.EmbedderConfig())
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	completer, err := assistant.NewCompleter(ctx, cfg.CompleterConfig())
	if err != nil {
		_ = emb.Close()
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize completion provider: %w", err)
	}

	logger.Info("components ready",
		"db_driver", cfg.Database.Driver,
		"sqlite_build", storage.BuildMode,
		"embedding_provider", emb.Provider(),
		"embedding_model", emb.Model(),
		"completion_provider", assistant.DetectProvider(cfg.CompleterConfig()))

	return &app{
		store:     store,
		embedder:  emb,
		snippets:  snippets.NewService(store, emb, logger),
		searcher:  searcher.NewSearcher(store, emb, searcher.Options{Workers: cfg.Search.Workers, Logger: logger}),
		assistant: assistant.New(completer, emb, cfg.Completion.CacheSize, logger),
		indexer:   indexer.New(store, emb, logger),
	}, nil
}

func openStore(ctx context.Context, db config.DatabaseConfig) (*storage.SQLStorage, error) {
	dsn := db.Path
	if db.Driver == config.DriverPostgres {
		dsn = db.DSN
	}
	store, err := storage.Open(ctx, db.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	return store, nil
}

func (a *app) Close() error {
	_ = a.embedder.Close()
	return a.store.Close()
}
