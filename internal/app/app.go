// Package app assembles the configured components behind the askmesh
// binaries.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/askmesh/askmesh/internal/assistant"
	"github.com/askmesh/askmesh/internal/config"
	"github.com/askmesh/askmesh/internal/database"
	"github.com/askmesh/askmesh/internal/embedding"
	"github.com/askmesh/askmesh/internal/migrations"
	"github.com/askmesh/askmesh/internal/nl2sql"
	"github.com/askmesh/askmesh/internal/observability"
	"github.com/askmesh/askmesh/internal/query"
	"github.com/askmesh/askmesh/internal/query/sqldb"
	"github.com/askmesh/askmesh/internal/querycache"
	objectcache "github.com/askmesh/askmesh/internal/querycache/objectstore"
	pgcache "github.com/askmesh/askmesh/internal/querycache/postgres"
	"github.com/askmesh/askmesh/internal/resolver"
	"github.com/askmesh/askmesh/internal/schema"
	"github.com/askmesh/askmesh/internal/schemaindex"
	s3store "github.com/askmesh/askmesh/internal/storage/s3"
)

// App holds the long-lived components shared by every conversation.
type App struct {
	Config      config.Config
	Logger      *slog.Logger
	DB          *sql.DB
	Tables      []string
	Index       *schemaindex.Index
	Cache       querycache.Store
	Model       nl2sql.ModelClient
	Engine      query.Engine
	ObjectStore *s3store.Store

	closers []func() error
}

// Build opens the target database, loads and indexes its schema, and opens
// the configured cache backend and model client. An unavailable embedding
// provider or model only degrades the result; storage failures are fatal.
func Build(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	logger = observability.OrDiscard(logger)
	a := &App{Config: cfg, Logger: logger}

	db, err := database.Open(ctx, database.Config{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("open target database: %w", err)
	}
	a.DB = db
	a.closers = append(a.closers, db.Close)
	a.Engine = sqldb.NewEngine(db)

	if cfg.ObjectStore.Enabled {
		store, err := s3store.New(ctx, s3store.Config{
			Endpoint:         cfg.ObjectStore.Endpoint,
			Region:           cfg.ObjectStore.Region,
			Bucket:           cfg.ObjectStore.Bucket,
			AccessKeyID:      cfg.ObjectStore.AccessKeyID,
			SecretAccessKey:  cfg.ObjectStore.SecretAccessKey,
			UseSSL:           cfg.ObjectStore.UseSSL,
			Prefix:           cfg.ObjectStore.Prefix,
			AutoCreateBucket: cfg.ObjectStore.AutoCreateBucket,
		})
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("initialize object store: %w", err)
		}
		a.ObjectStore = store
	}

	docs, err := a.loadSchema(ctx, db)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Tables = make([]string, 0, len(docs))
	for _, doc := range docs {
		a.Tables = append(a.Tables, doc.TableName)
	}
	a.Index = schemaindex.Build(ctx, a.embedder(), docs, logger)

	cache, err := a.openCache(ctx)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Cache = cache

	model, err := nl2sql.New(nl2sql.Config{
		Provider:    cfg.AI.Provider,
		BaseURL:     cfg.AI.BaseURL,
		APIKey:      cfg.AI.APIKey,
		Model:       cfg.AI.Model,
		Temperature: cfg.AI.Temperature,
		Timeout:     cfg.AI.Timeout,
	})
	if err != nil {
		logger.Warn("language model unavailable; answers will come from the cache only", slog.Any("error", err))
	} else {
		a.Model = model
	}

	logger.Info("askmesh ready",
		slog.String("driver", cfg.Database.Driver),
		slog.Int("tables", len(a.Tables)),
		slog.Bool("retrieval", a.Index.Ready()),
		slog.String("cache", cfg.Cache.Backend),
	)
	return a, nil
}

// NewAssistant starts a conversation with its own refinement state and
// history over the shared components.
func (a *App) NewAssistant(session string) *assistant.Assistant {
	logger := a.Logger.With(slog.String("session", session))
	r := resolver.New(a.Index, a.Cache, a.Model, resolver.Options{
		SimilarityThreshold: a.Config.Retrieval.SimilarityThreshold,
		TopK:                a.Config.Retrieval.TopK,
	}, logger)
	executor := query.NewExecutor(a.Engine, a.Config.Database.StatementTimeout, logger)
	return assistant.New(r, executor, a.Config.Executor.RowLimit, logger)
}

// Ping checks the target database.
func (a *App) Ping(ctx context.Context) error {
	return a.DB.PingContext(ctx)
}

func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) loadSchema(ctx context.Context, db *sql.DB) ([]schema.Document, error) {
	var src schema.Source
	if path := strings.TrimSpace(a.Config.Schema.File); path != "" {
		fileSource, err := schema.NewFileSource(path)
		if err != nil {
			return nil, fmt.Errorf("load schema file: %w", err)
		}
		src = fileSource
	} else {
		sqlSource, err := schema.NewSQLSource(db, a.Config.Database.Driver)
		if err != nil {
			return nil, fmt.Errorf("schema source: %w", err)
		}
		src = sqlSource
	}
	if names := splitList(a.Config.Schema.Tables); len(names) > 0 {
		src = schema.Only(src, names)
	}
	docs, err := schema.LoadDocuments(ctx, src, a.Logger)
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	return docs, nil
}

func (a *App) embedder() embedding.Embedder {
	if !a.Config.Retrieval.Enabled {
		a.Logger.Info("schema retrieval disabled")
		return nil
	}
	embedder, err := embedding.New(embedding.Config{
		Provider: a.Config.Embedding.Provider,
		BaseURL:  a.Config.Embedding.BaseURL,
		APIKey:   a.Config.Embedding.APIKey,
		Model:    a.Config.Embedding.Model,
		Timeout:  a.Config.Embedding.Timeout,
	})
	if err != nil {
		a.Logger.Warn("embedding provider unavailable", slog.Any("error", err))
		return nil
	}
	return embedder
}

func (a *App) openCache(ctx context.Context) (querycache.Store, error) {
	cfg := a.Config.Cache
	switch cfg.Backend {
	case config.CacheBackendMemory:
		return querycache.NewMemory(), nil
	case config.CacheBackendFile:
		store, err := querycache.OpenFile(ctx, cfg.Dir, cfg.File)
		if err != nil {
			return nil, fmt.Errorf("open file cache: %w", err)
		}
		return store, nil
	case config.CacheBackendPostgres:
		dsn := cfg.DSN
		if dsn == "" && a.Config.Database.Driver == database.DriverPostgres {
			dsn = a.Config.Database.DSN
		}
		db, err := database.Open(ctx, database.Config{Driver: database.DriverPostgres, DSN: dsn, MaxOpenConns: 2, MaxIdleConns: 2})
		if err != nil {
			return nil, fmt.Errorf("open postgres cache: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		applied, err := migrations.NewRunner().Up(ctx, db, 0)
		if err != nil {
			return nil, fmt.Errorf("migrate postgres cache: %w", err)
		}
		if applied > 0 {
			a.Logger.Info("postgres cache migrated", slog.Int("applied", applied))
		}
		return pgcache.NewStore(db), nil
	case config.CacheBackendObjectStore:
		if a.ObjectStore == nil {
			return nil, fmt.Errorf("objectstore cache requires an object store")
		}
		store, err := objectcache.Open(ctx, a.ObjectStore, cfg.ObjectKey)
		if err != nil {
			return nil, fmt.Errorf("open objectstore cache: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported cache backend %q", cfg.Backend)
	}
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
