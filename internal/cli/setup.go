package cli

import (
	"context"
	"fmt"
	"log"

	openai "github.com/sashabaranov/go-openai"

	"github.com/veldtlabs/mentorkb/internal/cache"
	"github.com/veldtlabs/mentorkb/internal/config"
	"github.com/veldtlabs/mentorkb/internal/database"
	"github.com/veldtlabs/mentorkb/internal/embedding"
	"github.com/veldtlabs/mentorkb/internal/search"
	"github.com/veldtlabs/mentorkb/internal/service"
	"github.com/veldtlabs/mentorkb/internal/storage"
	"github.com/veldtlabs/mentorkb/internal/store"
)

// engine bundles the long-lived components every command works with.
// Everything is constructed once here and passed down explicitly.
type engine struct {
	store    store.Store
	cache    cache.Cache
	provider embedding.Provider
	service  *service.KnowledgeService
	search   *search.Engine

	closers []func()
}

func (e *engine) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
}

// buildEngine wires the store, cache, embedding provider, registry and
// retrieval engine from configuration. migrateDB applies pending schema
// migrations first (Postgres backend only; SQLite creates its schema on
// open).
func buildEngine(ctx context.Context, cfg *config.Config, migrateDB bool) (*engine, error) {
	e := &engine{}

	st, err := openStore(ctx, cfg, migrateDB)
	if err != nil {
		return nil, err
	}
	e.store = st
	e.closers = append(e.closers, st.Close)

	e.cache = openCache(ctx, cfg, e)
	e.provider = buildProvider(cfg, e.cache)

	var archive service.ArchiveInterface
	if cfg.HasS3() {
		a, err := storage.NewArchive(ctx, storage.ArchiveConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		})
		if err != nil {
			e.Close()
			return nil, fmt.Errorf("failed to set up document archive: %w", err)
		}
		if err := a.EnsureBucket(ctx); err != nil {
			log.Printf("archive: ensure bucket: %v", err)
		}
		archive = a
	}

	e.service = service.NewKnowledgeService(e.store, e.provider, archive)
	e.search = search.NewEngine(e.store, e.cache, cfg.ResultCacheTTL)
	return e, nil
}

func openStore(ctx context.Context, cfg *config.Config, migrateDB bool) (store.Store, error) {
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		if migrateDB {
			if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
				return nil, err
			}
		}
		pool, err := database.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return store.NewPostgresStore(pool), nil
	case config.BackendSQLite:
		return store.NewSQLiteStore(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// openCache prefers Redis and falls back to the in-process cache when no
// address is configured or the connection fails. The engine stays correct
// either way.
func openCache(ctx context.Context, cfg *config.Config, e *engine) cache.Cache {
	if !cfg.HasRedis() {
		return cache.NewMemoryCache()
	}

	rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		log.Printf("redis unavailable, using in-process cache: %v", err)
		return cache.NewMemoryCache()
	}
	e.closers = append(e.closers, func() { _ = rc.Close() })
	return rc
}

func buildProvider(cfg *config.Config, c cache.Cache) embedding.Provider {
	var base embedding.Provider
	if cfg.HasOpenAI() {
		base = embedding.NewOpenAIProvider(embedding.OpenAIConfig{
			APIKey:    cfg.OpenAIAPIKey,
			Model:     openai.EmbeddingModel(cfg.EmbeddingModel),
			Dimension: cfg.EmbeddingDimension,
		})
	} else {
		log.Println("no OpenAI key configured, embedding calls will fail")
		base = embedding.NewNullProvider(cfg.EmbeddingDimension)
	}
	return embedding.NewCachedProvider(base, c, cfg.EmbeddingCacheTTL, 0)
}
