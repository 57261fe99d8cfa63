// Package app assembles the indexer and its stores from configuration. Both the API server
// and the CLI start from here.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/docgraph/backend/internal/cache/redis"
	"github.com/docgraph/backend/internal/category"
	"github.com/docgraph/backend/internal/graph"
	"github.com/docgraph/backend/internal/indexer"
	"github.com/docgraph/backend/internal/kg/neo4j"
	"github.com/docgraph/backend/internal/relations"
	"github.com/docgraph/backend/internal/storage/sqlite"
	"github.com/docgraph/backend/pkg/config"
	"github.com/docgraph/backend/pkg/logger"
)

type App struct {
	Config     *config.Config
	Store      *sqlite.Client
	Cache      *redis.Client
	Mirror     *neo4j.Client
	Vocabulary *category.Vocabulary
	Events     *indexer.Broadcaster
	Indexer    *indexer.Indexer
}

// Open connects every configured backend. Redis and Neo4j are optional; when enabled, a
// connection failure is logged and the backend is left out rather than failing startup.
func Open(ctx context.Context, cfg *config.Config) (*App, error) {
	if dir := filepath.Dir(cfg.SQLite.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	store, err := sqlite.NewClient(cfg.SQLite.Path, cfg.SQLite.BusyTimeout)
	if err != nil {
		return nil, err
	}
	if err := store.InitSchema(); err != nil {
		store.Close()
		return nil, err
	}

	vocab, fromDefault, err := category.LoadVocabulary(cfg.Indexer.VocabularyPath)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to load vocabulary: %w", err)
	}
	if fromDefault {
		logger.Warn("Vocabulary file not found, using built-in categories",
			zap.String("path", cfg.Indexer.VocabularyPath),
		)
	}

	a := &App{
		Config:     cfg,
		Store:      store,
		Vocabulary: vocab,
		Events:     indexer.NewBroadcaster(),
	}

	opts := []indexer.Option{
		indexer.WithWorkers(cfg.Indexer.Workers),
		indexer.WithBroadcaster(a.Events),
	}

	if cfg.Redis.Enabled {
		cache, err := redis.NewClient(ctx, cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB,
			time.Duration(cfg.Redis.TTLSec)*time.Second)
		if err != nil {
			logger.Warn("Redis unavailable, continuing without cache", zap.Error(err))
		} else {
			a.Cache = cache
			opts = append(opts, indexer.WithCache(cache))
		}
	}

	if cfg.Neo4j.Enabled {
		mirror, err := neo4j.NewClient(ctx, cfg.Neo4j.URI, cfg.Neo4j.Username, cfg.Neo4j.Password, cfg.Neo4j.Database)
		if err != nil {
			logger.Warn("Neo4j unavailable, continuing without graph mirror", zap.Error(err))
		} else {
			a.Mirror = mirror
			opts = append(opts, indexer.WithMirror(mirror, a.GraphOptions()))
		}
	}

	a.Indexer = indexer.New(
		indexer.NewDirSource(cfg.Indexer.DocsDir, cfg.Indexer.Extension),
		store,
		vocab,
		relations.Options{
			Extension:        cfg.Indexer.Extension,
			DocumentCap:      cfg.Graph.DocumentCap,
			SectionBridgeCap: cfg.Graph.SectionBridgeCap,
			HTMLLinks:        cfg.Indexer.HTMLLinks,
		},
		opts...,
	)

	return a, nil
}

func (a *App) GraphOptions() graph.Options {
	return graph.Options{
		DocumentSize: a.Config.Graph.DocumentSize,
		SectionSize:  a.Config.Graph.SectionSize,
	}
}

func (a *App) Close(ctx context.Context) {
	if a.Mirror != nil {
		if err := a.Mirror.Close(ctx); err != nil {
			logger.Warn("Failed to close neo4j driver", zap.Error(err))
		}
	}
	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			logger.Warn("Failed to close redis client", zap.Error(err))
		}
	}
	if err := a.Store.Close(); err != nil {
		logger.Warn("Failed to close sqlite", zap.Error(err))
	}
}
