package factory

import (
	"context"
	"fmt"

	"github.com/DjordjeVuckovic/planet-sync/internal/storage"
	"github.com/DjordjeVuckovic/planet-sync/internal/storage/es"
	"github.com/DjordjeVuckovic/planet-sync/internal/storage/in_mem"
	"github.com/DjordjeVuckovic/planet-sync/internal/storage/pg"
	"github.com/DjordjeVuckovic/planet-sync/pkg/server"
)

// NewStore creates the article store and planet registry for the configured backend,
// together with a health checker for it.
func NewStore(ctx context.Context, cfg *StorageConfig) (storage.Store, server.HealthChecker, error) {
	switch cfg.Type {
	case storage.PG:
		if cfg.Pg == nil {
			return nil, nil, fmt.Errorf("missing PostgreSQL configuration")
		}
		pool, err := pg.NewConnectionPool(ctx, *cfg.Pg)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create PostgreSQL connection pool: %w", err)
		}
		db := pool.GetConn()
		return pg.NewStorer(db), pg.NewHealthChecker(db), nil

	case storage.InMem:
		return in_mem.NewInMemStorer(), server.AlwaysHealthy, nil

	default:
		return nil, nil, fmt.Errorf(string(storage.ErrUnsupportedStorer), cfg.Type)
	}
}

// NewIndexer returns the Elasticsearch mirror when configured and a no-op otherwise.
func NewIndexer(ctx context.Context, cfg *StorageConfig) (storage.Indexer, error) {
	if cfg.Es == nil {
		return storage.NoopIndexer, nil
	}
	indexer, err := es.NewIndexer(ctx, *cfg.Es)
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch indexer: %w", err)
	}
	return indexer, nil
}
