package storage

import (
	"context"

	"github.com/DjordjeVuckovic/planet-sync/internal/domain"
	"github.com/google/uuid"
)

// Indexer mirrors articles into a search index. The store stays the source of truth;
// indexing failures are logged by callers and never undo a committed batch.
type Indexer interface {
	IndexArticles(ctx context.Context, planet *domain.Planet, articles []domain.Article) error
	DeletePlanetArticles(ctx context.Context, planetID uuid.UUID) error
}

type noopIndexer struct{}

func (noopIndexer) IndexArticles(context.Context, *domain.Planet, []domain.Article) error {
	return nil
}

func (noopIndexer) DeletePlanetArticles(context.Context, uuid.UUID) error {
	return nil
}

// NoopIndexer is used when no search mirror is configured.
var NoopIndexer Indexer = noopIndexer{}
