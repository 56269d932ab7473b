package storage

import (
	"context"
	"time"

	"github.com/DjordjeVuckovic/planet-sync/internal/domain"
	"github.com/google/uuid"
)

// ArticleStore owns article records. UpsertArticles and DeleteArticles apply the whole
// batch or nothing. Lookups return apperr.ErrNotFound when nothing matches.
type ArticleStore interface {
	ArticleExists(ctx context.Context, id uuid.UUID) (bool, error)
	GetArticle(ctx context.Context, id uuid.UUID) (*domain.Article, error)
	// FindArticleByLink looks up the dedup key (link, planet id).
	FindArticleByLink(ctx context.Context, planetID uuid.UUID, link string) (*domain.Article, error)
	ListArticles(ctx context.Context, filter ArticleFilter) ([]domain.Article, error)
	UpsertArticles(ctx context.Context, articles []domain.Article) error
	DeleteArticles(ctx context.Context, ids []uuid.UUID) error
	DeleteArticlesByPlanet(ctx context.Context, planetID uuid.UUID) (int, error)
	SetRead(ctx context.Context, id uuid.UUID, read bool) error
	SetStarred(ctx context.Context, id uuid.UUID, starredAt *time.Time) error
}

// PlanetRegistry owns planet records.
type PlanetRegistry interface {
	CreatePlanet(ctx context.Context, planet *domain.Planet) error
	GetPlanet(ctx context.Context, id uuid.UUID) (*domain.Planet, error)
	ListPlanets(ctx context.Context) ([]domain.Planet, error)
	// UpdateMetadata applies non-empty name and about values and reports whether
	// anything changed. Other columns are never touched.
	UpdateMetadata(ctx context.Context, id uuid.UUID, name, about string) (bool, error)
	// UpdateContentAddress records the last resolved CID of a name-resolved planet.
	UpdateContentAddress(ctx context.Context, id uuid.UUID, cid string) error
	// UpdateChecksum records the checksum of the last ingested feed document.
	UpdateChecksum(ctx context.Context, id uuid.UUID, checksum string) error
	// UpdatePointer records a successful publish of an owned planet.
	UpdatePointer(ctx context.Context, id uuid.UUID, pointer, cid string, at time.Time) error
	DeletePlanet(ctx context.Context, id uuid.UUID) error
}

type Store interface {
	ArticleStore
	PlanetRegistry
	Close()
}

// ArticleFilter narrows ListArticles. Zero value lists everything, newest first.
type ArticleFilter struct {
	PlanetID    *uuid.UUID
	UnreadOnly  bool
	StarredOnly bool
	Limit       int
	Offset      int
}

type Type string

const (
	PG    Type = "pg"
	InMem Type = "in_mem"
)

type StorerError string

const (
	ErrUnsupportedStorer StorerError = "unsupported storer type: %s"
)

func (e StorerError) Error() string {
	return string(e)
}
