package pg

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/DjordjeVuckovic/planet-sync/internal/apperr"
	"github.com/DjordjeVuckovic/planet-sync/internal/domain"
	"github.com/DjordjeVuckovic/planet-sync/internal/storage"
	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const articleColumns = "id, planet_id, title, content, summary, link, created_at, read, starred_at, has_video, has_audio"

const upsertArticleSQL = `
	INSERT INTO articles (id, planet_id, title, content, summary, link, created_at, read, starred_at, has_video, has_audio)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	ON CONFLICT (id) DO UPDATE SET
		planet_id  = EXCLUDED.planet_id,
		title      = EXCLUDED.title,
		content    = EXCLUDED.content,
		summary    = EXCLUDED.summary,
		link       = EXCLUDED.link,
		created_at = EXCLUDED.created_at,
		read       = EXCLUDED.read,
		starred_at = EXCLUDED.starred_at,
		has_video  = EXCLUDED.has_video,
		has_audio  = EXCLUDED.has_audio
`

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Storer is the PostgreSQL implementation of storage.Store.
type Storer struct {
	db PgxIface
}

var _ storage.Store = (*Storer)(nil)

func NewStorer(db PgxIface) *Storer {
	return &Storer{db: db}
}

func (s *Storer) Close() {
	s.db.Close()
}

func (s *Storer) ArticleExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM articles WHERE id = $1)", id).Scan(&exists)
	if err != nil {
		return false, apperr.NewPersistence("article exists", err)
	}
	return exists, nil
}

func (s *Storer) GetArticle(ctx context.Context, id uuid.UUID) (*domain.Article, error) {
	row := s.db.QueryRow(ctx, "SELECT "+articleColumns+" FROM articles WHERE id = $1", id)
	a, err := scanArticle(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("article %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, apperr.NewPersistence("get article", err)
	}
	return a, nil
}

func (s *Storer) FindArticleByLink(ctx context.Context, planetID uuid.UUID, link string) (*domain.Article, error) {
	row := s.db.QueryRow(ctx, "SELECT "+articleColumns+" FROM articles WHERE planet_id = $1 AND link = $2", planetID, link)
	a, err := scanArticle(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("article %q on planet %s: %w", link, planetID, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, apperr.NewPersistence("find article by link", err)
	}
	return a, nil
}

func (s *Storer) ListArticles(ctx context.Context, filter storage.ArticleFilter) ([]domain.Article, error) {
	q := psql.Select(articleColumns).From("articles").OrderBy("created_at DESC", "id")
	if filter.PlanetID != nil {
		q = q.Where(sq.Eq{"planet_id": *filter.PlanetID})
	}
	if filter.UnreadOnly {
		q = q.Where(sq.Eq{"read": false})
	}
	if filter.StarredOnly {
		q = q.Where(sq.NotEq{"starred_at": nil})
	}
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build list query: %w", err)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, apperr.NewPersistence("list articles", err)
	}
	defer rows.Close()

	result := make([]domain.Article, 0)
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, apperr.NewPersistence("list articles", err)
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.NewPersistence("list articles", err)
	}
	return result, nil
}

// UpsertArticles writes the batch in one transaction keyed by article id.
// The unique (planet_id, link) index rejects a second record for the same dedup key.
func (s *Storer) UpsertArticles(ctx context.Context, articles []domain.Article) error {
	if len(articles) == 0 {
		return nil
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return apperr.NewPersistence("upsert articles", err)
	}

	for _, a := range articles {
		_, err := tx.Exec(ctx, upsertArticleSQL,
			a.ID,
			a.PlanetID,
			a.Title,
			a.Content,
			a.Summary,
			a.Link,
			a.CreatedAt,
			a.Read,
			a.StarredAt,
			a.HasVideo,
			a.HasAudio,
		)
		if err != nil {
			rollback(ctx, tx)
			return apperr.NewPersistence("upsert articles", fmt.Errorf("article %s: %w", a.ID, err))
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return apperr.NewPersistence("upsert articles", err)
	}

	slog.Debug("Upserted articles", "count", len(articles))
	return nil
}

func (s *Storer) DeleteArticles(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := s.db.Exec(ctx, "DELETE FROM articles WHERE id = ANY($1)", ids); err != nil {
		return apperr.NewPersistence("delete articles", err)
	}
	return nil
}

func (s *Storer) DeleteArticlesByPlanet(ctx context.Context, planetID uuid.UUID) (int, error) {
	tag, err := s.db.Exec(ctx, "DELETE FROM articles WHERE planet_id = $1", planetID)
	if err != nil {
		return 0, apperr.NewPersistence("delete planet articles", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *Storer) SetRead(ctx context.Context, id uuid.UUID, read bool) error {
	tag, err := s.db.Exec(ctx, "UPDATE articles SET read = $2 WHERE id = $1", id, read)
	if err != nil {
		return apperr.NewPersistence("set read", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("article %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}

func (s *Storer) SetStarred(ctx context.Context, id uuid.UUID, starredAt *time.Time) error {
	tag, err := s.db.Exec(ctx, "UPDATE articles SET starred_at = $2 WHERE id = $1", id, starredAt)
	if err != nil {
		return apperr.NewPersistence("set starred", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("article %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}

func scanArticle(row pgx.Row) (*domain.Article, error) {
	var a domain.Article
	if err := row.Scan(
		&a.ID,
		&a.PlanetID,
		&a.Title,
		&a.Content,
		&a.Summary,
		&a.Link,
		&a.CreatedAt,
		&a.Read,
		&a.StarredAt,
		&a.HasVideo,
		&a.HasAudio,
	); err != nil {
		return nil, err
	}
	return &a, nil
}

func rollback(ctx context.Context, tx pgx.Tx) {
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		slog.Error("Failed to roll back transaction", "error", err)
	}
}
