package pg

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DjordjeVuckovic/planet-sync/internal/apperr"
	"github.com/DjordjeVuckovic/planet-sync/internal/domain"
	"github.com/DjordjeVuckovic/planet-sync/internal/storage"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var articleCols = []string{"id", "planet_id", "title", "content", "summary", "link", "created_at", "read", "starred_at", "has_video", "has_audio"}

func newMockStorer(t *testing.T) (*Storer, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewStorer(mock), mock
}

func TestStorer_UpsertArticles_CommitsBatch(t *testing.T) {
	s, mock := newMockStorer(t)

	planetID := uuid.New()
	articles := []domain.Article{
		{ID: uuid.New(), PlanetID: planetID, Title: "one", Link: "https://example.com/1", CreatedAt: time.Now()},
		{ID: uuid.New(), PlanetID: planetID, Title: "two", Link: "https://example.com/2", CreatedAt: time.Now()},
	}

	mock.ExpectBegin()
	for range articles {
		mock.ExpectExec("INSERT INTO articles").
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	mock.ExpectCommit()

	require.NoError(t, s.UpsertArticles(context.Background(), articles))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStorer_UpsertArticles_RollsBackOnConflict(t *testing.T) {
	s, mock := newMockStorer(t)

	planetID := uuid.New()
	articles := []domain.Article{
		{ID: uuid.New(), PlanetID: planetID, Title: "one", Link: "https://example.com/1"},
		{ID: uuid.New(), PlanetID: planetID, Title: "dup", Link: "https://example.com/1"},
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO articles").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO articles").
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"})
	mock.ExpectRollback()

	err := s.UpsertArticles(context.Background(), articles)
	require.Error(t, err)
	assert.True(t, apperr.IsPersistenceFailure(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStorer_UpsertArticles_EmptyBatchIsNoop(t *testing.T) {
	s, mock := newMockStorer(t)

	require.NoError(t, s.UpsertArticles(context.Background(), nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStorer_FindArticleByLink(t *testing.T) {
	s, mock := newMockStorer(t)

	id := uuid.New()
	planetID := uuid.New()
	content := "body"
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM articles WHERE planet_id = $1 AND link = $2")).
		WithArgs(planetID, "https://example.com/1").
		WillReturnRows(pgxmock.NewRows(articleCols).
			AddRow(id.String(), planetID.String(), "title", &content, "", "https://example.com/1", created, false, (*time.Time)(nil), false, true))

	a, err := s.FindArticleByLink(context.Background(), planetID, "https://example.com/1")
	require.NoError(t, err)
	assert.Equal(t, id, a.ID)
	assert.Equal(t, planetID, a.PlanetID)
	require.NotNil(t, a.Content)
	assert.Equal(t, "body", *a.Content)
	assert.True(t, a.HasAudio)
	assert.Nil(t, a.StarredAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStorer_GetArticle_NotFound(t *testing.T) {
	s, mock := newMockStorer(t)

	id := uuid.New()
	mock.ExpectQuery(regexp.QuoteMeta("FROM articles WHERE id = $1")).
		WithArgs(id).
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetArticle(context.Background(), id)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStorer_ListArticles_BuildsFilter(t *testing.T) {
	s, mock := newMockStorer(t)

	planetID := uuid.New()
	mock.ExpectQuery(regexp.QuoteMeta("FROM articles WHERE planet_id = $1 AND read = $2 ORDER BY created_at DESC, id LIMIT 10 OFFSET 20")).
		WithArgs(planetID.String(), false).
		WillReturnRows(pgxmock.NewRows(articleCols))

	articles, err := s.ListArticles(context.Background(), storage.ArticleFilter{
		PlanetID:   &planetID,
		UnreadOnly: true,
		Limit:      10,
		Offset:     20,
	})
	require.NoError(t, err)
	assert.Empty(t, articles)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStorer_ListArticles_Starred(t *testing.T) {
	s, mock := newMockStorer(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM articles WHERE starred_at IS NOT NULL")).
		WillReturnRows(pgxmock.NewRows(articleCols))

	_, err := s.ListArticles(context.Background(), storage.ArticleFilter{StarredOnly: true})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStorer_DeleteArticlesByPlanet(t *testing.T) {
	s, mock := newMockStorer(t)

	planetID := uuid.New()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM articles WHERE planet_id = $1")).
		WithArgs(planetID).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	n, err := s.DeleteArticlesByPlanet(context.Background(), planetID)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStorer_SetRead_NotFound(t *testing.T) {
	s, mock := newMockStorer(t)

	id := uuid.New()
	mock.ExpectExec("UPDATE articles SET read").
		WithArgs(id, true).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.SetRead(context.Background(), id, true)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStorer_UpdatePointer(t *testing.T) {
	at := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	t.Run("owned planet", func(t *testing.T) {
		s, mock := newMockStorer(t)
		id := uuid.New()
		mock.ExpectExec("UPDATE planets").
			WithArgs(id, "k51key", "bafycid", at).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, s.UpdatePointer(context.Background(), id, "k51key", "bafycid", at))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("followed planet", func(t *testing.T) {
		s, mock := newMockStorer(t)
		id := uuid.New()
		mock.ExpectExec("UPDATE planets").
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		mock.ExpectQuery(regexp.QuoteMeta("SELECT scheme FROM planets")).
			WithArgs(id).
			WillReturnRows(pgxmock.NewRows([]string{"scheme"}).AddRow("http"))

		err := s.UpdatePointer(context.Background(), id, "x", "y", at)
		assert.True(t, errors.Is(err, apperr.ErrNotOwned))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing planet", func(t *testing.T) {
		s, mock := newMockStorer(t)
		id := uuid.New()
		mock.ExpectExec("UPDATE planets").
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		mock.ExpectQuery(regexp.QuoteMeta("SELECT scheme FROM planets")).
			WithArgs(id).
			WillReturnError(pgx.ErrNoRows)

		err := s.UpdatePointer(context.Background(), id, "x", "y", at)
		assert.True(t, errors.Is(err, apperr.ErrNotFound))
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestStorer_UpdateMetadata(t *testing.T) {
	t.Run("changed", func(t *testing.T) {
		s, mock := newMockStorer(t)
		id := uuid.New()
		mock.ExpectExec(regexp.QuoteMeta("COALESCE(NULLIF($2, ''), name)")).
			WithArgs(id, "Vitalik's Blog", "", pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		changed, err := s.UpdateMetadata(context.Background(), id, "Vitalik's Blog", "")
		require.NoError(t, err)
		assert.True(t, changed)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unchanged", func(t *testing.T) {
		s, mock := newMockStorer(t)
		id := uuid.New()
		mock.ExpectExec("UPDATE planets").
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		mock.ExpectQuery(regexp.QuoteMeta("SELECT scheme FROM planets")).
			WithArgs(id).
			WillReturnRows(pgxmock.NewRows([]string{"scheme"}).AddRow("ens"))

		changed, err := s.UpdateMetadata(context.Background(), id, "same", "")
		require.NoError(t, err)
		assert.False(t, changed)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing planet", func(t *testing.T) {
		s, mock := newMockStorer(t)
		id := uuid.New()
		mock.ExpectExec("UPDATE planets").
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		mock.ExpectQuery(regexp.QuoteMeta("SELECT scheme FROM planets")).
			WithArgs(id).
			WillReturnError(pgx.ErrNoRows)

		_, err := s.UpdateMetadata(context.Background(), id, "x", "")
		assert.True(t, errors.Is(err, apperr.ErrNotFound))
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestStorer_UpdateContentAddress(t *testing.T) {
	t.Run("name-resolved planet", func(t *testing.T) {
		s, mock := newMockStorer(t)
		id := uuid.New()
		mock.ExpectExec(regexp.QuoteMeta("SET ens_cid = $2")).
			WithArgs(id, pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, s.UpdateContentAddress(context.Background(), id, "bafyNEW"))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("feed planet", func(t *testing.T) {
		s, mock := newMockStorer(t)
		id := uuid.New()
		mock.ExpectExec("UPDATE planets").
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		mock.ExpectQuery(regexp.QuoteMeta("SELECT scheme FROM planets")).
			WithArgs(id).
			WillReturnRows(pgxmock.NewRows([]string{"scheme"}).AddRow("http"))

		err := s.UpdateContentAddress(context.Background(), id, "bafyNEW")
		var ve *apperr.ValidationError
		assert.True(t, errors.As(err, &ve))
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestStorer_UpdateChecksum(t *testing.T) {
	t.Run("feed planet", func(t *testing.T) {
		s, mock := newMockStorer(t)
		id := uuid.New()
		mock.ExpectExec(regexp.QuoteMeta("SET feed_checksum = $2")).
			WithArgs(id, pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, s.UpdateChecksum(context.Background(), id, "abc"))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing planet", func(t *testing.T) {
		s, mock := newMockStorer(t)
		id := uuid.New()
		mock.ExpectExec("UPDATE planets").
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		mock.ExpectQuery(regexp.QuoteMeta("SELECT scheme FROM planets")).
			WithArgs(id).
			WillReturnError(pgx.ErrNoRows)

		err := s.UpdateChecksum(context.Background(), id, "abc")
		assert.True(t, errors.Is(err, apperr.ErrNotFound))
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestStorer_GetPlanet_MapsVariant(t *testing.T) {
	s, mock := newMockStorer(t)

	id := uuid.New()
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	host := "example.com"
	feedURL := "https://example.com/feed.xml"
	checksum := "abc"
	none := (*string)(nil)

	mock.ExpectQuery(regexp.QuoteMeta("FROM planets WHERE id = $1")).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "name", "about", "scheme", "key_name", "key_id", "ipns", "last_published_cid", "last_published_at",
			"ens_name", "ens_cid", "feed_host", "feed_url", "feed_checksum", "created_at", "updated_at",
		}).AddRow(
			id.String(), "Example", "", "http", none, none, none, none, (*time.Time)(nil),
			none, none, &host, &feedURL, &checksum, created, created,
		))

	p, err := s.GetPlanet(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, domain.SchemeHTTP, p.Scheme)
	require.NotNil(t, p.Feed)
	assert.Nil(t, p.Owned)
	assert.Nil(t, p.ENS)
	assert.Equal(t, feedURL, p.Feed.FeedURL)
	assert.Equal(t, "abc", p.Feed.Checksum)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStorer_CreatePlanet_RejectsInvalid(t *testing.T) {
	s, mock := newMockStorer(t)

	err := s.CreatePlanet(context.Background(), &domain.Planet{ID: uuid.New(), Scheme: domain.SchemeHTTP})
	var ve *apperr.ValidationError
	assert.True(t, errors.As(err, &ve))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPlanetRow_RoundTrip(t *testing.T) {
	p, err := domain.NewOwnedPlanet("mine", "about", "key-1", "k51key")
	require.NoError(t, err)

	row := toPlanetRow(p)
	assert.Nil(t, row.FeedURL)
	assert.Nil(t, row.ENSName)

	back, err := row.toDomain()
	require.NoError(t, err)
	assert.Equal(t, p.Owned, back.Owned)
	assert.Equal(t, p.Name, back.Name)
	assert.NoError(t, back.Validate())
}
