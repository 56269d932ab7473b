package planet

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/DjordjeVuckovic/planet-sync/internal/apperr"
	"github.com/DjordjeVuckovic/planet-sync/internal/domain"
	"github.com/DjordjeVuckovic/planet-sync/internal/events"
	"github.com/DjordjeVuckovic/planet-sync/internal/storage"
	"github.com/DjordjeVuckovic/planet-sync/internal/storage/in_mem"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeKeys struct {
	generated []string
	removed   []string
	err       error
}

func (k *fakeKeys) GenerateKey(_ context.Context, keyName string) (string, error) {
	if k.err != nil {
		return "", k.err
	}
	k.generated = append(k.generated, keyName)
	return "k51" + keyName, nil
}

func (k *fakeKeys) RemoveKey(_ context.Context, keyName string) error {
	k.removed = append(k.removed, keyName)
	return nil
}

type recordingIndexer struct {
	indexed []uuid.UUID
	deleted []uuid.UUID
}

func (r *recordingIndexer) IndexArticles(_ context.Context, _ *domain.Planet, articles []domain.Article) error {
	for _, a := range articles {
		r.indexed = append(r.indexed, a.ID)
	}
	return nil
}

func (r *recordingIndexer) DeletePlanetArticles(_ context.Context, planetID uuid.UUID) error {
	r.deleted = append(r.deleted, planetID)
	return nil
}

type fixture struct {
	store   *in_mem.InMemStorer
	keys    *fakeKeys
	indexer *recordingIndexer
	root    string
	avatars *AvatarStore
	events  []events.Event
	svc     *Service
}

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:   in_mem.NewInMemStorer(),
		keys:    &fakeKeys{},
		indexer: &recordingIndexer{},
		root:    t.TempDir(),
		avatars: NewAvatarStore(t.TempDir()),
	}
	bus := events.NewBus()
	bus.Subscribe(func(e events.Event) { f.events = append(f.events, e) })

	f.svc = NewService(f.store, f.keys,
		WithIndexer(f.indexer),
		WithAvatars(f.avatars),
		WithEvents(bus),
		WithPublishRoot(f.root),
		WithClock(func() time.Time { return fixedNow }),
	)
	return f
}

func TestService_CreateOwnedPlanet(t *testing.T) {
	f := newFixture(t)

	p, err := f.svc.CreateOwnedPlanet(context.Background(), "  My Planet ", "about")
	require.NoError(t, err)
	assert.True(t, p.IsOwned())
	assert.Equal(t, "My Planet", p.Name)
	require.Len(t, f.keys.generated, 1)
	assert.Equal(t, f.keys.generated[0], p.Owned.KeyName)
	assert.Equal(t, "k51"+p.Owned.KeyName, p.Owned.IPNS)

	_, err = f.svc.CreateOwnedPlanet(context.Background(), " ", "")
	var ve *apperr.ValidationError
	assert.ErrorAs(t, err, &ve)

	f.keys.err = errors.New("no daemon")
	_, err = f.svc.CreateOwnedPlanet(context.Background(), "Other", "")
	assert.Error(t, err)
}

func TestService_FollowPlanet(t *testing.T) {
	tests := []struct {
		target string
		scheme domain.Scheme
	}{
		{target: "https://example.com/feed.xml", scheme: domain.SchemeHTTP},
		{target: "Vitalik.eth", scheme: domain.SchemeENS},
		{target: "docs.ipfs.tech", scheme: domain.SchemeDNSLink},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			f := newFixture(t)

			p, err := f.svc.FollowPlanet(context.Background(), tt.target)
			require.NoError(t, err)
			assert.Equal(t, tt.scheme, p.Scheme)
			assert.False(t, p.IsOwned())

			again, err := f.svc.FollowPlanet(context.Background(), tt.target)
			require.NoError(t, err)
			assert.Equal(t, p.ID, again.ID)
		})
	}

	_, err := newFixture(t).svc.FollowPlanet(context.Background(), "not a target")
	assert.Error(t, err)
}

func TestService_ArticleAuthoring(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p, err := f.svc.CreateOwnedPlanet(ctx, "Mine", "")
	require.NoError(t, err)

	a, followUp, err := f.svc.CreateArticle(ctx, p.ID, "Hello", "<p>hi</p>")
	require.NoError(t, err)
	assert.Equal(t, domain.OwnedArticleLink(a.ID), a.Link)
	assert.True(t, a.Read)
	assert.Equal(t, fixedNow, a.CreatedAt)
	assert.Equal(t, &domain.FollowUp{Kind: domain.FollowUpPublish, PlanetID: p.ID}, followUp)
	assert.Equal(t, []uuid.UUID{a.ID}, f.indexer.indexed)

	updated, followUp, err := f.svc.UpdateArticle(ctx, a.ID, "Hello again", "<p>edited</p>")
	require.NoError(t, err)
	assert.Equal(t, a.ID, updated.ID)
	assert.Equal(t, "Hello again", updated.Title)
	assert.NotNil(t, followUp)

	stored, err := f.store.GetArticle(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "<p>edited</p>", *stored.Content)
	assert.Equal(t, a.Link, stored.Link)

	rendered := filepath.Join(f.root, p.ID.String(), a.ID.String())
	require.NoError(t, os.MkdirAll(rendered, 0o755))

	followUp, err = f.svc.DeleteArticle(ctx, a.ID)
	require.NoError(t, err)
	assert.NotNil(t, followUp)
	_, err = f.store.GetArticle(ctx, a.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = os.Stat(rendered)
	assert.True(t, os.IsNotExist(err))

	_, _, err = f.svc.CreateArticle(ctx, p.ID, "", "body")
	var ve *apperr.ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestService_AuthoringRequiresOwnedPlanet(t *testing.T) {
	f := newFixture(t)
	followed, err := f.svc.FollowPlanet(context.Background(), "https://example.com/feed.xml")
	require.NoError(t, err)

	_, _, err = f.svc.CreateArticle(context.Background(), followed.ID, "Title", "")
	assert.ErrorIs(t, err, apperr.ErrNotOwned)
}

func TestService_UpdatePlanet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p, err := f.svc.CreateOwnedPlanet(ctx, "Mine", "about")
	require.NoError(t, err)

	updated, followUp, err := f.svc.UpdatePlanet(ctx, p.ID, "Renamed", "")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	assert.Equal(t, "about", updated.About)
	assert.NotNil(t, followUp)

	_, followUp, err = f.svc.UpdatePlanet(ctx, p.ID, "Renamed", "")
	require.NoError(t, err)
	assert.Nil(t, followUp)
}

func TestService_DeletePlanetCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p, err := f.svc.CreateOwnedPlanet(ctx, "Mine", "")
	require.NoError(t, err)
	a, _, err := f.svc.CreateArticle(ctx, p.ID, "Hello", "")
	require.NoError(t, err)

	dir := filepath.Join(f.root, p.ID.String())
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, f.avatars.UpdateAvatar(ctx, p.ID, []byte("png")))

	require.NoError(t, f.svc.DeletePlanet(ctx, p.ID))

	_, err = f.store.GetPlanet(ctx, p.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = f.store.GetArticle(ctx, a.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	left, err := f.store.ListArticles(ctx, storage.ArticleFilter{})
	require.NoError(t, err)
	assert.Empty(t, left)

	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(f.avatars.Path(p.ID))
	assert.True(t, os.IsNotExist(err))
	assert.Equal(t, []uuid.UUID{p.ID}, f.indexer.deleted)
	assert.Equal(t, []string{p.Owned.KeyName}, f.keys.removed)

	assert.ErrorIs(t, f.svc.DeletePlanet(ctx, p.ID), apperr.ErrNotFound)
}

func TestService_ReadAndStar(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p, err := f.svc.FollowPlanet(ctx, "https://example.com/feed.xml")
	require.NoError(t, err)
	a := domain.NewIngestedArticle(p.ID, domain.FeedEntry{Title: "t", Link: "https://example.com/1", CreatedAt: fixedNow}, false)
	require.NoError(t, f.store.UpsertArticles(ctx, []domain.Article{a}))

	require.NoError(t, f.svc.SetRead(ctx, a.ID, true))
	require.NoError(t, f.svc.SetStarred(ctx, a.ID, true))

	stored, err := f.store.GetArticle(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, stored.Read)
	require.NotNil(t, stored.StarredAt)
	assert.Equal(t, fixedNow, *stored.StarredAt)

	require.NoError(t, f.svc.SetStarred(ctx, a.ID, false))
	stored, err = f.store.GetArticle(ctx, a.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.StarredAt)

	assert.Contains(t, f.events, events.Event{Type: events.ArticleRefreshed, ID: a.ID})
	assert.ErrorIs(t, f.svc.SetRead(ctx, uuid.New(), true), apperr.ErrNotFound)
}
