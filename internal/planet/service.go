package planet

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/DjordjeVuckovic/planet-sync/internal/apperr"
	"github.com/DjordjeVuckovic/planet-sync/internal/domain"
	"github.com/DjordjeVuckovic/planet-sync/internal/events"
	"github.com/DjordjeVuckovic/planet-sync/internal/storage"
	"github.com/google/uuid"
)

// KeyManager creates and removes the IPNS signing keys of owned planets.
type KeyManager interface {
	GenerateKey(ctx context.Context, keyName string) (string, error)
	RemoveKey(ctx context.Context, keyName string) error
}

// Service authors owned planets and manages followed ones. Mutations of owned planets
// return a publish follow-up instead of publishing themselves.
type Service struct {
	store       storage.Store
	indexer     storage.Indexer
	keys        KeyManager
	avatars     *AvatarStore
	events      events.Publisher
	publishRoot string
	now         func() time.Time
}

type Option func(*Service)

func WithIndexer(i storage.Indexer) Option {
	return func(s *Service) {
		s.indexer = i
	}
}

func WithAvatars(a *AvatarStore) Option {
	return func(s *Service) {
		s.avatars = a
	}
}

func WithEvents(e events.Publisher) Option {
	return func(s *Service) {
		s.events = e
	}
}

// WithPublishRoot must match the root the publish pipeline renders into.
func WithPublishRoot(root string) Option {
	return func(s *Service) {
		s.publishRoot = root
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(store storage.Store, keys KeyManager, opts ...Option) *Service {
	s := &Service{
		store:   store,
		indexer: storage.NoopIndexer,
		keys:    keys,
		events:  events.Discard,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) GetPlanet(ctx context.Context, id uuid.UUID) (*domain.Planet, error) {
	return s.store.GetPlanet(ctx, id)
}

func (s *Service) ListPlanets(ctx context.Context) ([]domain.Planet, error) {
	return s.store.ListPlanets(ctx)
}

func (s *Service) GetArticle(ctx context.Context, id uuid.UUID) (*domain.Article, error) {
	return s.store.GetArticle(ctx, id)
}

func (s *Service) ListArticles(ctx context.Context, filter storage.ArticleFilter) ([]domain.Article, error) {
	return s.store.ListArticles(ctx, filter)
}

// CreateOwnedPlanet generates a signing key and registers a planet published under it.
func (s *Service) CreateOwnedPlanet(ctx context.Context, name, about string) (*domain.Planet, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.NewValidation("planet name is required")
	}
	if s.keys == nil {
		return nil, apperr.NewValidation("owned planets are not available without an IPFS node")
	}

	keyName := "planet-" + uuid.NewString()
	keyID, err := s.keys.GenerateKey(ctx, keyName)
	if err != nil {
		return nil, fmt.Errorf("generate planet key: %w", err)
	}

	p, err := domain.NewOwnedPlanet(name, about, keyName, keyID)
	if err != nil {
		return nil, apperr.NewValidationWrap("invalid planet", err)
	}
	if err := s.store.CreatePlanet(ctx, p); err != nil {
		if rmErr := s.keys.RemoveKey(ctx, keyName); rmErr != nil {
			slog.Warn("Failed to remove key of unsaved planet", "key", keyName, "error", rmErr)
		}
		return nil, err
	}

	slog.Info("Owned planet created", "planet_id", p.ID, "key", keyName)
	s.events.Publish(events.Event{Type: events.DatabaseChanged, ID: p.ID})
	return p, nil
}

// FollowPlanet registers a followed planet from an ENS name, an http(s) feed URL
// or a DNSLink domain.
func (s *Service) FollowPlanet(ctx context.Context, target string) (*domain.Planet, error) {
	p, err := planetFromTarget(target)
	if err != nil {
		return nil, apperr.NewValidationWrap("cannot follow "+target, err)
	}

	existing, err := s.findFollowed(ctx, followKey(p))
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	if err := s.store.CreatePlanet(ctx, p); err != nil {
		return nil, err
	}
	slog.Info("Planet followed", "planet_id", p.ID, "scheme", p.Scheme, "target", target)
	s.events.Publish(events.Event{Type: events.DatabaseChanged, ID: p.ID})
	return p, nil
}

func planetFromTarget(target string) (*domain.Planet, error) {
	target = strings.TrimSpace(target)
	lower := strings.ToLower(target)
	switch {
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		return domain.NewHTTPFeedPlanet("", target)
	case strings.HasSuffix(lower, ".eth"):
		return domain.NewENSPlanet(target)
	default:
		return domain.NewDNSLinkPlanet(target)
	}
}

func followKey(p *domain.Planet) string {
	switch {
	case p.Feed != nil:
		return p.Feed.FeedURL
	case p.ENS != nil:
		return p.ENS.Name
	}
	return ""
}

func (s *Service) findFollowed(ctx context.Context, key string) (*domain.Planet, error) {
	if key == "" {
		return nil, nil
	}
	planets, err := s.store.ListPlanets(ctx)
	if err != nil {
		return nil, err
	}
	for i := range planets {
		if !planets[i].IsOwned() && followKey(&planets[i]) == key {
			return &planets[i], nil
		}
	}
	return nil, nil
}

// ApplySeed follows every planet in the list that is not followed yet.
func (s *Service) ApplySeed(ctx context.Context, list *PlanetList) (int, error) {
	created := 0
	for _, seed := range list.Planets {
		existing, err := s.findFollowed(ctx, seed.key())
		if err != nil {
			return created, err
		}
		if existing != nil {
			continue
		}

		p, err := seed.toPlanet()
		if err != nil {
			return created, apperr.NewValidationWrap("invalid seed planet", err)
		}
		if err := s.store.CreatePlanet(ctx, p); err != nil {
			return created, err
		}
		created++
	}
	if created > 0 {
		slog.Info("Seed planets applied", "seed", list.Metadata.Name, "created", created, "total", len(list.Planets))
	}
	return created, nil
}

// UpdatePlanet applies non-empty name and about values. Only those two columns are
// written, so a concurrent sync of the same planet keeps its pointer and CID.
func (s *Service) UpdatePlanet(ctx context.Context, id uuid.UUID, name, about string) (*domain.Planet, *domain.FollowUp, error) {
	changed, err := s.store.UpdateMetadata(ctx, id, strings.TrimSpace(name), strings.TrimSpace(about))
	if err != nil {
		return nil, nil, err
	}
	p, err := s.store.GetPlanet(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if !changed {
		return p, nil, nil
	}
	s.events.Publish(events.Event{Type: events.DatabaseChanged, ID: p.ID})
	return p, publishFollowUp(p), nil
}

// DeletePlanet removes a planet with its articles. Publish output, the avatar, the
// search mirror and the signing key are cleaned up best effort after the store commit.
func (s *Service) DeletePlanet(ctx context.Context, id uuid.UUID) error {
	p, err := s.store.GetPlanet(ctx, id)
	if err != nil {
		return err
	}

	removed, err := s.store.DeleteArticlesByPlanet(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeletePlanet(ctx, id); err != nil {
		return err
	}

	if s.publishRoot != "" {
		if err := os.RemoveAll(filepath.Join(s.publishRoot, id.String())); err != nil {
			slog.Warn("Failed to remove publish directory", "planet_id", id, "error", err)
		}
	}
	if s.avatars != nil {
		if err := s.avatars.Remove(id); err != nil {
			slog.Warn("Failed to remove avatar", "planet_id", id, "error", err)
		}
	}
	if err := s.indexer.DeletePlanetArticles(ctx, id); err != nil {
		slog.Error("Failed to remove planet from search index", "planet_id", id, "error", err)
	}
	if p.IsOwned() && s.keys != nil {
		if err := s.keys.RemoveKey(ctx, p.Owned.KeyName); err != nil {
			slog.Warn("Failed to remove planet key", "planet_id", id, "key", p.Owned.KeyName, "error", err)
		}
	}

	slog.Info("Planet deleted", "planet_id", id, "articles", removed)
	s.events.Publish(events.Event{Type: events.DatabaseChanged, ID: id})
	return nil
}

// CreateArticle authors a new article on an owned planet.
func (s *Service) CreateArticle(ctx context.Context, planetID uuid.UUID, title, content string) (*domain.Article, *domain.FollowUp, error) {
	p, err := s.ownedPlanet(ctx, planetID)
	if err != nil {
		return nil, nil, err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, nil, apperr.NewValidation("article title is required")
	}

	a, err := domain.NewOwnedArticle(p, uuid.New(), title, content, s.now())
	if err != nil {
		return nil, nil, apperr.NewValidationWrap("invalid article", err)
	}
	if err := s.commit(ctx, p, *a); err != nil {
		return nil, nil, err
	}
	return a, publishFollowUp(p), nil
}

// UpdateArticle rewrites title and content of an owned article in place.
func (s *Service) UpdateArticle(ctx context.Context, id uuid.UUID, title, content string) (*domain.Article, *domain.FollowUp, error) {
	a, err := s.store.GetArticle(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	p, err := s.ownedPlanet(ctx, a.PlanetID)
	if err != nil {
		return nil, nil, err
	}

	if title = strings.TrimSpace(title); title != "" {
		a.Title = title
	}
	a.Content = &content
	a.Normalize(p)

	if err := s.commit(ctx, p, *a); err != nil {
		return nil, nil, err
	}
	return a, publishFollowUp(p), nil
}

func (s *Service) DeleteArticle(ctx context.Context, id uuid.UUID) (*domain.FollowUp, error) {
	a, err := s.store.GetArticle(ctx, id)
	if err != nil {
		return nil, err
	}
	p, err := s.ownedPlanet(ctx, a.PlanetID)
	if err != nil {
		return nil, err
	}
	if err := s.store.DeleteArticles(ctx, []uuid.UUID{id}); err != nil {
		return nil, err
	}
	if s.publishRoot != "" {
		if err := os.RemoveAll(filepath.Join(s.publishRoot, p.ID.String(), id.String())); err != nil {
			slog.Warn("Failed to remove rendered article", "article_id", id, "error", err)
		}
	}
	s.events.Publish(events.Event{Type: events.DatabaseChanged, ID: p.ID})
	return publishFollowUp(p), nil
}

func (s *Service) SetRead(ctx context.Context, id uuid.UUID, read bool) error {
	if err := s.store.SetRead(ctx, id, read); err != nil {
		return err
	}
	s.events.Publish(events.Event{Type: events.ArticleRefreshed, ID: id})
	return nil
}

func (s *Service) SetStarred(ctx context.Context, id uuid.UUID, starred bool) error {
	var at *time.Time
	if starred {
		now := s.now()
		at = &now
	}
	if err := s.store.SetStarred(ctx, id, at); err != nil {
		return err
	}
	s.events.Publish(events.Event{Type: events.ArticleRefreshed, ID: id})
	return nil
}

func (s *Service) ownedPlanet(ctx context.Context, id uuid.UUID) (*domain.Planet, error) {
	p, err := s.store.GetPlanet(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsOwned() {
		return nil, fmt.Errorf("planet %s: %w", id, apperr.ErrNotOwned)
	}
	return p, nil
}

func (s *Service) commit(ctx context.Context, p *domain.Planet, a domain.Article) error {
	if err := s.store.UpsertArticles(ctx, []domain.Article{a}); err != nil {
		return err
	}
	if err := s.indexer.IndexArticles(ctx, p, []domain.Article{a}); err != nil {
		slog.Error("Failed to mirror article into search index", "article_id", a.ID, "error", err)
	}
	s.events.Publish(events.Event{Type: events.DatabaseChanged, ID: p.ID})
	return nil
}

func publishFollowUp(p *domain.Planet) *domain.FollowUp {
	if !p.IsOwned() {
		return nil
	}
	return &domain.FollowUp{Kind: domain.FollowUpPublish, PlanetID: p.ID}
}
