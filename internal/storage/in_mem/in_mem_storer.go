package in_mem

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/DjordjeVuckovic/planet-sync/internal/apperr"
	"github.com/DjordjeVuckovic/planet-sync/internal/domain"
	"github.com/DjordjeVuckovic/planet-sync/internal/storage"
	"github.com/google/uuid"
)

type linkKey struct {
	planetID uuid.UUID
	link     string
}

// InMemStorer keeps planets and articles in process memory. A single lock makes every
// batch atomic and every read consistent with previous writes.
type InMemStorer struct {
	storageLock sync.RWMutex
	articles    map[uuid.UUID]domain.Article
	byLink      map[linkKey]uuid.UUID
	planets     map[uuid.UUID]domain.Planet
}

var _ storage.Store = (*InMemStorer)(nil)

func NewInMemStorer() *InMemStorer {
	return &InMemStorer{
		articles: make(map[uuid.UUID]domain.Article),
		byLink:   make(map[linkKey]uuid.UUID),
		planets:  make(map[uuid.UUID]domain.Planet),
	}
}

func (s *InMemStorer) Close() {}

func (s *InMemStorer) ArticleExists(_ context.Context, id uuid.UUID) (bool, error) {
	s.storageLock.RLock()
	defer s.storageLock.RUnlock()

	_, ok := s.articles[id]
	return ok, nil
}

func (s *InMemStorer) GetArticle(_ context.Context, id uuid.UUID) (*domain.Article, error) {
	s.storageLock.RLock()
	defer s.storageLock.RUnlock()

	a, ok := s.articles[id]
	if !ok {
		return nil, fmt.Errorf("article %s: %w", id, apperr.ErrNotFound)
	}
	return copyArticle(a), nil
}

func (s *InMemStorer) FindArticleByLink(_ context.Context, planetID uuid.UUID, link string) (*domain.Article, error) {
	s.storageLock.RLock()
	defer s.storageLock.RUnlock()

	id, ok := s.byLink[linkKey{planetID: planetID, link: link}]
	if !ok {
		return nil, fmt.Errorf("article %q on planet %s: %w", link, planetID, apperr.ErrNotFound)
	}
	return copyArticle(s.articles[id]), nil
}

func (s *InMemStorer) ListArticles(_ context.Context, filter storage.ArticleFilter) ([]domain.Article, error) {
	s.storageLock.RLock()
	defer s.storageLock.RUnlock()

	result := make([]domain.Article, 0)
	for _, a := range s.articles {
		if filter.PlanetID != nil && a.PlanetID != *filter.PlanetID {
			continue
		}
		if filter.UnreadOnly && a.Read {
			continue
		}
		if filter.StarredOnly && a.StarredAt == nil {
			continue
		}
		result = append(result, *copyArticle(a))
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID.String() < result[j].ID.String()
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []domain.Article{}, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (s *InMemStorer) UpsertArticles(_ context.Context, articles []domain.Article) error {
	s.storageLock.Lock()
	defer s.storageLock.Unlock()

	// Validate the whole batch first so a bad record leaves the store untouched.
	pending := make(map[linkKey]uuid.UUID, len(articles))
	for i, a := range articles {
		if a.ID == uuid.Nil {
			return apperr.NewPersistence("upsert articles", fmt.Errorf("article %d has no id", i))
		}
		if _, ok := s.planets[a.PlanetID]; !ok {
			return apperr.NewPersistence("upsert articles", fmt.Errorf("article %s references unknown planet %s", a.ID, a.PlanetID))
		}
		key := linkKey{planetID: a.PlanetID, link: a.Link}
		if owner, ok := pending[key]; ok && owner != a.ID {
			return apperr.NewPersistence("upsert articles", fmt.Errorf("duplicate link %q in batch", a.Link))
		}
		if owner, ok := s.byLink[key]; ok && owner != a.ID {
			return apperr.NewPersistence("upsert articles", fmt.Errorf("link %q already belongs to article %s", a.Link, owner))
		}
		pending[key] = a.ID
	}

	for _, a := range articles {
		if previous, ok := s.articles[a.ID]; ok {
			delete(s.byLink, linkKey{planetID: previous.PlanetID, link: previous.Link})
		}
		s.articles[a.ID] = *copyArticle(a)
		s.byLink[linkKey{planetID: a.PlanetID, link: a.Link}] = a.ID
	}

	slog.Debug("Upserted articles into in-memory storage", "count", len(articles))
	return nil
}

func (s *InMemStorer) DeleteArticles(_ context.Context, ids []uuid.UUID) error {
	s.storageLock.Lock()
	defer s.storageLock.Unlock()

	for _, id := range ids {
		s.deleteArticleLocked(id)
	}
	return nil
}

func (s *InMemStorer) DeleteArticlesByPlanet(_ context.Context, planetID uuid.UUID) (int, error) {
	s.storageLock.Lock()
	defer s.storageLock.Unlock()

	deleted := 0
	for id, a := range s.articles {
		if a.PlanetID == planetID {
			s.deleteArticleLocked(id)
			deleted++
		}
	}
	return deleted, nil
}

func (s *InMemStorer) deleteArticleLocked(id uuid.UUID) {
	a, ok := s.articles[id]
	if !ok {
		return
	}
	delete(s.byLink, linkKey{planetID: a.PlanetID, link: a.Link})
	delete(s.articles, id)
}

func (s *InMemStorer) SetRead(_ context.Context, id uuid.UUID, read bool) error {
	s.storageLock.Lock()
	defer s.storageLock.Unlock()

	a, ok := s.articles[id]
	if !ok {
		return fmt.Errorf("article %s: %w", id, apperr.ErrNotFound)
	}
	a.Read = read
	s.articles[id] = a
	return nil
}

func (s *InMemStorer) SetStarred(_ context.Context, id uuid.UUID, starredAt *time.Time) error {
	s.storageLock.Lock()
	defer s.storageLock.Unlock()

	a, ok := s.articles[id]
	if !ok {
		return fmt.Errorf("article %s: %w", id, apperr.ErrNotFound)
	}
	a.StarredAt = copyTime(starredAt)
	s.articles[id] = a
	return nil
}

func (s *InMemStorer) CreatePlanet(_ context.Context, planet *domain.Planet) error {
	if err := planet.Validate(); err != nil {
		return apperr.NewValidationWrap("invalid planet", err)
	}

	s.storageLock.Lock()
	defer s.storageLock.Unlock()

	if _, ok := s.planets[planet.ID]; ok {
		return apperr.NewPersistence("create planet", fmt.Errorf("planet %s already exists", planet.ID))
	}
	s.planets[planet.ID] = *copyPlanet(*planet)
	return nil
}

func (s *InMemStorer) GetPlanet(_ context.Context, id uuid.UUID) (*domain.Planet, error) {
	s.storageLock.RLock()
	defer s.storageLock.RUnlock()

	p, ok := s.planets[id]
	if !ok {
		return nil, fmt.Errorf("planet %s: %w", id, apperr.ErrNotFound)
	}
	return copyPlanet(p), nil
}

func (s *InMemStorer) ListPlanets(_ context.Context) ([]domain.Planet, error) {
	s.storageLock.RLock()
	defer s.storageLock.RUnlock()

	result := make([]domain.Planet, 0, len(s.planets))
	for _, p := range s.planets {
		result = append(result, *copyPlanet(p))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (s *InMemStorer) UpdateMetadata(_ context.Context, id uuid.UUID, name, about string) (bool, error) {
	s.storageLock.Lock()
	defer s.storageLock.Unlock()

	p, ok := s.planets[id]
	if !ok {
		return false, fmt.Errorf("planet %s: %w", id, apperr.ErrNotFound)
	}
	if !p.UpdateMetadata(name, about) {
		return false, nil
	}
	p.UpdatedAt = time.Now().UTC()
	s.planets[id] = p
	return true, nil
}

func (s *InMemStorer) UpdateContentAddress(_ context.Context, id uuid.UUID, cid string) error {
	s.storageLock.Lock()
	defer s.storageLock.Unlock()

	p, ok := s.planets[id]
	if !ok {
		return fmt.Errorf("planet %s: %w", id, apperr.ErrNotFound)
	}
	if p.ENS == nil {
		return apperr.NewValidation(fmt.Sprintf("planet %s is not name-resolved", id))
	}

	ens := *p.ENS
	ens.CID = cid
	p.ENS = &ens
	p.UpdatedAt = time.Now().UTC()
	s.planets[id] = p
	return nil
}

func (s *InMemStorer) UpdateChecksum(_ context.Context, id uuid.UUID, checksum string) error {
	s.storageLock.Lock()
	defer s.storageLock.Unlock()

	p, ok := s.planets[id]
	if !ok {
		return fmt.Errorf("planet %s: %w", id, apperr.ErrNotFound)
	}
	if p.Feed == nil {
		return apperr.NewValidation(fmt.Sprintf("planet %s is not a feed planet", id))
	}

	feed := *p.Feed
	feed.Checksum = checksum
	p.Feed = &feed
	s.planets[id] = p
	return nil
}

func (s *InMemStorer) UpdatePointer(_ context.Context, id uuid.UUID, pointer, cid string, at time.Time) error {
	s.storageLock.Lock()
	defer s.storageLock.Unlock()

	p, ok := s.planets[id]
	if !ok {
		return fmt.Errorf("planet %s: %w", id, apperr.ErrNotFound)
	}
	if p.Owned == nil {
		return fmt.Errorf("planet %s: %w", id, apperr.ErrNotOwned)
	}

	owned := *p.Owned
	owned.IPNS = pointer
	owned.LastPublishedCID = cid
	owned.LastPublishedAt = &at
	p.Owned = &owned
	p.UpdatedAt = at
	s.planets[id] = p
	return nil
}

func (s *InMemStorer) DeletePlanet(_ context.Context, id uuid.UUID) error {
	s.storageLock.Lock()
	defer s.storageLock.Unlock()

	if _, ok := s.planets[id]; !ok {
		return fmt.Errorf("planet %s: %w", id, apperr.ErrNotFound)
	}
	delete(s.planets, id)
	return nil
}

func copyArticle(a domain.Article) *domain.Article {
	if a.Content != nil {
		c := *a.Content
		a.Content = &c
	}
	a.StarredAt = copyTime(a.StarredAt)
	return &a
}

func copyPlanet(p domain.Planet) *domain.Planet {
	if p.Owned != nil {
		o := *p.Owned
		o.LastPublishedAt = copyTime(o.LastPublishedAt)
		p.Owned = &o
	}
	if p.ENS != nil {
		e := *p.ENS
		p.ENS = &e
	}
	if p.Feed != nil {
		f := *p.Feed
		p.Feed = &f
	}
	return &p
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
