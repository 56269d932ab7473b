package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/DjordjeVuckovic/planet-sync/internal/apperr"
	"github.com/DjordjeVuckovic/planet-sync/internal/domain"
	"github.com/DjordjeVuckovic/planet-sync/internal/events"
	"github.com/DjordjeVuckovic/planet-sync/internal/feed"
	"github.com/DjordjeVuckovic/planet-sync/internal/fetch"
	"github.com/DjordjeVuckovic/planet-sync/internal/metrics"
	"github.com/DjordjeVuckovic/planet-sync/internal/storage"
	"github.com/google/uuid"
)

// AvatarUpdater receives avatar images discovered while ingesting a planet.
type AvatarUpdater interface {
	UpdateAvatar(ctx context.Context, planetID uuid.UUID, image []byte) error
}

// Result summarizes one ingest or refresh run.
type Result struct {
	PlanetID uuid.UUID
	// Fetched is the number of usable entries in the parsed document.
	Fetched int
	Created int
	Updated int
	// Existing entries matched an article already in the store and were left alone.
	Existing int
	// Skipped counts entries dropped for missing fields or unusable identity.
	Skipped int
	// Unchanged is set when the feed bytes match the last stored checksum.
	Unchanged bool
	FollowUp  *domain.FollowUp
}

type PipelineConfig struct {
	Name string
}

// Pipeline turns a planet's feed into stored articles.
type Pipeline struct {
	fetcher  fetch.Fetcher
	parser   *feed.Parser
	articles storage.ArticleStore
	planets  storage.PlanetRegistry
	indexer  storage.Indexer
	avatars  AvatarUpdater
	events   events.Publisher
	config   *PipelineConfig
}

type PipelineOption func(pipeline *Pipeline)

func WithParser(p *feed.Parser) PipelineOption {
	return func(pipeline *Pipeline) {
		pipeline.parser = p
	}
}

func WithIndexer(i storage.Indexer) PipelineOption {
	return func(pipeline *Pipeline) {
		pipeline.indexer = i
	}
}

func WithAvatarUpdater(a AvatarUpdater) PipelineOption {
	return func(pipeline *Pipeline) {
		pipeline.avatars = a
	}
}

func WithEvents(e events.Publisher) PipelineOption {
	return func(pipeline *Pipeline) {
		pipeline.events = e
	}
}

// WithConfig sets custom pipeline configuration
func WithConfig(config *PipelineConfig) PipelineOption {
	return func(pipeline *Pipeline) {
		pipeline.config = config
	}
}

func NewPipeline(f fetch.Fetcher, articles storage.ArticleStore, planets storage.PlanetRegistry, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		fetcher:  f,
		parser:   feed.NewParser(),
		articles: articles,
		planets:  planets,
		indexer:  storage.NoopIndexer,
		events:   events.Discard,
		config:   &PipelineConfig{Name: "feed-ingest"},
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Ingest merges a freshly fetched feed into the planet's articles. Entries already known
// by (link, planet) are never overwritten, so re-polling keeps read and star state.
// A fetch or parse failure returns before anything is written.
func (p *Pipeline) Ingest(ctx context.Context, planetID uuid.UUID, feedURL string) (*Result, error) {
	start := time.Now()
	result, err := p.ingest(ctx, planetID, feedURL)
	p.record(result, err, start)
	return result, err
}

func (p *Pipeline) ingest(ctx context.Context, planetID uuid.UUID, feedURL string) (*Result, error) {
	planet, err := p.planets.GetPlanet(ctx, planetID)
	if err != nil {
		return nil, err
	}
	feedURL = resolveFeedURL(planet, feedURL)
	if feedURL == "" {
		return nil, apperr.NewValidation("planet has no feed url")
	}

	slog.Info("Starting ingest", "pipeline", p.config.Name, "planet_id", planetID, "feed_url", feedURL)

	raw, err := p.fetch(ctx, feedURL)
	if err != nil {
		return nil, err
	}

	result := &Result{PlanetID: planetID}
	sum := ""

	if planet.Feed != nil {
		sum = checksum(raw)
		if sum == planet.Feed.Checksum {
			result.Unchanged = true
			slog.Info("Feed unchanged since last ingest", "pipeline", p.config.Name, "planet_id", planetID)
			return result, nil
		}
	}

	doc, err := p.parser.Parse(raw)
	if err != nil {
		slog.Warn("Feed could not be parsed", "pipeline", p.config.Name, "planet_id", planetID, "error", err)
		return nil, err
	}
	result.Fetched = len(doc.Entries)
	result.Skipped = doc.Skipped

	if doc.Dialect == feed.DialectJSON {
		planet.UpdateMetadata(doc.Title, doc.Description)
		p.updateAvatar(ctx, planet.ID, doc.IconURL)
	}

	batch, err := p.merge(ctx, planet, doc.Entries, result)
	if err != nil {
		return nil, err
	}

	if len(batch) > 0 {
		if err := p.articles.UpsertArticles(ctx, batch); err != nil {
			return nil, err
		}
	}

	// Articles are committed before the checksum so a failure here only costs a re-parse
	// next cycle; dedup keeps that re-run idempotent.
	planetChanged := false
	if doc.Dialect == feed.DialectJSON {
		changed, err := p.planets.UpdateMetadata(ctx, planet.ID, doc.Title, doc.Description)
		if err != nil {
			return nil, err
		}
		planetChanged = changed
	}
	if sum != "" {
		if err := p.planets.UpdateChecksum(ctx, planet.ID, sum); err != nil {
			return nil, err
		}
		planetChanged = true
	}

	p.afterCommit(ctx, planet, batch)
	if len(batch) > 0 || planetChanged {
		p.events.Publish(events.Event{Type: events.DatabaseChanged, ID: planet.ID})
	}
	if planet.IsOwned() && len(batch) > 0 {
		result.FollowUp = &domain.FollowUp{Kind: domain.FollowUpPublish, PlanetID: planet.ID}
	}

	slog.Info("Ingest completed",
		"pipeline", p.config.Name,
		"planet_id", planetID,
		"fetched", result.Fetched,
		"created", result.Created,
		"existing", result.Existing,
		"skipped", result.Skipped,
	)
	return result, nil
}

// merge selects the entries that are new to the store.
func (p *Pipeline) merge(ctx context.Context, planet *domain.Planet, entries []domain.FeedEntry, result *Result) ([]domain.Article, error) {
	owned := planet.IsOwned()
	seen := make(map[string]struct{}, len(entries))
	batch := make([]domain.Article, 0)

	for _, entry := range entries {
		if owned {
			// Owned planets keep article identity; the link is derived from it.
			id, err := uuid.Parse(entry.ID)
			if err != nil {
				result.Skipped++
				continue
			}
			if _, dup := seen[id.String()]; dup {
				result.Existing++
				continue
			}
			seen[id.String()] = struct{}{}

			exists, err := p.articles.ArticleExists(ctx, id)
			if err != nil {
				return nil, err
			}
			if exists {
				result.Existing++
				continue
			}
		} else {
			if _, dup := seen[entry.Link]; dup {
				result.Existing++
				continue
			}
			seen[entry.Link] = struct{}{}

			_, err := p.articles.FindArticleByLink(ctx, planet.ID, entry.Link)
			if err == nil {
				result.Existing++
				continue
			}
			if !errors.Is(err, apperr.ErrNotFound) {
				return nil, err
			}
		}

		article := domain.NewIngestedArticle(planet.ID, entry, owned)
		article.Normalize(planet)
		batch = append(batch, article)
		result.Created++
	}

	return batch, nil
}

// Refresh matches entries to articles by pre-known id and rewrites only title and link.
// Entries whose id is not a uuid are skipped; unknown ids are created with that id.
func (p *Pipeline) Refresh(ctx context.Context, planetID uuid.UUID, feedURL string) (*Result, error) {
	start := time.Now()
	result, err := p.refresh(ctx, planetID, feedURL)
	p.record(result, err, start)
	return result, err
}

func (p *Pipeline) refresh(ctx context.Context, planetID uuid.UUID, feedURL string) (*Result, error) {
	planet, err := p.planets.GetPlanet(ctx, planetID)
	if err != nil {
		return nil, err
	}
	feedURL = resolveFeedURL(planet, feedURL)
	if feedURL == "" {
		return nil, apperr.NewValidation("planet has no feed url")
	}

	raw, err := p.fetch(ctx, feedURL)
	if err != nil {
		return nil, err
	}
	doc, err := p.parser.Parse(raw)
	if err != nil {
		return nil, err
	}

	result := &Result{PlanetID: planetID, Fetched: len(doc.Entries), Skipped: doc.Skipped}
	batch := make([]domain.Article, 0)
	var refreshed []uuid.UUID
	seenIDs := make(map[uuid.UUID]struct{}, len(doc.Entries))
	seenLinks := make(map[string]struct{}, len(doc.Entries))

	for _, entry := range doc.Entries {
		id, err := uuid.Parse(entry.ID)
		if err != nil {
			result.Skipped++
			continue
		}
		if _, dup := seenIDs[id]; dup {
			result.Existing++
			continue
		}
		seenIDs[id] = struct{}{}

		var article domain.Article
		existing, err := p.articles.GetArticle(ctx, id)
		switch {
		case err == nil:
			if existing.PlanetID != planet.ID {
				result.Skipped++
				continue
			}
			article = *existing
			article.Title = entry.Title
			article.Link = entry.Link
		case errors.Is(err, apperr.ErrNotFound):
			article = domain.NewIngestedArticle(planet.ID, entry, true)
		default:
			return nil, err
		}
		article.Normalize(planet)

		// A link already stored under another id would fail the whole batch upsert.
		if _, dup := seenLinks[article.Link]; dup && article.Link != "" {
			result.Existing++
			continue
		}
		taken, err := p.linkTaken(ctx, planet.ID, article.Link, id)
		if err != nil {
			return nil, err
		}
		if taken {
			slog.Warn("Refreshed link already belongs to another article", "planet_id", planet.ID, "article_id", id, "link", article.Link)
			result.Existing++
			continue
		}
		seenLinks[article.Link] = struct{}{}

		batch = append(batch, article)
		if existing != nil {
			refreshed = append(refreshed, id)
			result.Updated++
		} else {
			result.Created++
		}
	}

	if len(batch) > 0 {
		if err := p.articles.UpsertArticles(ctx, batch); err != nil {
			return nil, err
		}
	}

	p.afterCommit(ctx, planet, batch)
	for _, id := range refreshed {
		p.events.Publish(events.Event{Type: events.ArticleRefreshed, ID: id})
	}
	if len(batch) > 0 {
		p.events.Publish(events.Event{Type: events.DatabaseChanged, ID: planet.ID})
		if planet.IsOwned() {
			result.FollowUp = &domain.FollowUp{Kind: domain.FollowUpPublish, PlanetID: planet.ID}
		}
	}

	slog.Info("Refresh completed",
		"pipeline", p.config.Name,
		"planet_id", planetID,
		"updated", result.Updated,
		"created", result.Created,
		"existing", result.Existing,
		"skipped", result.Skipped,
	)
	return result, nil
}

// linkTaken reports whether the planet already stores link under an id other than self.
func (p *Pipeline) linkTaken(ctx context.Context, planetID uuid.UUID, link string, self uuid.UUID) (bool, error) {
	if link == "" {
		return false, nil
	}
	other, err := p.articles.FindArticleByLink(ctx, planetID, link)
	if errors.Is(err, apperr.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return other.ID != self, nil
}

func (p *Pipeline) fetch(ctx context.Context, feedURL string) ([]byte, error) {
	raw, status, err := p.fetcher.Get(ctx, feedURL)
	if err != nil {
		slog.Warn("Feed fetch failed", "pipeline", p.config.Name, "url", feedURL, "status", status, "error", err)
		return nil, err
	}
	return raw, nil
}

// afterCommit mirrors a committed batch into the search index. The store is the
// source of truth, so mirror failures are only logged.
func (p *Pipeline) afterCommit(ctx context.Context, planet *domain.Planet, batch []domain.Article) {
	if len(batch) == 0 {
		return
	}
	if err := p.indexer.IndexArticles(ctx, planet, batch); err != nil {
		slog.Error("Failed to mirror articles into search index", "planet_id", planet.ID, "error", err)
	}
}

func (p *Pipeline) updateAvatar(ctx context.Context, planetID uuid.UUID, iconURL string) {
	if iconURL == "" || p.avatars == nil {
		return
	}
	image, _, err := p.fetcher.Get(ctx, iconURL)
	if err != nil {
		slog.Warn("Avatar fetch failed", "planet_id", planetID, "url", iconURL, "error", err)
		return
	}
	if err := p.avatars.UpdateAvatar(ctx, planetID, image); err != nil {
		slog.Warn("Avatar update failed", "planet_id", planetID, "error", err)
		return
	}
	p.events.Publish(events.Event{Type: events.AvatarUpdated, ID: planetID})
}

func (p *Pipeline) record(result *Result, err error, start time.Time) {
	seconds := time.Since(start).Seconds()
	switch {
	case err != nil:
		metrics.RecordIngest(metrics.ResultFailure, 0, 0, 0, seconds)
	case result.Unchanged:
		metrics.RecordIngest(metrics.ResultUnchanged, 0, 0, 0, seconds)
	default:
		metrics.RecordIngest(metrics.ResultSuccess, result.Created, result.Updated, result.Skipped, seconds)
	}
}

func resolveFeedURL(planet *domain.Planet, feedURL string) string {
	if feedURL != "" {
		return feedURL
	}
	if planet.Feed != nil {
		return planet.Feed.FeedURL
	}
	return ""
}

func checksum(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// String is used in logs and API responses.
func (r *Result) String() string {
	return fmt.Sprintf("fetched=%d created=%d updated=%d existing=%d skipped=%d unchanged=%t",
		r.Fetched, r.Created, r.Updated, r.Existing, r.Skipped, r.Unchanged)
}
