package publish

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/DjordjeVuckovic/planet-sync/internal/apperr"
	"github.com/DjordjeVuckovic/planet-sync/internal/domain"
	"github.com/DjordjeVuckovic/planet-sync/internal/events"
	"github.com/DjordjeVuckovic/planet-sync/internal/fetch"
	"github.com/DjordjeVuckovic/planet-sync/internal/link"
	"github.com/DjordjeVuckovic/planet-sync/internal/metrics"
	"github.com/DjordjeVuckovic/planet-sync/internal/storage"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Renderer writes one article of an owned planet into the planet's publish directory.
type Renderer interface {
	Render(ctx context.Context, planet *domain.Planet, article domain.Article, dir string) error
}

// IndexRenderer is implemented by renderers that also produce planet-level pages.
type IndexRenderer interface {
	RenderIndex(ctx context.Context, planet *domain.Planet, articles []domain.Article, dir string) error
}

// ContentPublisher adds a directory to content-addressed storage and returns its root CID.
type ContentPublisher interface {
	Add(ctx context.Context, dir string) (string, error)
}

// PointerPublisher points the named key's mutable record at cid.
type PointerPublisher interface {
	PublishPointer(ctx context.Context, keyName, cid string) (string, error)
}

type Result struct {
	PlanetID uuid.UUID
	// Skipped is set for planets this node does not own.
	Skipped bool
	CID     string
	Pointer string
	// Propagation is nil when Skipped is set.
	Propagation *Propagation
}

// Propagation tracks the background gateway probes of one publish.
type Propagation struct {
	done    chan struct{}
	mu      sync.Mutex
	results map[domain.Gateway]error
}

// Wait blocks until every probe finished and returns the outcome per gateway.
func (p *Propagation) Wait() map[domain.Gateway]error {
	<-p.done
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[domain.Gateway]error, len(p.results))
	for gw, err := range p.results {
		out[gw] = err
	}
	return out
}

func (p *Propagation) set(gw domain.Gateway, err error) {
	p.mu.Lock()
	p.results[gw] = err
	p.mu.Unlock()
}

type PipelineConfig struct {
	Name string
	// Root holds one publish directory per planet.
	Root         string
	ProbeTimeout time.Duration
}

type Pipeline struct {
	planets  storage.PlanetRegistry
	articles storage.ArticleStore
	renderer Renderer
	content  ContentPublisher
	pointer  PointerPublisher
	prober   fetch.Fetcher
	events   events.Publisher
	now      func() time.Time
	config   *PipelineConfig
}

type PipelineOption func(pipeline *Pipeline)

func WithEvents(e events.Publisher) PipelineOption {
	return func(pipeline *Pipeline) {
		pipeline.events = e
	}
}

func WithClock(now func() time.Time) PipelineOption {
	return func(pipeline *Pipeline) {
		pipeline.now = now
	}
}

func WithConfig(config *PipelineConfig) PipelineOption {
	return func(pipeline *Pipeline) {
		pipeline.config = config
	}
}

func NewPipeline(
	planets storage.PlanetRegistry,
	articles storage.ArticleStore,
	renderer Renderer,
	content ContentPublisher,
	pointer PointerPublisher,
	prober fetch.Fetcher,
	opts ...PipelineOption,
) *Pipeline {
	p := &Pipeline{
		planets:  planets,
		articles: articles,
		renderer: renderer,
		content:  content,
		pointer:  pointer,
		prober:   prober,
		events:   events.Discard,
		now:      func() time.Time { return time.Now().UTC() },
		config: &PipelineConfig{
			Name:         "planet-publish",
			Root:         filepath.Join(os.TempDir(), "planet-sync"),
			ProbeTimeout: time.Minute,
		},
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Dir is the publish directory of a planet.
func (p *Pipeline) Dir(planetID uuid.UUID) string {
	return filepath.Join(p.config.Root, planetID.String())
}

// Publish renders, adds and points an owned planet at its new content. The pointer update
// is the commit point: a failure before it leaves the stored pointer untouched, and
// gateway probes started after it never undo it.
func (p *Pipeline) Publish(ctx context.Context, planetID uuid.UUID) (*Result, error) {
	start := time.Now()

	planet, err := p.planets.GetPlanet(ctx, planetID)
	if err != nil {
		return nil, err
	}
	if !planet.IsOwned() {
		slog.Debug("Skipping publish of followed planet", "pipeline", p.config.Name, "planet_id", planetID)
		return &Result{PlanetID: planetID, Skipped: true}, nil
	}

	slog.Info("Starting publish", "pipeline", p.config.Name, "planet_id", planetID)

	articles, err := p.articles.ListArticles(ctx, storage.ArticleFilter{PlanetID: &planetID})
	if err != nil {
		return nil, err
	}

	dir := p.Dir(planetID)
	err = p.render(ctx, planet, articles, dir)
	metrics.RecordPublishStage(string(apperr.StageRender), err)
	if err != nil {
		return nil, p.fail(planetID, apperr.StageRender, err)
	}

	cid, err := p.content.Add(ctx, dir)
	metrics.RecordPublishStage(string(apperr.StagePublish), err)
	if err != nil {
		return nil, p.fail(planetID, apperr.StagePublish, err)
	}

	pointer, err := p.pointer.PublishPointer(ctx, planet.Owned.KeyName, cid)
	if err == nil {
		err = p.planets.UpdatePointer(ctx, planetID, pointer, cid, p.now())
	}
	metrics.RecordPublishStage(string(apperr.StagePointer), err)
	if err != nil {
		return nil, p.fail(planetID, apperr.StagePointer, err)
	}

	p.events.Publish(events.Event{Type: events.DatabaseChanged, ID: planetID})

	planet.Owned.IPNS = pointer
	planet.Owned.LastPublishedCID = cid

	var newest *domain.Article
	if len(articles) > 0 {
		newest = &articles[0]
	}

	slog.Info("Publish completed",
		"pipeline", p.config.Name,
		"planet_id", planetID,
		"cid", cid,
		"pointer", pointer,
		"articles", len(articles),
		"duration", time.Since(start),
	)

	return &Result{
		PlanetID:    planetID,
		CID:         cid,
		Pointer:     pointer,
		Propagation: p.propagate(ctx, planet, newest),
	}, nil
}

func (p *Pipeline) render(ctx context.Context, planet *domain.Planet, articles []domain.Article, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create publish dir: %w", err)
	}
	for _, article := range articles {
		if err := p.renderer.Render(ctx, planet, article, dir); err != nil {
			return err
		}
	}
	if ir, ok := p.renderer.(IndexRenderer); ok {
		return ir.RenderIndex(ctx, planet, articles, dir)
	}
	return nil
}

func (p *Pipeline) fail(planetID uuid.UUID, stage apperr.PublishStage, err error) error {
	slog.Error("Publish failed", "pipeline", p.config.Name, "planet_id", planetID, "stage", stage, "error", err)
	return apperr.NewPublishStage(stage, err)
}

// propagate probes every public gateway once. Probes outlive the caller's context
// and a failing gateway does not stop the others.
func (p *Pipeline) propagate(ctx context.Context, planet *domain.Planet, newest *domain.Article) *Propagation {
	target := newest
	if target == nil {
		target = &domain.Article{Link: "/"}
	}

	prop := &Propagation{
		done:    make(chan struct{}),
		results: make(map[domain.Gateway]error, len(domain.Gateways())),
	}

	probeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.config.ProbeTimeout)
	var g errgroup.Group
	for _, gw := range domain.Gateways() {
		url := link.Resolve(planet, target, gw)
		g.Go(func() error {
			_, _, err := p.prober.Get(probeCtx, url)
			metrics.RecordProbe(string(gw), err)
			if err != nil {
				slog.Warn("Gateway probe failed", "pipeline", p.config.Name, "gateway", gw, "url", url, "error", err)
			} else {
				slog.Debug("Gateway probe succeeded", "pipeline", p.config.Name, "gateway", gw, "url", url)
			}
			prop.set(gw, err)
			return nil
		})
	}

	go func() {
		defer cancel()
		_ = g.Wait()
		close(prop.done)
	}()

	return prop
}
