package namecheck

import (
	"context"
	"log/slog"
	"strings"

	"github.com/DjordjeVuckovic/planet-sync/internal/domain"
	"github.com/DjordjeVuckovic/planet-sync/internal/events"
	"github.com/DjordjeVuckovic/planet-sync/internal/fetch"
	"github.com/DjordjeVuckovic/planet-sync/internal/storage"
	"github.com/google/uuid"
)

const (
	DefaultLocalGateway = "127.0.0.1:18181"
	DefaultFeedPath     = "feed.json"
	ipfsPrefix          = "/ipfs/"
)

// NameResolver resolves ENS and DNSLink names.
type NameResolver interface {
	// Resolve returns the content path the name points at, e.g. "/ipfs/bafy...".
	Resolve(ctx context.Context, name string) (string, error)
	// Avatar returns nil when the name has no avatar.
	Avatar(ctx context.Context, name string) ([]byte, error)
}

type AvatarUpdater interface {
	UpdateAvatar(ctx context.Context, planetID uuid.UUID, image []byte) error
}

type Config struct {
	LocalGateway string
	FeedPath     string
}

// Checker refreshes name-resolved planets: their current CID and avatar.
type Checker struct {
	resolver NameResolver
	planets  storage.PlanetRegistry
	prober   fetch.Fetcher
	avatars  AvatarUpdater
	events   events.Publisher
	config   Config
}

type Option func(*Checker)

func WithAvatarUpdater(a AvatarUpdater) Option {
	return func(c *Checker) {
		c.avatars = a
	}
}

func WithEvents(e events.Publisher) Option {
	return func(c *Checker) {
		c.events = e
	}
}

func WithConfig(cfg Config) Option {
	return func(c *Checker) {
		if cfg.LocalGateway != "" {
			c.config.LocalGateway = cfg.LocalGateway
		}
		if cfg.FeedPath != "" {
			c.config.FeedPath = strings.TrimPrefix(cfg.FeedPath, "/")
		}
	}
}

func NewChecker(resolver NameResolver, planets storage.PlanetRegistry, prober fetch.Fetcher, opts ...Option) *Checker {
	c := &Checker{
		resolver: resolver,
		planets:  planets,
		prober:   prober,
		events:   events.Discard,
		config: Config{
			LocalGateway: DefaultLocalGateway,
			FeedPath:     DefaultFeedPath,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check resolves the planet's name and, when its content is reachable through the local
// gateway, returns an ingest follow-up for the feed under that content. Every failure
// is logged and never stops the avatar lookup.
func (c *Checker) Check(ctx context.Context, planet *domain.Planet) *domain.FollowUp {
	if planet == nil || planet.ENS == nil {
		return nil
	}

	followUp := c.checkContent(ctx, planet)
	c.checkAvatar(ctx, planet)
	return followUp
}

func (c *Checker) checkContent(ctx context.Context, planet *domain.Planet) *domain.FollowUp {
	name := planet.ENS.Name

	resolved, err := c.resolver.Resolve(ctx, name)
	if err != nil {
		slog.Warn("Name resolution failed", "planet_id", planet.ID, "name", name, "error", err)
		return nil
	}
	resolved = strings.TrimSpace(resolved)
	if !strings.HasPrefix(resolved, ipfsPrefix) {
		slog.Info("Name does not point at IPFS content", "planet_id", planet.ID, "name", name, "value", resolved)
		return nil
	}
	cid := strings.Trim(strings.TrimPrefix(resolved, ipfsPrefix), "/")
	if cid == "" {
		return nil
	}

	if cid != planet.ENS.CID {
		planet.ENS.CID = cid
		if err := c.planets.UpdateContentAddress(ctx, planet.ID, cid); err != nil {
			slog.Error("Failed to save resolved CID", "planet_id", planet.ID, "cid", cid, "error", err)
		} else {
			c.events.Publish(events.Event{Type: events.DatabaseChanged, ID: planet.ID})
		}
	}

	root := "http://" + c.config.LocalGateway + ipfsPrefix + cid + "/"
	if _, status, err := c.prober.Get(ctx, root); err != nil {
		slog.Warn("Content not reachable through local gateway", "planet_id", planet.ID, "url", root, "status", status, "error", err)
		return nil
	}

	return &domain.FollowUp{
		Kind:     domain.FollowUpIngest,
		PlanetID: planet.ID,
		FeedURL:  root + c.config.FeedPath,
	}
}

func (c *Checker) checkAvatar(ctx context.Context, planet *domain.Planet) {
	if c.avatars == nil {
		return
	}
	image, err := c.resolver.Avatar(ctx, planet.ENS.Name)
	if err != nil {
		slog.Warn("Avatar resolution failed", "planet_id", planet.ID, "name", planet.ENS.Name, "error", err)
		return
	}
	if len(image) == 0 {
		return
	}
	if err := c.avatars.UpdateAvatar(ctx, planet.ID, image); err != nil {
		slog.Warn("Avatar update failed", "planet_id", planet.ID, "error", err)
		return
	}
	c.events.Publish(events.Event{Type: events.AvatarUpdated, ID: planet.ID})
}
