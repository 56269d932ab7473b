package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/DjordjeVuckovic/planet-sync/internal/events"
	"github.com/DjordjeVuckovic/planet-sync/internal/fetch"
	"github.com/DjordjeVuckovic/planet-sync/internal/ingest"
	"github.com/DjordjeVuckovic/planet-sync/internal/ipfs"
	"github.com/DjordjeVuckovic/planet-sync/internal/lease"
	"github.com/DjordjeVuckovic/planet-sync/internal/logging"
	"github.com/DjordjeVuckovic/planet-sync/internal/namecheck"
	"github.com/DjordjeVuckovic/planet-sync/internal/planet"
	"github.com/DjordjeVuckovic/planet-sync/internal/publish"
	"github.com/DjordjeVuckovic/planet-sync/internal/render"
	"github.com/DjordjeVuckovic/planet-sync/internal/router"
	"github.com/DjordjeVuckovic/planet-sync/internal/scheduler"
	"github.com/DjordjeVuckovic/planet-sync/internal/server"
	"github.com/DjordjeVuckovic/planet-sync/internal/storage/factory"
	pkgserver "github.com/DjordjeVuckovic/planet-sync/pkg/server"
	"github.com/labstack/echo/v4"
)

func main() {
	logging.Init(logging.LoadEnv())

	appSettings := NewAppConfig()
	cfg, err := appSettings.Load()
	if err != nil {
		slog.Error("Failed to load app configuration", "error", err)
		os.Exit(1)
	}

	sCfg, err := server.LoadConfig()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	store, storeHealth, err := factory.NewStore(context.Background(), &cfg.StorageConfig)
	if err != nil {
		slog.Error("Failed to create storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	locker, lockerHealth, closeLocker := newLocker(cfg.Lease)
	defer closeLocker()

	s := server.New(sCfg, pkgserver.AllHealthy(storeHealth, lockerHealth)).
		SetupMiddlewares().
		SetupErrorHandler().
		SetupHealthChecks("/health").
		SetupMetrics("/metrics")

	s.Echo.GET("/", func(c echo.Context) error {
		return c.String(200, "Planet Sync is running")
	})

	indexer, err := factory.NewIndexer(s.Context(), &cfg.StorageConfig)
	if err != nil {
		slog.Error("Failed to create search indexer", "error", err)
		os.Exit(1)
	}

	bus := events.NewBus()
	bus.Subscribe(func(e events.Event) {
		slog.Debug("Event", "type", e.Type, "id", e.ID)
	})

	fetcher := fetch.NewHTTPFetcher(
		fetch.WithTimeout(cfg.FetchTimeout),
		fetch.WithHostInterval(cfg.HostInterval),
	)
	kubo, err := ipfs.NewKubo(cfg.IPFS)
	if err != nil {
		slog.Error("Failed to create kubo client", "api", cfg.IPFS.APIURL, "error", err)
		os.Exit(1)
	}
	avatars := planet.NewAvatarStore(cfg.AvatarRoot)

	ingestPipeline := ingest.NewPipeline(fetcher, store, store,
		ingest.WithIndexer(indexer),
		ingest.WithAvatarUpdater(avatars),
		ingest.WithEvents(bus),
	)

	publishPipeline := publish.NewPipeline(store, store, render.NewHTMLRenderer(), kubo, kubo, fetcher,
		publish.WithEvents(bus),
		publish.WithConfig(&publish.PipelineConfig{
			Name:         "planet-publish",
			Root:         cfg.PublishRoot,
			ProbeTimeout: 2 * time.Minute,
		}),
	)

	names := namecheck.NewChecker(
		ipfs.NewNameService(kubo, ipfs.NewENSAvatars(fetcher, cfg.ENSMetadataURL)),
		store,
		fetcher,
		namecheck.WithAvatarUpdater(avatars),
		namecheck.WithEvents(bus),
		namecheck.WithConfig(namecheck.Config{LocalGateway: cfg.LocalGateway}),
	)

	sched := scheduler.New(store, ingestPipeline, publishPipeline, names, locker,
		scheduler.WithConfig(cfg.Scheduler),
	)

	svc := planet.NewService(store, kubo,
		planet.WithIndexer(indexer),
		planet.WithAvatars(avatars),
		planet.WithEvents(bus),
		planet.WithPublishRoot(cfg.PublishRoot),
	)

	if cfg.PlanetsFile != "" {
		if err := applySeed(s.Context(), svc, cfg.PlanetsFile); err != nil {
			slog.Error("Failed to apply planet seed file", "path", cfg.PlanetsFile, "error", err)
			os.Exit(1)
		}
	}

	planetRouter := router.NewPlanetRouter(s.Echo, svc, sched)
	planetRouter.Bind()

	if err := sched.Start(s.Context()); err != nil {
		slog.Error("Failed to start scheduler", "error", err)
		os.Exit(1)
	}

	go func() {
		<-s.ShutdownSignal()
		slog.Info("Shutdown started, cleaning up resources...")
		ctx, cancel := context.WithTimeout(context.Background(), sCfg.ShutdownTimeout)
		defer cancel()
		if err := sched.Stop(ctx); err != nil {
			slog.Warn("Scheduler did not stop in time", "error", err)
		}
	}()

	err = s.Start()
	if err != nil {
		slog.Error("Failed to start server", "error", err)
		os.Exit(1)
	}
}

func newLocker(cfg LeaseConfig) (lease.Locker, pkgserver.HealthChecker, func()) {
	if cfg.Backend == "redis" {
		l := lease.NewRedisFromAddr(cfg.RedisAddr, cfg.TTL)
		return l, l, func() {
			if err := l.Close(); err != nil {
				slog.Warn("Failed to close redis lease client", "error", err)
			}
		}
	}
	return lease.NewLocal(), pkgserver.AlwaysHealthy, func() {}
}

func applySeed(ctx context.Context, svc *planet.Service, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	list, err := planet.NewSeedLoader(file).Load(true)
	if err != nil {
		return err
	}
	_, err = svc.ApplySeed(ctx, list)
	return err
}
