package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/DjordjeVuckovic/planet-sync/internal/ipfs"
	"github.com/DjordjeVuckovic/planet-sync/internal/namecheck"
	"github.com/DjordjeVuckovic/planet-sync/internal/scheduler"
	"github.com/DjordjeVuckovic/planet-sync/internal/storage/factory"
	"github.com/DjordjeVuckovic/planet-sync/pkg/config/env"
)

type AppConfig struct {
	ENV string
}

func NewAppConfig() *AppConfig {
	return &AppConfig{
		ENV: os.Getenv("ENV"),
	}
}

type LeaseConfig struct {
	// Backend is "local" or "redis".
	Backend   string
	RedisAddr string
	TTL       time.Duration
}

type PlanetSyncConfig struct {
	StorageConfig  factory.StorageConfig
	IPFS           ipfs.Config
	Scheduler      scheduler.Config
	Lease          LeaseConfig
	PublishRoot    string
	AvatarRoot     string
	LocalGateway   string
	ENSMetadataURL string
	FetchTimeout   time.Duration
	HostInterval   time.Duration
	// PlanetsFile is an optional YAML seed of followed planets.
	PlanetsFile string
}

func (as *AppConfig) Load() (*PlanetSyncConfig, error) {
	err := env.LoadDotEnv(as.ENV, "cmd/planet_sync/.env")
	if err != nil {
		slog.Info("Failed to .env load environment variables, continuing with existing environment variables", "error", err)
	}

	storageCfg, err := factory.LoadEnv()
	if err != nil {
		slog.Error("Failed to load storage configuration from environment", "error", err)
		return nil, err
	}

	sched := scheduler.DefaultConfig()
	if sched.Interval, err = durationEnv("SYNC_INTERVAL", sched.Interval); err != nil {
		return nil, err
	}
	if sched.Concurrency, err = intEnv("SYNC_CONCURRENCY", sched.Concurrency); err != nil {
		return nil, err
	}
	if sched.RepublishAfter, err = durationEnv("REPUBLISH_AFTER", sched.RepublishAfter); err != nil {
		return nil, err
	}

	lease := LeaseConfig{
		Backend:   stringEnv("LEASE_BACKEND", "local"),
		RedisAddr: os.Getenv("REDIS_ADDR"),
	}
	if lease.TTL, err = durationEnv("LEASE_TTL", 2*time.Minute); err != nil {
		return nil, err
	}
	switch lease.Backend {
	case "local":
	case "redis":
		if lease.RedisAddr == "" {
			return nil, fmt.Errorf("REDIS_ADDR is required when LEASE_BACKEND=redis")
		}
	default:
		return nil, fmt.Errorf("invalid LEASE_BACKEND %q, expected local or redis", lease.Backend)
	}

	publishRoot := stringEnv("PUBLISH_ROOT", filepath.Join(os.TempDir(), "planet-sync", "public"))

	cfg := &PlanetSyncConfig{
		StorageConfig: *storageCfg,
		IPFS: ipfs.Config{
			APIURL: stringEnv("IPFS_API", ipfs.DefaultAPIURL),
		},
		Scheduler:      sched,
		Lease:          lease,
		PublishRoot:    publishRoot,
		AvatarRoot:     stringEnv("AVATAR_ROOT", filepath.Join(filepath.Dir(publishRoot), "avatars")),
		LocalGateway:   stringEnv("LOCAL_GATEWAY", namecheck.DefaultLocalGateway),
		ENSMetadataURL: stringEnv("ENS_METADATA_URL", ipfs.DefaultENSMetadataURL),
		PlanetsFile:    os.Getenv("PLANETS_FILE"),
	}
	if cfg.FetchTimeout, err = durationEnv("FETCH_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.HostInterval, err = durationEnv("FETCH_HOST_INTERVAL", time.Second); err != nil {
		return nil, err
	}

	return cfg, nil
}

func stringEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: expected a positive duration", key, v)
	}
	return d, nil
}

func intEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid %s %q: expected a positive integer", key, v)
	}
	return n, nil
}
