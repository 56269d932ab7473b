package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/DjordjeVuckovic/planet-sync/internal/apperr"
	"github.com/DjordjeVuckovic/planet-sync/internal/domain"
	"github.com/DjordjeVuckovic/planet-sync/internal/ingest"
	"github.com/DjordjeVuckovic/planet-sync/internal/lease"
	"github.com/DjordjeVuckovic/planet-sync/internal/publish"
	"github.com/DjordjeVuckovic/planet-sync/internal/storage"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

type Ingester interface {
	Ingest(ctx context.Context, planetID uuid.UUID, feedURL string) (*ingest.Result, error)
	Refresh(ctx context.Context, planetID uuid.UUID, feedURL string) (*ingest.Result, error)
}

type Publisher interface {
	Publish(ctx context.Context, planetID uuid.UUID) (*publish.Result, error)
}

type NameChecker interface {
	Check(ctx context.Context, planet *domain.Planet) *domain.FollowUp
}

type Config struct {
	Interval    time.Duration
	Concurrency int
	// RepublishAfter republishes owned planets whose pointer record is older than this.
	RepublishAfter time.Duration
	QueueSize      int
	RetryDelay     time.Duration
	MaxAttempts    int
}

func DefaultConfig() Config {
	return Config{
		Interval:       5 * time.Minute,
		Concurrency:    4,
		RepublishAfter: 12 * time.Hour,
		QueueSize:      64,
		RetryDelay:     5 * time.Second,
		MaxAttempts:    3,
	}
}

// SyncResult is the outcome of one planet sync, including follow-ups it ran.
type SyncResult struct {
	PlanetID uuid.UUID
	Ingest   *ingest.Result
	Publish  *publish.Result
}

type CycleReport struct {
	Planets int
	Synced  int
	Failed  int
	// Busy counts planets skipped because another sync held their lease.
	Busy int
}

// Scheduler polls every planet on a fixed interval and runs the follow-ups the
// engine operations hand back. Work on one planet is serialized by its lease.
type Scheduler struct {
	planets   storage.PlanetRegistry
	ingester  Ingester
	publisher Publisher
	names     NameChecker
	locker    lease.Locker
	now       func() time.Time
	config    Config

	queue chan queued
	mu    sync.Mutex
	stop  chan struct{}
	done  sync.WaitGroup
}

type queued struct {
	followUp domain.FollowUp
	attempt  int
}

type Option func(*Scheduler)

func WithConfig(cfg Config) Option {
	return func(s *Scheduler) {
		s.config = cfg
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

func New(planets storage.PlanetRegistry, ingester Ingester, publisher Publisher, names NameChecker, locker lease.Locker, opts ...Option) *Scheduler {
	s := &Scheduler{
		planets:   planets,
		ingester:  ingester,
		publisher: publisher,
		names:     names,
		locker:    locker,
		now:       func() time.Time { return time.Now().UTC() },
		config:    DefaultConfig(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.config.Concurrency < 1 {
		s.config.Concurrency = 1
	}
	if s.config.MaxAttempts < 1 {
		s.config.MaxAttempts = 1
	}
	s.queue = make(chan queued, max(s.config.QueueSize, 1))
	return s
}

// Start runs a cycle immediately and then on every tick, and starts the follow-up worker.
// It returns at once; Stop or ctx cancellation ends both loops.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		return nil
	}
	s.stop = make(chan struct{})
	stop := s.stop

	slog.Info("Scheduler started", "interval", s.config.Interval, "concurrency", s.config.Concurrency)

	s.done.Add(2)
	go func() {
		defer s.done.Done()
		ticker := time.NewTicker(s.config.Interval)
		defer ticker.Stop()
		s.RunCycle(ctx)
		for {
			select {
			case <-ticker.C:
				s.RunCycle(ctx)
			case <-ctx.Done():
				return
			case <-stop:
				return
			}
		}
	}()

	go func() {
		defer s.done.Done()
		for {
			select {
			case item := <-s.queue:
				s.runQueued(ctx, stop, item)
			case <-ctx.Done():
				return
			case <-stop:
				return
			}
		}
	}()

	return nil
}

// Stop halts the loops and waits for the running cycle to return.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stop == nil {
		s.mu.Unlock()
		return nil
	}
	close(s.stop)
	s.stop = nil
	s.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		s.done.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		slog.Info("Scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Enqueue hands a follow-up to the background worker. It reports false when the queue is full.
func (s *Scheduler) Enqueue(fu *domain.FollowUp) bool {
	if fu == nil {
		return true
	}
	select {
	case s.queue <- queued{followUp: *fu}:
		return true
	default:
		slog.Warn("Follow-up queue full, dropping", "kind", fu.Kind, "planet_id", fu.PlanetID)
		return false
	}
}

// RunCycle syncs every planet once with bounded concurrency. Failures are per planet.
func (s *Scheduler) RunCycle(ctx context.Context) CycleReport {
	start := time.Now()

	planets, err := s.planets.ListPlanets(ctx)
	if err != nil {
		slog.Error("Failed to list planets", "error", err)
		return CycleReport{}
	}

	var synced, failed, busy atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.Concurrency)

	for i := range planets {
		planet := planets[i]
		g.Go(func() error {
			_, err := s.SyncPlanet(gctx, &planet)
			switch {
			case err == nil:
				synced.Add(1)
			case errors.Is(err, apperr.ErrLeaseHeld):
				busy.Add(1)
			default:
				failed.Add(1)
				slog.Warn("Planet sync failed",
					"planet_id", planet.ID,
					"scheme", planet.Scheme,
					"retryable", apperr.IsRetryable(err),
					"error", err,
				)
			}
			return nil
		})
	}
	_ = g.Wait()

	report := CycleReport{
		Planets: len(planets),
		Synced:  int(synced.Load()),
		Failed:  int(failed.Load()),
		Busy:    int(busy.Load()),
	}
	slog.Info("Sync cycle completed",
		"planets", report.Planets,
		"synced", report.Synced,
		"failed", report.Failed,
		"busy", report.Busy,
		"duration", time.Since(start),
	)
	return report
}

// Sync syncs a planet by id.
func (s *Scheduler) Sync(ctx context.Context, planetID uuid.UUID) (*SyncResult, error) {
	release, err := s.locker.TryLock(ctx, planetID)
	if err != nil {
		return nil, err
	}
	defer release()

	return s.syncLocked(ctx, planetID)
}

// SyncPlanet fetches new content for a followed planet, or republishes a stale owned
// one, and runs the resulting follow-ups while holding the planet's lease. The planet
// is re-read once the lease is held; the argument only names it.
func (s *Scheduler) SyncPlanet(ctx context.Context, planet *domain.Planet) (*SyncResult, error) {
	return s.Sync(ctx, planet.ID)
}

func (s *Scheduler) syncLocked(ctx context.Context, planetID uuid.UUID) (*SyncResult, error) {
	planet, err := s.planets.GetPlanet(ctx, planetID)
	if err != nil {
		return nil, err
	}

	result := &SyncResult{PlanetID: planet.ID}

	var next *domain.FollowUp
	switch {
	case planet.IsOwned():
		if s.needsRepublish(planet) {
			next = &domain.FollowUp{Kind: domain.FollowUpPublish, PlanetID: planet.ID}
		}
	case planet.Feed != nil:
		next = &domain.FollowUp{Kind: domain.FollowUpIngest, PlanetID: planet.ID}
	case planet.ENS != nil:
		next = s.names.Check(ctx, planet)
	}

	if err := s.run(ctx, next, result); err != nil {
		return result, err
	}
	return result, nil
}

// Refresh rewrites title and link of a planet's known articles from its feed under
// the planet's lease. Name-resolved planets are resolved first and read the feed
// behind their current CID.
func (s *Scheduler) Refresh(ctx context.Context, planetID uuid.UUID) (*SyncResult, error) {
	release, err := s.locker.TryLock(ctx, planetID)
	if err != nil {
		return nil, err
	}
	defer release()

	planet, err := s.planets.GetPlanet(ctx, planetID)
	if err != nil {
		return nil, err
	}

	result := &SyncResult{PlanetID: planetID}
	next := &domain.FollowUp{Kind: domain.FollowUpRefresh, PlanetID: planetID}
	if planet.Feed == nil && planet.ENS != nil {
		next = s.names.Check(ctx, planet)
		if next == nil {
			return result, nil
		}
		if next.Kind == domain.FollowUpIngest {
			next.Kind = domain.FollowUpRefresh
		}
	}

	if err := s.run(ctx, next, result); err != nil {
		return result, err
	}
	return result, nil
}

// Publish publishes an owned planet under its lease.
func (s *Scheduler) Publish(ctx context.Context, planetID uuid.UUID) (*publish.Result, error) {
	result := &SyncResult{PlanetID: planetID}
	err := s.runLeased(ctx, &domain.FollowUp{Kind: domain.FollowUpPublish, PlanetID: planetID}, result)
	return result.Publish, err
}

func (s *Scheduler) needsRepublish(planet *domain.Planet) bool {
	at := planet.Owned.LastPublishedAt
	return at == nil || s.now().Sub(*at) >= s.config.RepublishAfter
}

func (s *Scheduler) runLeased(ctx context.Context, fu *domain.FollowUp, result *SyncResult) error {
	release, err := s.locker.TryLock(ctx, fu.PlanetID)
	if err != nil {
		return err
	}
	defer release()
	return s.run(ctx, fu, result)
}

// run executes a follow-up chain. Ingest and refresh may ask for a publish; publish
// ends the chain.
func (s *Scheduler) run(ctx context.Context, fu *domain.FollowUp, result *SyncResult) error {
	for fu != nil {
		switch fu.Kind {
		case domain.FollowUpIngest:
			res, err := s.ingester.Ingest(ctx, fu.PlanetID, fu.FeedURL)
			if err != nil {
				return err
			}
			result.Ingest = res
			fu = res.FollowUp
		case domain.FollowUpRefresh:
			res, err := s.ingester.Refresh(ctx, fu.PlanetID, fu.FeedURL)
			if err != nil {
				return err
			}
			result.Ingest = res
			fu = res.FollowUp
		case domain.FollowUpPublish:
			res, err := s.publisher.Publish(ctx, fu.PlanetID)
			if err != nil {
				return err
			}
			result.Publish = res
			fu = nil
		default:
			return fmt.Errorf("unknown follow-up kind %q", fu.Kind)
		}
	}
	return nil
}

func (s *Scheduler) runQueued(ctx context.Context, stop <-chan struct{}, item queued) {
	item.attempt++
	err := s.runLeased(ctx, &item.followUp, &SyncResult{PlanetID: item.followUp.PlanetID})
	if err == nil {
		return
	}
	if !apperr.IsRetryable(err) || item.attempt >= s.config.MaxAttempts {
		slog.Error("Follow-up failed", "kind", item.followUp.Kind, "planet_id", item.followUp.PlanetID, "attempt", item.attempt, "error", err)
		return
	}

	slog.Info("Retrying follow-up", "kind", item.followUp.Kind, "planet_id", item.followUp.PlanetID, "attempt", item.attempt, "error", err)
	go func() {
		select {
		case <-time.After(s.config.RetryDelay):
		case <-ctx.Done():
			return
		case <-stop:
			return
		}
		select {
		case s.queue <- item:
		default:
			slog.Warn("Follow-up queue full, dropping retry", "planet_id", item.followUp.PlanetID)
		}
	}()
}
