package lease

import (
	"context"
	"fmt"
	"sync"

	"github.com/DjordjeVuckovic/planet-sync/internal/apperr"
	"github.com/google/uuid"
)

// Release gives a lease back. Calling it more than once is harmless.
type Release func()

// Locker hands out one lease per planet at a time. TryLock never waits: a planet that
// is already leased yields apperr.ErrLeaseHeld and the caller retries on a later cycle.
type Locker interface {
	TryLock(ctx context.Context, planetID uuid.UUID) (Release, error)
}

// Local leases planets within a single process.
type Local struct {
	mu   sync.Mutex
	held map[uuid.UUID]struct{}
}

var _ Locker = (*Local)(nil)

func NewLocal() *Local {
	return &Local{held: make(map[uuid.UUID]struct{})}
}

func (l *Local) TryLock(_ context.Context, planetID uuid.UUID) (Release, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, busy := l.held[planetID]; busy {
		return nil, fmt.Errorf("planet %s: %w", planetID, apperr.ErrLeaseHeld)
	}
	l.held[planetID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, planetID)
			l.mu.Unlock()
		})
	}, nil
}
