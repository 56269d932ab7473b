package lease

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/DjordjeVuckovic/planet-sync/internal/apperr"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix  = "planet-sync:lease:"
	DefaultTTL = 2 * time.Minute
)

// releaseScript deletes the key only while it still holds our token, so an expired
// lease re-acquired by another process is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// renewScript extends the key's expiry only while it still holds our token.
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Redis leases planets across processes sharing one Redis. A held lease is renewed
// every ttl/3 until released; a crashed holder stops renewing and its lease expires
// after ttl.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

var _ Locker = (*Redis)(nil)

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{client: client, ttl: ttl}
}

func NewRedisFromAddr(addr string, ttl time.Duration) *Redis {
	return NewRedis(redis.NewClient(&redis.Options{Addr: addr}), ttl)
}

func (r *Redis) TryLock(ctx context.Context, planetID uuid.UUID) (Release, error) {
	key := keyPrefix + planetID.String()
	token := uuid.NewString()

	ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lease for planet %s: %w", planetID, err)
	}
	if !ok {
		return nil, fmt.Errorf("planet %s: %w", planetID, apperr.ErrLeaseHeld)
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go r.heartbeat(planetID, key, token, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := releaseScript.Run(ctx, r.client, []string{key}, token).Err(); err != nil {
				slog.Warn("Failed to release planet lease", "planet_id", planetID, "error", err)
			}
		})
	}, nil
}

// heartbeat keeps the lease alive while a long sync holds it. It gives up once the
// key no longer carries token, which means the lease expired and was taken over.
func (r *Redis) heartbeat(planetID uuid.UUID, key, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(r.ttl / 3)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), r.ttl/3)
		renewed, err := renewScript.Run(ctx, r.client, []string{key}, token, r.ttl.Milliseconds()).Int()
		cancel()
		if err != nil {
			slog.Warn("Failed to renew planet lease", "planet_id", planetID, "error", err)
			continue
		}
		if renewed == 0 {
			slog.Warn("Planet lease lost before release", "planet_id", planetID)
			return
		}
	}
}

// Healthy reports whether Redis answers a ping.
func (r *Redis) Healthy(ctx context.Context) bool {
	return r.client.Ping(ctx).Err() == nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
