package keylock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/exp/slog"
)

// releaseScript deletes the key only while it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisOptions configures a Redis Locker
type RedisOptions struct {
	Prefix        string
	TTL           time.Duration
	Wait          time.Duration
	RetryInterval time.Duration
}

// Redis is a Locker shared by every instance using the same Redis
type Redis struct {
	rdb  redis.UniversalClient
	opts RedisOptions
	log  *slog.Logger
}

// NewRedis creates a Redis Locker. Zero options fall back to defaults.
func NewRedis(rdb redis.UniversalClient, opts RedisOptions, log *slog.Logger) *Redis {
	if opts.Prefix == "" {
		opts.Prefix = "lock:"
	}
	if opts.TTL <= 0 {
		opts.TTL = 10 * time.Second
	}
	if opts.Wait <= 0 {
		opts.Wait = 5 * time.Second
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 25 * time.Millisecond
	}
	if log == nil {
		log = slog.Default()
	}
	return &Redis{rdb: rdb, opts: opts, log: log.With("service", "RedisLocker")}
}

// Acquire polls SET NX PX until it wins, opts.Wait elapses or ctx is done
func (r *Redis) Acquire(ctx context.Context, key string) (func(), error) {
	fullKey := r.opts.Prefix + key
	token := uuid.NewString()

	deadline := time.NewTimer(r.opts.Wait)
	defer deadline.Stop()
	ticker := time.NewTicker(r.opts.RetryInterval)
	defer ticker.Stop()

	for {
		ok, err := r.rdb.SetNX(ctx, fullKey, token, r.opts.TTL).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, ErrTimeout
		case <-ticker.C:
		}
	}

	return func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, r.rdb, []string{fullKey}, token).Err(); err != nil {
			r.log.Warn("Failed to release lock", "key", key, "error", err)
		}
	}, nil
}
