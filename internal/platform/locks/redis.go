package locks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/draftsync-backend/internal/platform/logger"
)

const (
	DefaultTTL        = 30 * time.Second
	DefaultRetryEvery = 50 * time.Millisecond
	defaultPrefix     = "draftsync:lock:"
)

var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisConfig struct {
	Prefix     string
	TTL        time.Duration
	RetryEvery time.Duration
}

// Redis is a lease lock shared across replicas. A lease outlives a crashed
// holder by at most TTL.
type Redis struct {
	log        *logger.Logger
	rdb        goredis.UniversalClient
	prefix     string
	ttl        time.Duration
	retryEvery time.Duration
}

func NewRedis(log *logger.Logger, rdb goredis.UniversalClient, cfg RedisConfig) *Redis {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.RetryEvery <= 0 {
		cfg.RetryEvery = DefaultRetryEvery
	}
	if strings.TrimSpace(cfg.Prefix) == "" {
		cfg.Prefix = defaultPrefix
	}
	return &Redis{
		log:        log.With("service", "RedisLocker"),
		rdb:        rdb,
		prefix:     cfg.Prefix,
		ttl:        cfg.TTL,
		retryEvery: cfg.RetryEvery,
	}
}

func (r *Redis) Key(key string) string { return r.prefix + key }

func (r *Redis) Lock(ctx context.Context, key string) (Unlock, error) {
	full := r.Key(key)
	token := uuid.NewString()
	ticker := time.NewTicker(r.retryEvery)
	defer ticker.Stop()
	for {
		ok, err := r.rdb.SetNX(ctx, full, token, r.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire %s: %w", full, err)
		}
		if ok {
			return once(func() { r.release(full, token) }), nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (r *Redis) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	n, err := releaseScript.Run(ctx, r.rdb, []string{key}, token).Int()
	if err != nil {
		r.log.Warn("Lock release failed", "key", key, "error", err)
		return
	}
	if n == 0 {
		r.log.Warn("Lock lease expired before release", "key", key)
	}
}
