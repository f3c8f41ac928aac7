package marker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// DefaultRedisKey is used when no key is configured.
const DefaultRedisKey = "slashboard:retention:epoch"

// Redis keeps the marker under a single string key.
type Redis struct {
	rdb *goredis.Client
	key string
}

// NewRedis connects to addr and verifies the connection with a ping.
func NewRedis(ctx context.Context, addr, key string) (*Redis, error) {
	if addr == "" {
		return nil, errors.New("marker: missing redis address")
	}
	if key == "" {
		key = DefaultRedisKey
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Redis{rdb: rdb, key: key}, nil
}

func (r *Redis) Load(ctx context.Context) (int64, error) {
	raw, err := r.rdb.Get(ctx, r.key).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return 0, ErrNoMarker
		}
		return 0, fmt.Errorf("redis get %s: %w", r.key, err)
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrCorrupt, raw)
	}
	return v, nil
}

func (r *Redis) Save(ctx context.Context, epoch int64) error {
	if err := r.rdb.Set(ctx, r.key, strconv.FormatInt(epoch, 10), 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", r.key, err)
	}
	return nil
}

// Close releases the client.
func (r *Redis) Close() error {
	return r.rdb.Close()
}
