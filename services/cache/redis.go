// Package cachesvc keeps normalized batches so repeated reads skip re-normalization.
package cachesvc

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/attendr/core"
	"github.com/trezcool/attendr/core/attendance"
)

type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

var _ attendance.Cache = (*RedisCache)(nil)

// NewRedisCache connects and pings. An empty conf.Redis.Addr is a configuration error;
// use New to fall back to the in-memory cache instead.
func NewRedisCache(ctx context.Context, conf core.RedisConfig) (*RedisCache, error) {
	if conf.Addr == "" {
		return nil, errors.New("missing redis.addr")
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:        conf.Addr,
		Password:    conf.Password,
		DB:          conf.DB,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, "pinging redis")
	}
	return &RedisCache{rdb: rdb, ttl: conf.TTL}, nil
}

func (c *RedisCache) GetBatch(ctx context.Context, key string) (attendance.Batch, bool, error) {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return attendance.Batch{}, false, nil
	}
	if err != nil {
		return attendance.Batch{}, false, errors.Wrap(err, "redis get")
	}

	var batch attendance.Batch
	if err := json.Unmarshal(raw, &batch); err != nil {
		// a corrupt entry is a miss
		return attendance.Batch{}, false, errors.Wrap(err, "decoding cached batch")
	}
	return batch, true, nil
}

func (c *RedisCache) SetBatch(ctx context.Context, key string, batch attendance.Batch) error {
	raw, err := json.Marshal(batch)
	if err != nil {
		return errors.Wrap(err, "encoding batch")
	}
	return errors.Wrap(c.rdb.Set(ctx, key, raw, c.ttl).Err(), "redis set")
}

func (c *RedisCache) Close() error {
	return c.rdb.Close()
}
