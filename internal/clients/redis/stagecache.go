package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/stagium/backend/internal/domain"
	"github.com/stagium/backend/internal/platform/envutil"
	"github.com/stagium/backend/internal/platform/logger"
)

// StageCache is a read-through cache for stage detail lookups. Every write
// path invalidates; a cache miss or redis outage degrades to the database.
type StageCache interface {
	Get(ctx context.Context, stageID uuid.UUID) (*domain.Stage, error)
	Set(ctx context.Context, stage *domain.Stage) error
	Invalidate(ctx context.Context, stageID uuid.UUID) error
	Close() error
}

type stageCache struct {
	log *logger.Logger
	rdb *goredis.Client
	ttl time.Duration
}

func NewStageCache(log *logger.Logger) (StageCache, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr := envutil.Str("REDIS_ADDR", "")
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &stageCache{
		log: log.With("client", "StageCache"),
		rdb: rdb,
		ttl: envutil.Duration("STAGE_CACHE_TTL", 5*time.Minute),
	}, nil
}

func cacheKey(stageID uuid.UUID) string {
	return "stage:detail:" + stageID.String()
}

func (c *stageCache) Get(ctx context.Context, stageID uuid.UUID) (*domain.Stage, error) {
	raw, err := c.rdb.Get(ctx, cacheKey(stageID)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var stage domain.Stage
	if err := json.Unmarshal(raw, &stage); err != nil {
		// Stale encoding; drop the entry rather than serve it.
		_ = c.rdb.Del(ctx, cacheKey(stageID)).Err()
		return nil, nil
	}
	return &stage, nil
}

func (c *stageCache) Set(ctx context.Context, stage *domain.Stage) error {
	if stage == nil {
		return nil
	}
	raw, err := json.Marshal(stage)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, cacheKey(stage.ID), raw, c.ttl).Err()
}

func (c *stageCache) Invalidate(ctx context.Context, stageID uuid.UUID) error {
	return c.rdb.Del(ctx, cacheKey(stageID)).Err()
}

func (c *stageCache) Close() error {
	return c.rdb.Close()
}
