package app

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/portakall/retromeet/internal/data/cache"
	"github.com/portakall/retromeet/internal/data/db"
	"github.com/portakall/retromeet/internal/platform/artifacts"
	"github.com/portakall/retromeet/internal/platform/gcp"
	"github.com/portakall/retromeet/internal/platform/logger"
	"github.com/portakall/retromeet/internal/platform/openai"
	"github.com/portakall/retromeet/internal/platform/redisx"
	"github.com/portakall/retromeet/internal/realtime/bus"
)

type Clients struct {
	DB        *gorm.DB
	Redis     *goredis.Client
	Bus       bus.Bus
	Topics    cache.TopicCache
	AI        openai.Client
	Artifacts artifacts.Store
	Bucket    gcp.BucketService
}

// wireClients opens every external dependency. Redis is optional: without
// REDIS_ADDR the bus stays in-process and topics are not cached.
func wireClients(ctx context.Context, log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")
	var c Clients

	theDB, err := db.Open(log, cfg.DB)
	if err != nil {
		return Clients{}, fmt.Errorf("init database: %w", err)
	}
	if err := db.AutoMigrateAll(theDB); err != nil {
		closeDB(theDB)
		return Clients{}, fmt.Errorf("database automigrate: %w", err)
	}
	c.DB = theDB

	if cfg.RedisAddr != "" {
		rdb, err := redisx.NewClient(ctx, cfg.RedisAddr)
		if err != nil {
			c.Close()
			return Clients{}, fmt.Errorf("init redis: %w", err)
		}
		c.Redis = rdb
		b, err := bus.NewRedisBus(log, rdb, cfg.RedisChannel)
		if err != nil {
			c.Close()
			return Clients{}, fmt.Errorf("init redis SSE bus: %w", err)
		}
		c.Bus = b
		c.Topics = cache.NewRedisTopicCache(log, rdb, cfg.TopicCacheTTL)
	} else {
		c.Bus = bus.NewLocalBus()
		c.Topics = cache.NewNopTopicCache()
	}

	ai, err := openai.NewClient(log, cfg.OpenAI)
	if err != nil {
		c.Close()
		return Clients{}, fmt.Errorf("init openai client: %w", err)
	}
	c.AI = ai

	store, bucket, err := resolveArtifactStore(ctx, log, cfg)
	if err != nil {
		c.Close()
		return Clients{}, fmt.Errorf("init artifact store: %w", err)
	}
	c.Artifacts = store
	c.Bucket = bucket

	return c, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.Bus != nil {
		_ = c.Bus.Close()
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
	if c.Bucket != nil {
		_ = c.Bucket.Close()
	}
	if c.DB != nil {
		closeDB(c.DB)
	}
}

func closeDB(theDB *gorm.DB) {
	if sqlDB, err := theDB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
