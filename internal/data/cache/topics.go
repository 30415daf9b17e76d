package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/portakall/retromeet/internal/platform/logger"
)

// TopicCache remembers the last extracted topic list per project so the UI
// can show it without another generation call.
type TopicCache interface {
	Get(ctx context.Context, projectID uint) (topics []string, ok bool, err error)
	Set(ctx context.Context, projectID uint, topics []string) error
	Invalidate(ctx context.Context, projectID uint) error
}

type redisTopicCache struct {
	log *logger.Logger
	rdb goredis.UniversalClient
	ttl time.Duration
}

func NewRedisTopicCache(log *logger.Logger, rdb goredis.UniversalClient, ttl time.Duration) TopicCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &redisTopicCache{
		log: log.With("service", "TopicCache"),
		rdb: rdb,
		ttl: ttl,
	}
}

func TopicsKey(projectID uint) string {
	return fmt.Sprintf("retromeet:project:%d:topics", projectID)
}

func (c *redisTopicCache) Get(ctx context.Context, projectID uint) ([]string, bool, error) {
	raw, err := c.rdb.Get(ctx, TopicsKey(projectID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var topics []string
	if err := json.Unmarshal(raw, &topics); err != nil {
		c.log.Warn("Dropping undecodable topic cache entry", "project_id", projectID, "error", err)
		_ = c.rdb.Del(ctx, TopicsKey(projectID)).Err()
		return nil, false, nil
	}
	return topics, true, nil
}

func (c *redisTopicCache) Set(ctx context.Context, projectID uint, topics []string) error {
	raw, err := json.Marshal(topics)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, TopicsKey(projectID), raw, c.ttl).Err()
}

func (c *redisTopicCache) Invalidate(ctx context.Context, projectID uint) error {
	return c.rdb.Del(ctx, TopicsKey(projectID)).Err()
}

type nopTopicCache struct{}

// NewNopTopicCache is used when REDIS_ADDR is not configured.
func NewNopTopicCache() TopicCache { return nopTopicCache{} }

func (nopTopicCache) Get(context.Context, uint) ([]string, bool, error) { return nil, false, nil }
func (nopTopicCache) Set(context.Context, uint, []string) error         { return nil }
func (nopTopicCache) Invalidate(context.Context, uint) error            { return nil }
