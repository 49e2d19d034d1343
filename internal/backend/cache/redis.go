package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jo-hoe/worldscars/internal/backend/database"
	"github.com/redis/go-redis/v9"
)

const (
	defaultTTL    = 5 * time.Minute
	defaultPrefix = "worldscars"

	// unknownGeneration is handed out when the counter could not be read;
	// SetList ignores it.
	unknownGeneration = -1
)

// RedisCache stores JSON encoded images and listings in Redis.
//
// Images are immutable once created, so detail entries only expire by TTL.
// Listing keys embed a generation counter; bumping the counter on insert
// orphans every cached listing at once, and the orphans expire by TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisCache(config Config) (*RedisCache, error) {
	if config.Address == "" {
		return nil, fmt.Errorf("redis cache requires an address")
	}
	ttl := config.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	prefix := config.Prefix
	if prefix == "" {
		prefix = defaultPrefix
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Address,
		Password: config.Password,
		DB:       config.DB,
	})
	return &RedisCache{client: client, ttl: ttl, prefix: prefix}, nil
}

func (c *RedisCache) imageKey(id int64) string {
	return fmt.Sprintf("%s:image:%d", c.prefix, id)
}

func (c *RedisCache) generationKey() string {
	return c.prefix + ":lists:generation"
}

func (c *RedisCache) listKey(generation int64, filter database.ImageFilter) string {
	return fmt.Sprintf("%s:list:%d:%d:%d:%s", c.prefix, generation, filter.Limit, filter.Offset,
		strings.ToLower(strings.TrimSpace(filter.Query)))
}

func (c *RedisCache) GetImage(ctx context.Context, id int64) (*database.Image, bool) {
	var image database.Image
	if !c.getJSON(ctx, c.imageKey(id), &image) {
		return nil, false
	}
	return &image, true
}

func (c *RedisCache) SetImage(ctx context.Context, image *database.Image) {
	c.setJSON(ctx, c.imageKey(image.ID), image)
}

func (c *RedisCache) GetList(ctx context.Context, filter database.ImageFilter) (*ImageList, int64, bool) {
	generation, ok := c.generation(ctx)
	if !ok {
		return nil, unknownGeneration, false
	}
	var list ImageList
	if !c.getJSON(ctx, c.listKey(generation, filter), &list) {
		return nil, generation, false
	}
	return &list, generation, true
}

// SetList stores the listing under the generation returned by the GetList
// call that preceded the database query. If an insert bumped the counter in
// the meantime the entry lands in an orphaned generation and is never read.
func (c *RedisCache) SetList(ctx context.Context, generation int64, filter database.ImageFilter, list *ImageList) {
	if generation < 0 {
		return
	}
	c.setJSON(ctx, c.listKey(generation, filter), list)
}

func (c *RedisCache) InvalidateLists(ctx context.Context) {
	if err := c.client.Incr(ctx, c.generationKey()).Err(); err != nil {
		slog.Warn("redis cache: failed to invalidate listings", "error", err)
	}
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// generation returns the current listing generation; a missing counter is generation 0.
func (c *RedisCache) generation(ctx context.Context) (int64, bool) {
	generation, err := c.client.Get(ctx, c.generationKey()).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, true
	}
	if err != nil {
		slog.Warn("redis cache: failed to read listing generation", "error", err)
		return 0, false
	}
	return generation, true
}

func (c *RedisCache) getJSON(ctx context.Context, key string, target any) bool {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false
	}
	if err != nil {
		slog.Warn("redis cache: get failed", "key", key, "error", err)
		return false
	}
	if err := json.Unmarshal(data, target); err != nil {
		slog.Warn("redis cache: dropping undecodable entry", "key", key, "error", err)
		_ = c.client.Del(ctx, key).Err()
		return false
	}
	return true
}

func (c *RedisCache) setJSON(ctx context.Context, key string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		slog.Warn("redis cache: failed to encode entry", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		slog.Warn("redis cache: set failed", "key", key, "error", err)
	}
}
