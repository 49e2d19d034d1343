package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/jo-hoe/worldscars/internal/backend/database"
)

// ImageList is a cached page of a listing together with the unpaged total.
type ImageList struct {
	Images []*database.Image `json:"images"`
	Total  int               `json:"total"`
}

// ImageCache is a read-through cache in front of the database. Implementations
// treat backend failures as misses; a cache must never fail a request.
type ImageCache interface {
	GetImage(ctx context.Context, id int64) (*database.Image, bool)
	SetImage(ctx context.Context, image *database.Image)
	// GetList also returns the listing generation it looked in. Callers pass it
	// back to SetList so a result computed before an insert is never stored
	// under the generation that insert started.
	GetList(ctx context.Context, filter database.ImageFilter) (list *ImageList, generation int64, ok bool)
	SetList(ctx context.Context, generation int64, filter database.ImageFilter, list *ImageList)
	// InvalidateLists drops every cached listing, called after an image was added.
	InvalidateLists(ctx context.Context)
	Close() error
}

type Config struct {
	Type     string        `yaml:"type" validate:"oneof=none redis"`
	Address  string        `yaml:"address"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
	Prefix   string        `yaml:"prefix"`
}

func NewImageCache(config Config) (ImageCache, error) {
	switch config.Type {
	case "", "none":
		return NoopCache{}, nil
	case "redis":
		return NewRedisCache(config)
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", config.Type)
	}
}

// NoopCache never stores anything.
type NoopCache struct{}

func (NoopCache) GetImage(context.Context, int64) (*database.Image, bool) { return nil, false }
func (NoopCache) SetImage(context.Context, *database.Image)               {}
func (NoopCache) GetList(context.Context, database.ImageFilter) (*ImageList, int64, bool) {
	return nil, 0, false
}
func (NoopCache) SetList(context.Context, int64, database.ImageFilter, *ImageList) {}
func (NoopCache) InvalidateLists(context.Context)                                  {}
func (NoopCache) Close() error                                                     { return nil }
