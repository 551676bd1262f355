package cache

import (
	"context"

	"github.com/andresuchdata/rxstock/backend-go/internal/config"
	"github.com/andresuchdata/rxstock/backend-go/internal/domain"
)

const suggestionStatsKey = "suggestion:stats"

// StatsCache holds the suggestion progress summary between writes.
type StatsCache interface {
	Get(ctx context.Context) (*domain.SuggestionStats, bool, error)
	Set(ctx context.Context, stats *domain.SuggestionStats) error
	Invalidate(ctx context.Context) error
}

type redisStatsCache struct {
	store *jsonStore
}

type noopStatsCache struct{}

func NewStatsCache(cfg config.CacheConfig) (StatsCache, error) {
	if !cfg.Enabled {
		return &noopStatsCache{}, nil
	}

	store, err := newJSONStore(cfg, cfg.StatsTTLSeconds)
	if err != nil {
		return nil, err
	}
	return &redisStatsCache{store: store}, nil
}

func NewNoopStatsCache() StatsCache {
	return &noopStatsCache{}
}

func (c *redisStatsCache) Get(ctx context.Context) (*domain.SuggestionStats, bool, error) {
	var stats domain.SuggestionStats
	ok, err := c.store.load(ctx, suggestionStatsKey, &stats)
	if err != nil || !ok {
		return nil, false, err
	}
	return &stats, true, nil
}

func (c *redisStatsCache) Set(ctx context.Context, stats *domain.SuggestionStats) error {
	return c.store.store(ctx, suggestionStatsKey, stats)
}

func (c *redisStatsCache) Invalidate(ctx context.Context) error {
	return c.store.remove(ctx, suggestionStatsKey)
}

func (n *noopStatsCache) Get(ctx context.Context) (*domain.SuggestionStats, bool, error) {
	return nil, false, nil
}

func (n *noopStatsCache) Set(ctx context.Context, stats *domain.SuggestionStats) error {
	return nil
}

func (n *noopStatsCache) Invalidate(ctx context.Context) error {
	return nil
}
