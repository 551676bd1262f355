package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/andresuchdata/rxstock/backend-go/internal/buffer"
	"github.com/andresuchdata/rxstock/backend-go/internal/config"
)

const bufferResultKeyPrefix = "buffer:result"

// BufferCache stores buffer results keyed by drug, risk threshold and the
// exact set of linked patient profiles, so any link change misses.
type BufferCache interface {
	Get(ctx context.Context, drugCode string, threshold float64, profiles []buffer.PatientProfile) (*buffer.Result, bool, error)
	Set(ctx context.Context, drugCode string, threshold float64, profiles []buffer.PatientProfile, result *buffer.Result) error
	InvalidateDrug(ctx context.Context, drugCode string) error
	InvalidateAll(ctx context.Context) error
}

type redisBufferCache struct {
	store *jsonStore
}

type noopBufferCache struct{}

func NewBufferCache(cfg config.CacheConfig) (BufferCache, error) {
	if !cfg.Enabled {
		return &noopBufferCache{}, nil
	}

	store, err := newJSONStore(cfg, cfg.BufferTTLSeconds)
	if err != nil {
		return nil, err
	}
	return &redisBufferCache{store: store}, nil
}

func NewNoopBufferCache() BufferCache {
	return &noopBufferCache{}
}

func (c *redisBufferCache) Get(ctx context.Context, drugCode string, threshold float64, profiles []buffer.PatientProfile) (*buffer.Result, bool, error) {
	var result buffer.Result
	ok, err := c.store.load(ctx, buildBufferResultKey(drugCode, threshold, profiles), &result)
	if err != nil || !ok {
		return nil, false, err
	}
	return &result, true, nil
}

func (c *redisBufferCache) Set(ctx context.Context, drugCode string, threshold float64, profiles []buffer.PatientProfile, result *buffer.Result) error {
	return c.store.store(ctx, buildBufferResultKey(drugCode, threshold, profiles), result)
}

func (c *redisBufferCache) InvalidateDrug(ctx context.Context, drugCode string) error {
	return c.store.removePrefix(ctx, bufferDrugPrefix(drugCode))
}

func (c *redisBufferCache) InvalidateAll(ctx context.Context) error {
	return c.store.removePrefix(ctx, bufferResultKeyPrefix)
}

func (n *noopBufferCache) Get(ctx context.Context, drugCode string, threshold float64, profiles []buffer.PatientProfile) (*buffer.Result, bool, error) {
	return nil, false, nil
}

func (n *noopBufferCache) Set(ctx context.Context, drugCode string, threshold float64, profiles []buffer.PatientProfile, result *buffer.Result) error {
	return nil
}

func (n *noopBufferCache) InvalidateDrug(ctx context.Context, drugCode string) error {
	return nil
}

func (n *noopBufferCache) InvalidateAll(ctx context.Context) error {
	return nil
}

func bufferDrugPrefix(drugCode string) string {
	return fmt.Sprintf("%s:%s:", bufferResultKeyPrefix, strings.TrimSpace(drugCode))
}

func buildBufferResultKey(drugCode string, threshold float64, profiles []buffer.PatientProfile) string {
	return bufferDrugPrefix(drugCode) + strconv.FormatFloat(threshold, 'g', -1, 64) + ":" + profilesHash(profiles)
}

// profilesHash ignores profile order and names; only what changes the
// computation is hashed.
func profilesHash(profiles []buffer.PatientProfile) string {
	if len(profiles) == 0 {
		return "none"
	}

	parts := make([]string, len(profiles))
	for i, p := range profiles {
		parts[i] = fmt.Sprintf("%d/%d/%d", p.PatientID, p.VisitCycleDays, p.DosagePerVisit)
	}
	sort.Strings(parts)

	sum := sha1.Sum([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}
