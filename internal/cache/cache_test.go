package cache

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/andresuchdata/rxstock/backend-go/internal/buffer"
	"github.com/andresuchdata/rxstock/backend-go/internal/config"
)

func TestBuildBufferResultKey_IgnoresOrderAndNames(t *testing.T) {
	a := []buffer.PatientProfile{
		{PatientID: 1, Name: "Kim", VisitCycleDays: 30, DosagePerVisit: 30},
		{PatientID: 2, Name: "Lee", VisitCycleDays: 60, DosagePerVisit: 60},
	}
	b := []buffer.PatientProfile{
		{PatientID: 2, Name: "renamed", VisitCycleDays: 60, DosagePerVisit: 60},
		{PatientID: 1, Name: "Kim", VisitCycleDays: 30, DosagePerVisit: 30},
	}

	ka := buildBufferResultKey("D1", 0.0003, a)
	kb := buildBufferResultKey("D1", 0.0003, b)
	if ka != kb {
		t.Errorf("expected equal keys, got %s and %s", ka, kb)
	}
	if !strings.HasPrefix(ka, bufferDrugPrefix("D1")) {
		t.Errorf("key %s is not under the drug prefix", ka)
	}
}

func TestBuildBufferResultKey_ChangesWithInputs(t *testing.T) {
	base := []buffer.PatientProfile{{PatientID: 1, VisitCycleDays: 30, DosagePerVisit: 30}}
	changedDose := []buffer.PatientProfile{{PatientID: 1, VisitCycleDays: 30, DosagePerVisit: 31}}

	keys := map[string]bool{
		buildBufferResultKey("D1", 0.0003, base):        true,
		buildBufferResultKey("D1", 0.003, base):         true,
		buildBufferResultKey("D2", 0.0003, base):        true,
		buildBufferResultKey("D1", 0.0003, changedDose): true,
		buildBufferResultKey("D1", 0.0003, nil):         true,
	}
	if len(keys) != 5 {
		t.Errorf("expected 5 distinct keys, got %d", len(keys))
	}
}

func TestDisabledCachesAreNoop(t *testing.T) {
	ctx := context.Background()
	cfg := config.CacheConfig{Enabled: false}

	bc, err := NewBufferCache(cfg)
	if err != nil {
		t.Fatalf("buffer cache: %v", err)
	}
	if err := bc.Set(ctx, "D1", 0.1, nil, &buffer.Result{MinBuffer: 3}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, ok, _ := bc.Get(ctx, "D1", 0.1, nil); ok {
		t.Error("noop cache should never hit")
	}

	sc, err := NewStatsCache(cfg)
	if err != nil {
		t.Fatalf("stats cache: %v", err)
	}
	if _, ok, _ := sc.Get(ctx); ok {
		t.Error("noop stats cache should never hit")
	}
}

func TestBuildRedisOptions(t *testing.T) {
	opts, err := buildRedisOptions(config.CacheConfig{RedisHost: "cache", RedisPort: "6380", RedisDB: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.Addr != "cache:6380" || opts.DB != 2 {
		t.Errorf("unexpected options %+v", opts)
	}

	opts, err = buildRedisOptions(config.CacheConfig{RedisURL: "redis://:secret@redis.local:6379/1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.Addr != "redis.local:6379" || opts.Password != "secret" || opts.DB != 1 {
		t.Errorf("unexpected options from url %+v", opts)
	}

	if _, err := buildRedisOptions(config.CacheConfig{RedisURL: "http://nope"}); err == nil {
		t.Error("expected error for invalid redis url")
	}
}

func TestTTLOrDefault(t *testing.T) {
	if ttlOrDefault(0) != defaultCacheTTL {
		t.Errorf("expected default ttl")
	}
	if ttlOrDefault(90) != 90*time.Second {
		t.Errorf("expected 90s")
	}
}
