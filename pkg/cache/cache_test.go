package cache

import (
	"testing"
	"time"

	"fpgaroute/pkg/config"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	if opts.Backend != BackendMemory {
		t.Errorf("expected backend 'memory', got %s", opts.Backend)
	}
	if opts.DefaultTTL != 10*time.Minute {
		t.Errorf("expected default TTL 10m, got %v", opts.DefaultTTL)
	}
	if opts.KeyPrefix != "fpgaroute:" {
		t.Errorf("expected key prefix 'fpgaroute:', got %s", opts.KeyPrefix)
	}
}

func TestFromConfig(t *testing.T) {
	cfg := &config.CacheConfig{
		Driver:     "redis",
		Host:       "redis.local",
		Port:       6380,
		Password:   "secret",
		DB:         1,
		DefaultTTL: 30 * time.Minute,
		MaxEntries: 50000,
	}

	opts := FromConfig(cfg)

	if opts.Backend != BackendRedis {
		t.Errorf("expected backend 'redis', got %s", opts.Backend)
	}
	if opts.DefaultTTL != 30*time.Minute {
		t.Errorf("expected TTL 30m, got %v", opts.DefaultTTL)
	}
	if opts.RedisAddr != "redis.local:6380" {
		t.Errorf("expected addr 'redis.local:6380', got %s", opts.RedisAddr)
	}
	if opts.RedisDB != 1 || opts.RedisPassword != "secret" {
		t.Errorf("unexpected redis credentials: %+v", opts)
	}
	if opts.MaxEntries != 50000 {
		t.Errorf("expected max entries 50000, got %d", opts.MaxEntries)
	}
}

func TestFromConfig_KeepsDefaultsForZeroValues(t *testing.T) {
	opts := FromConfig(&config.CacheConfig{Driver: "memory"})

	if opts.DefaultTTL != 10*time.Minute {
		t.Errorf("expected default TTL, got %v", opts.DefaultTTL)
	}
	if opts.MaxEntries != 100000 {
		t.Errorf("expected default max entries, got %d", opts.MaxEntries)
	}
}

func TestNew_Memory(t *testing.T) {
	cache, err := New(&Options{Backend: BackendMemory})
	if err != nil {
		t.Fatalf("failed to create memory cache: %v", err)
	}
	defer cache.Close()

	if _, ok := cache.(*MemoryCache); !ok {
		t.Errorf("expected *MemoryCache, got %T", cache)
	}
}

func TestNew_NilOptions(t *testing.T) {
	cache, err := New(nil)
	if err != nil {
		t.Fatalf("failed to create cache with nil options: %v", err)
	}
	defer cache.Close()
}

func TestNew_UnknownBackend(t *testing.T) {
	if _, err := New(&Options{Backend: "memcached"}); err == nil {
		t.Error("expected error for unknown backend")
	}
}
