package guard

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IshaanNene/pricetracker/internal/config"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func TestNewSelectsBackend(t *testing.T) {
	cfg := config.DefaultConfig().Guard

	g, err := New(cfg, testLogger)
	require.NoError(t, err)
	assert.IsType(t, Nop{}, g)

	cfg.Backend = "redis"
	g, err = New(cfg, testLogger)
	require.NoError(t, err)
	assert.IsType(t, &RedisGuard{}, g)
	assert.NoError(t, g.Close())

	cfg.Backend = "memcache"
	g, err = New(cfg, testLogger)
	require.NoError(t, err)
	assert.IsType(t, &MemcacheGuard{}, g)

	cfg.Backend = "etcd"
	_, err = New(cfg, testLogger)
	assert.Error(t, err)
}

func TestNop(t *testing.T) {
	ctx := context.Background()
	var g Guard = Nop{}
	require.NoError(t, g.Mark(ctx, "1"))
	recent, err := g.Recent(ctx, "1")
	require.NoError(t, err)
	assert.False(t, recent)
}

func TestMemcacheKey(t *testing.T) {
	assert.Equal(t, "p:42", memcacheKey("p:", "42"))

	spaced := memcacheKey("p:", "goa stay")
	assert.True(t, strings.HasPrefix(spaced, "p:"))
	assert.NotContains(t, spaced, " ")
	assert.Len(t, spaced, len("p:")+40)

	long := memcacheKey("p:", strings.Repeat("x", 300))
	assert.LessOrEqual(t, len(long), 250)
	assert.Equal(t, long, memcacheKey("p:", strings.Repeat("x", 300)))
}

// Requires a running redis on localhost:6379; skipped otherwise.
func TestRedisGuard(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skip("Redis is not available, skipping test")
	}
	g := NewRedisGuard(client, "pricetracker:test:", time.Minute, testLogger)
	defer g.Close()

	id := "guard-" + time.Now().Format("150405.000000000")
	recent, err := g.Recent(ctx, id)
	require.NoError(t, err)
	assert.False(t, recent)

	require.NoError(t, g.Mark(ctx, id))
	recent, err = g.Recent(ctx, id)
	require.NoError(t, err)
	assert.True(t, recent)

	client.Del(ctx, g.key(id))
}

// Requires a running memcached on localhost:11211; skipped otherwise.
func TestMemcacheGuard(t *testing.T) {
	client := memcache.New("localhost:11211")
	if _, err := client.Get("probe"); err != nil && err != memcache.ErrCacheMiss {
		t.Skip("Memcached is not available, skipping test")
	}
	g := NewMemcacheGuard(client, "pricetracker:test:", time.Minute, testLogger)
	ctx := context.Background()

	id := "guard-" + time.Now().Format("150405.000000000")
	recent, err := g.Recent(ctx, id)
	require.NoError(t, err)
	assert.False(t, recent)

	require.NoError(t, g.Mark(ctx, id))
	recent, err = g.Recent(ctx, id)
	require.NoError(t, err)
	assert.True(t, recent)

	_ = client.Delete(memcacheKey(g.prefix, id))
}
