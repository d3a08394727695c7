// Package guard remembers which products were priced recently so that a
// repeated run inside the configured interval does not hit the vendor again.
package guard

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/redis/go-redis/v9"

	"github.com/IshaanNene/pricetracker/internal/config"
)

// Guard tracks recent successful scrapes.
type Guard interface {
	// Recent reports whether productID was marked within the interval.
	Recent(ctx context.Context, productID string) (bool, error)
	// Mark records a successful scrape of productID.
	Mark(ctx context.Context, productID string) error
	Close() error
}

// New builds the guard selected by cfg.Backend.
func New(cfg config.GuardConfig, logger *slog.Logger) (Guard, error) {
	switch cfg.Backend {
	case "", "none":
		return Nop{}, nil
	case "redis":
		return NewRedisGuard(redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}), cfg.KeyPrefix, cfg.MinInterval, logger), nil
	case "memcache":
		return NewMemcacheGuard(memcache.New(cfg.Memcache.Servers...), cfg.KeyPrefix, cfg.MinInterval, logger), nil
	default:
		return nil, fmt.Errorf("unknown guard backend %q", cfg.Backend)
	}
}

// Nop never reports a product as recent.
type Nop struct{}

func (Nop) Recent(context.Context, string) (bool, error) { return false, nil }
func (Nop) Mark(context.Context, string) error           { return nil }
func (Nop) Close() error                                 { return nil }

// --- Redis ---

// RedisGuard keeps one expiring key per product.
type RedisGuard struct {
	client   *redis.Client
	prefix   string
	interval time.Duration
	logger   *slog.Logger
}

// NewRedisGuard wraps an existing client.
func NewRedisGuard(client *redis.Client, prefix string, interval time.Duration, logger *slog.Logger) *RedisGuard {
	return &RedisGuard{
		client:   client,
		prefix:   prefix,
		interval: interval,
		logger:   logger.With("component", "redis_guard"),
	}
}

func (g *RedisGuard) key(productID string) string { return g.prefix + productID }

func (g *RedisGuard) Recent(ctx context.Context, productID string) (bool, error) {
	n, err := g.client.Exists(ctx, g.key(productID)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return n == 1, nil
}

func (g *RedisGuard) Mark(ctx context.Context, productID string) error {
	at := time.Now().UTC().Format(time.RFC3339)
	if err := g.client.Set(ctx, g.key(productID), at, g.interval).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	g.logger.Debug("product marked", "product_id", productID, "ttl", g.interval)
	return nil
}

func (g *RedisGuard) Close() error { return g.client.Close() }

// --- Memcached ---

// MemcacheGuard keeps one expiring item per product.
type MemcacheGuard struct {
	client   *memcache.Client
	prefix   string
	interval time.Duration
	logger   *slog.Logger
}

// NewMemcacheGuard wraps an existing client.
func NewMemcacheGuard(client *memcache.Client, prefix string, interval time.Duration, logger *slog.Logger) *MemcacheGuard {
	return &MemcacheGuard{
		client:   client,
		prefix:   prefix,
		interval: interval,
		logger:   logger.With("component", "memcache_guard"),
	}
}

func (g *MemcacheGuard) Recent(_ context.Context, productID string) (bool, error) {
	_, err := g.client.Get(memcacheKey(g.prefix, productID))
	if errors.Is(err, memcache.ErrCacheMiss) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("memcache get: %w", err)
	}
	return true, nil
}

func (g *MemcacheGuard) Mark(_ context.Context, productID string) error {
	err := g.client.Set(&memcache.Item{
		Key:        memcacheKey(g.prefix, productID),
		Value:      []byte(time.Now().UTC().Format(time.RFC3339)),
		Expiration: int32(g.interval.Seconds()),
	})
	if err != nil {
		return fmt.Errorf("memcache set: %w", err)
	}
	g.logger.Debug("product marked", "product_id", productID, "ttl", g.interval)
	return nil
}

// Close is a no-op; the memcache client holds only idle pooled connections.
func (g *MemcacheGuard) Close() error { return nil }

// memcacheKey hashes keys memcached would reject: longer than 250 bytes or
// containing spaces or control characters.
func memcacheKey(prefix, productID string) string {
	key := prefix + productID
	if len(key) <= 250 && printable(key) {
		return key
	}
	sum := sha1.Sum([]byte(productID))
	return prefix + hex.EncodeToString(sum[:])
}

func printable(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] <= ' ' || s[i] == 0x7f {
			return false
		}
	}
	return true
}
