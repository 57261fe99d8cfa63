package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/docgraph/backend/internal/metrics"
	"github.com/docgraph/backend/internal/storage/models"
	"github.com/docgraph/backend/pkg/logger"
	"github.com/docgraph/backend/pkg/utils"
)

const (
	keyPrefix     = "mdgraph:"
	generationKey = keyPrefix + "generation"
)

// Client caches graph exports and search results between rebuilds. Entries are keyed by the
// index generation, which Invalidate bumps after every successful commit. A write computed
// before a commit therefore lands under a generation nobody reads again.
type Client struct {
	client *redis.Client
	ttl    time.Duration
}

func NewClient(ctx context.Context, host string, port int, password string, db int, ttl time.Duration) (*Client, error) {
	addr := fmt.Sprintf("%s:%d", host, port)
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis client initialized", zap.String("addr", addr))

	return &Client{client: client, ttl: ttl}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

func graphKey(gen int64) string {
	return keyPrefix + strconv.FormatInt(gen, 10) + ":graph"
}

func searchKey(gen int64, query string, limit int) string {
	return keyPrefix + strconv.FormatInt(gen, 10) + ":search:" + utils.HashKey(query, strconv.Itoa(limit))
}

// Generation must be read before the query whose result will be cached.
func (c *Client) Generation(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, generationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read cache generation: %w", err)
	}
	return gen, nil
}

func (c *Client) GetGraph(ctx context.Context, gen int64) (*models.Graph, bool, error) {
	var g models.Graph
	ok, err := c.get(ctx, graphKey(gen), &g, "graph")
	if !ok || err != nil {
		return nil, false, err
	}
	return &g, true, nil
}

func (c *Client) SetGraph(ctx context.Context, gen int64, g *models.Graph) error {
	return c.set(ctx, graphKey(gen), g)
}

func (c *Client) GetSearch(ctx context.Context, gen int64, query string, limit int) ([]models.SearchHit, bool, error) {
	var hits []models.SearchHit
	ok, err := c.get(ctx, searchKey(gen, query, limit), &hits, "search")
	if !ok || err != nil {
		return nil, false, err
	}
	return hits, true, nil
}

func (c *Client) SetSearch(ctx context.Context, gen int64, query string, limit int, hits []models.SearchHit) error {
	return c.set(ctx, searchKey(gen, query, limit), hits)
}

func (c *Client) get(ctx context.Context, key string, dst any, cacheType string) (bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.CacheMisses.WithLabelValues(cacheType).Inc()
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get cache entry: %w", err)
	}

	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("failed to unmarshal cache entry: %w", err)
	}

	metrics.CacheHits.WithLabelValues(cacheType).Inc()
	logger.Debug("Cache hit", zap.String("key", key))
	return true, nil
}

func (c *Client) set(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set cache entry: %w", err)
	}
	return nil
}

// Invalidate starts a new generation, then drops the entries of earlier ones.
func (c *Client) Invalidate(ctx context.Context) error {
	gen, err := c.client.Incr(ctx, generationKey).Result()
	if err != nil {
		return fmt.Errorf("failed to bump cache generation: %w", err)
	}

	iter := c.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		if key := iter.Val(); stale(key, gen) {
			keys = append(keys, key)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to iterate cache keys: %w", err)
	}

	if len(keys) > 0 {
		if err := c.client.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("failed to delete cache keys: %w", err)
		}
	}

	logger.Info("Graph cache invalidated", zap.Int64("generation", gen), zap.Int("keys", len(keys)))
	return nil
}

// stale reports whether key belongs to a generation older than current.
func stale(key string, current int64) bool {
	if key == generationKey {
		return false
	}
	rest, ok := strings.CutPrefix(key, keyPrefix)
	if !ok {
		return false
	}
	genPart, _, _ := strings.Cut(rest, ":")
	gen, err := strconv.ParseInt(genPart, 10, 64)
	if err != nil {
		return true
	}
	return gen < current
}
