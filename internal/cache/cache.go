package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mkravtsov/wb-review-scraper/internal/models"
)

// Bundles caches scraped review bundles in Redis so repeat requests skip a
// full browser session while the entry is fresh.
type Bundles struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewBundles(client *redis.Client, ttl time.Duration, logger *slog.Logger) *Bundles {
	return &Bundles{
		client: client,
		ttl:    ttl,
		logger: logger.With("component", "bundle_cache"),
	}
}

func bundleKey(articleID string) string {
	return "wb:bundle:" + articleID
}

// Get returns the cached bundle and whether it was present. A cache outage
// is reported as a miss with the error.
func (c *Bundles) Get(ctx context.Context, articleID string) (*models.ReviewBundle, bool, error) {
	data, err := c.client.Get(ctx, bundleKey(articleID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cache: %w", err)
	}

	var bundle models.ReviewBundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		// A corrupt entry is dropped and treated as a miss.
		c.logger.Warn("dropping corrupt cache entry", "article", articleID, "error", err)
		c.client.Del(ctx, bundleKey(articleID))
		return nil, false, nil
	}

	return &bundle, true, nil
}

// Set stores the bundle with the configured TTL.
func (c *Bundles) Set(ctx context.Context, bundle *models.ReviewBundle) error {
	data, err := json.Marshal(bundle)
	if err != nil {
		return fmt.Errorf("failed to encode bundle: %w", err)
	}

	if err := c.client.Set(ctx, bundleKey(bundle.ArticleID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write cache: %w", err)
	}

	return nil
}

// Invalidate removes the cached bundle for an article.
func (c *Bundles) Invalidate(ctx context.Context, articleID string) error {
	if err := c.client.Del(ctx, bundleKey(articleID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate cache: %w", err)
	}
	return nil
}
