package frame

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/frameparty/frameparty/internal/frame/external"
)

const defaultCacheTTL = 10 * time.Minute

// Cache keeps catalog discover pages in Redis so repeated assemblies with
// the same filters don't hammer the external API.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ PageCache = (*Cache)(nil)

func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Cache{client: client, ttl: ttl}
}

func (c *Cache) key(f external.Filters, page int) string {
	return fmt.Sprintf("catalog:discover:g%d:y%d:p%d", f.GenreID, f.Year, page)
}

func (c *Cache) Get(ctx context.Context, f external.Filters, page int) (*external.DiscoverPage, error) {
	data, err := c.client.Get(ctx, c.key(f, page)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	var resp external.DiscoverPage
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Cache) Set(ctx context.Context, f external.Filters, page int, resp external.DiscoverPage) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(f, page), data, c.ttl).Err()
}
