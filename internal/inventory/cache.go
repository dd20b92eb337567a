package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// AvailabilityCache keeps recently computed availability figures in Redis.
// The cache is best effort: every method tolerates a nil receiver and Redis
// faults degrade to a database read, never to an error.
type AvailabilityCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewAvailabilityCache constructs the cache. ttl bounds staleness between a
// committed movement and an availability read served from cache.
func NewAvailabilityCache(client *redis.Client, ttl time.Duration) *AvailabilityCache {
	return &AvailabilityCache{client: client, ttl: ttl}
}

func availabilityKey(itemID, warehouseID int64, batch string) string {
	return fmt.Sprintf("inventory:avail:%d:%d:%s", itemID, warehouseID, batch)
}

// Get returns the cached availability and whether it was present.
func (c *AvailabilityCache) Get(ctx context.Context, itemID, warehouseID int64, batch string) (decimal.Decimal, bool) {
	if c == nil || c.client == nil {
		return decimal.Zero, false
	}
	raw, err := c.client.Get(ctx, availabilityKey(itemID, warehouseID, batch)).Result()
	if err != nil {
		return decimal.Zero, false
	}
	qty, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false
	}
	return qty, true
}

// Set stores the availability under the key's TTL.
func (c *AvailabilityCache) Set(ctx context.Context, itemID, warehouseID int64, batch string, qty decimal.Decimal) {
	if c == nil || c.client == nil {
		return
	}
	c.client.Set(ctx, availabilityKey(itemID, warehouseID, batch), qty.String(), c.ttl)
}

// Invalidate drops the batch-specific entry and the aggregate entry for the
// item/warehouse pair, since a batch movement changes both figures.
func (c *AvailabilityCache) Invalidate(ctx context.Context, itemID, warehouseID int64, batch string) {
	if c == nil || c.client == nil {
		return
	}
	keys := []string{availabilityKey(itemID, warehouseID, "")}
	if batch != "" {
		keys = append(keys, availabilityKey(itemID, warehouseID, batch))
	}
	c.client.Del(ctx, keys...)
}
