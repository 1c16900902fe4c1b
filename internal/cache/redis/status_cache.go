package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/openrange/orbcore/internal/domain"
)

// statusTTL bounds how long a stale snapshot survives after the engine stops
// refreshing it.
const statusTTL = 5 * time.Minute

// StatusCache stores the latest engine status snapshot as JSON under a
// well-known key so external dashboards can poll it without touching the
// engine's event queue.
type StatusCache struct {
	rdb keyValueClient
	key string
}

type keyValueClient interface {
	set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	get(ctx context.Context, key string) ([]byte, error)
}

// NewStatusCache creates a StatusCache keyed by the given symbol.
func NewStatusCache(c *Client, symbol string) *StatusCache {
	return &StatusCache{rdb: c, key: "orbcore:status:" + symbol}
}

func (c *Client) set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

func (c *Client) get(ctx context.Context, key string) ([]byte, error) {
	return c.rdb.Get(ctx, key).Bytes()
}

// Store writes the snapshot, replacing any previous one.
func (sc *StatusCache) Store(ctx context.Context, snap domain.StatusSnapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("redis: marshal status snapshot: %w", err)
	}
	if err := sc.rdb.set(ctx, sc.key, payload, statusTTL); err != nil {
		return fmt.Errorf("redis: store status snapshot: %w", err)
	}
	return nil
}

// Load reads the most recent snapshot, if any.
func (sc *StatusCache) Load(ctx context.Context) (domain.StatusSnapshot, error) {
	var snap domain.StatusSnapshot
	payload, err := sc.rdb.get(ctx, sc.key)
	if err != nil {
		return snap, fmt.Errorf("redis: load status snapshot: %w", err)
	}
	if err := json.Unmarshal(payload, &snap); err != nil {
		return snap, fmt.Errorf("redis: unmarshal status snapshot: %w", err)
	}
	return snap, nil
}
