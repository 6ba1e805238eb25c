package geostore

import (
	"context"
	"log/slog"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mohammed-shakir/terrai-alerts/internal/cache/keys"
	"github.com/mohammed-shakir/terrai-alerts/internal/core/observability"
)

// RemoteCache is the shared second-level store, normally Redis.
type RemoteCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
}

type entry struct {
	geom    *Geometry
	expires time.Time
}

// Cached fronts a Lookup with an in-process LRU and an optional remote cache.
// Geostore geometries are immutable per hash, so entries only age out by TTL.
// Failed lookups are never cached.
type Cached struct {
	next   Lookup
	logger *slog.Logger
	ttl    time.Duration
	now    func() time.Time

	mu     sync.Mutex
	local  *lru.Cache[string, entry]
	remote RemoteCache
}

func NewCached(logger *slog.Logger, next Lookup, size int, ttl time.Duration, remote RemoteCache) *Cached {
	if size <= 0 {
		size = 512
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	c, _ := lru.New[string, entry](size)
	return &Cached{next: next, logger: logger, ttl: ttl, now: time.Now, local: c, remote: remote}
}

func (c *Cached) Geometry(ctx context.Context, hash string) (*Geometry, error) {
	if g, ok := c.getLocal(hash); ok {
		observability.IncGeostoreCache("l1", true)
		return g, nil
	}
	observability.IncGeostoreCache("l1", false)

	key := keys.Geostore(hash)
	if c.remote != nil {
		if g, ok := c.getRemote(ctx, key); ok {
			observability.IncGeostoreCache("l2", true)
			c.putLocal(hash, g)
			return g, nil
		}
		observability.IncGeostoreCache("l2", false)
	}

	g, err := c.next.Geometry(ctx, hash)
	if err != nil {
		return nil, err
	}
	c.putLocal(hash, g)
	if c.remote != nil {
		if b, err := json.Marshal(g); err == nil {
			if err := c.remote.Set(ctx, key, b, c.ttl); err != nil {
				c.logger.WarnContext(ctx, "geostore cache write failed", "key", key, "err", err)
			}
		}
	}
	return g, nil
}

func (c *Cached) getLocal(hash string) (*Geometry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.local.Get(hash)
	if !ok {
		return nil, false
	}
	if c.now().After(e.expires) {
		c.local.Remove(hash)
		return nil, false
	}
	return e.geom, true
}

func (c *Cached) putLocal(hash string, g *Geometry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.local.Add(hash, entry{geom: g, expires: c.now().Add(c.ttl)})
}

// remote errors degrade to a miss
func (c *Cached) getRemote(ctx context.Context, key string) (*Geometry, bool) {
	b, ok, err := c.remote.Get(ctx, key)
	if err != nil {
		c.logger.WarnContext(ctx, "geostore cache read failed", "key", key, "err", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var g Geometry
	if err := json.Unmarshal(b, &g); err != nil || len(g.GeoJSON) == 0 {
		return nil, false
	}
	return &g, true
}
