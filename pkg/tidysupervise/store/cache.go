package store

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/model"
)

// DefaultCacheTTL is how long a loaded model stays cached.
const DefaultCacheTTL = 10 * time.Minute

// Cached keeps recently loaded models in memory in front of another Store.
// Models are immutable, so cached pointers are shared freely.
type Cached struct {
	Store
	models *cache.Cache
}

// NewCached wraps s. ttl <= 0 uses DefaultCacheTTL.
func NewCached(s Store, ttl time.Duration) *Cached {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cached{Store: s, models: cache.New(ttl, 2*ttl)}
}

// SaveModel writes through and caches the model.
func (c *Cached) SaveModel(ctx context.Context, m *model.Model) error {
	if err := c.Store.SaveModel(ctx, m); err != nil {
		return err
	}
	c.models.SetDefault(m.ID(), m)
	return nil
}

// LoadModel serves from the cache when possible.
func (c *Cached) LoadModel(ctx context.Context, id string) (*model.Model, error) {
	if v, ok := c.models.Get(id); ok {
		return v.(*model.Model), nil
	}
	m, err := c.Store.LoadModel(ctx, id)
	if err != nil {
		return nil, err
	}
	c.models.SetDefault(id, m)
	return m, nil
}

// DeleteModel evicts and deletes.
func (c *Cached) DeleteModel(ctx context.Context, id string) error {
	c.models.Delete(id)
	return c.Store.DeleteModel(ctx, id)
}

// Close flushes the cache and closes the wrapped store.
func (c *Cached) Close() error {
	c.models.Flush()
	return c.Store.Close()
}

// IsCached reports whether id is currently held in memory.
func (c *Cached) IsCached(id string) bool {
	_, ok := c.models.Get(id)
	return ok
}
