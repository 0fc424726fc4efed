package engine

import (
	"context"

	"github.com/patrickmn/go-cache"
)

// CoreCache memoises instance type -> cores for one scope unit. Entries never
// expire; a racing double resolve just stores the same value twice.
type CoreCache struct {
	items *cache.Cache
}

func NewCoreCache() *CoreCache {
	return &CoreCache{items: cache.New(cache.NoExpiration, 0)}
}

func (c *CoreCache) Get(instanceType string) (int, bool) {
	v, ok := c.items.Get(instanceType)
	if !ok {
		return 0, false
	}
	cores, ok := v.(int)
	return cores, ok
}

func (c *CoreCache) Set(instanceType string, cores int) {
	c.items.Set(instanceType, cores, cache.NoExpiration)
}

// Resolve returns the cached value or calls resolve and stores the result.
// Failures are not cached.
func (c *CoreCache) Resolve(ctx context.Context, instanceType string, resolve func(ctx context.Context, instanceType string) (int, error)) (int, error) {
	if cores, ok := c.Get(instanceType); ok {
		return cores, nil
	}
	cores, err := resolve(ctx, instanceType)
	if err != nil {
		return 0, err
	}
	if cores < 0 {
		cores = 0
	}
	c.Set(instanceType, cores)
	return cores, nil
}

func (c *CoreCache) Len() int {
	return c.items.ItemCount()
}
