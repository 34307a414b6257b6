package hf

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

type Source interface {
	Model(ctx context.Context, id string) (*Model, error)
	Dataset(ctx context.Context, id string) (*Dataset, error)
}

// Cache shares Hub lookups between the metrics of a run.
type Cache struct {
	src   Source
	group singleflight.Group

	mu      sync.Mutex
	entries map[string]any
}

func NewCache(src Source) *Cache {
	return &Cache{src: src, entries: make(map[string]any)}
}

func (c *Cache) Model(ctx context.Context, id string) (*Model, error) {
	v, err := c.load("model:"+id, func() (any, error) { return c.src.Model(ctx, id) })
	if err != nil {
		return nil, err
	}
	return v.(*Model), nil
}

func (c *Cache) Dataset(ctx context.Context, id string) (*Dataset, error) {
	v, err := c.load("dataset:"+id, func() (any, error) { return c.src.Dataset(ctx, id) })
	if err != nil {
		return nil, err
	}
	return v.(*Dataset), nil
}

func (c *Cache) load(key string, fetch func() (any, error)) (any, error) {
	c.mu.Lock()
	v, ok := c.entries[key]
	c.mu.Unlock()
	if ok {
		return v, nil
	}
	v, err, _ := c.group.Do(key, func() (any, error) {
		v, err := fetch()
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[key] = v
		c.mu.Unlock()
		return v, nil
	})
	return v, err
}
