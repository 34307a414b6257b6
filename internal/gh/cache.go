package gh

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

type Source interface {
	Repo(ctx context.Context, owner, name string) (*Repo, error)
}

// Cache memoises successful lookups for the lifetime of a run so that several
// metrics scoring the same repository share one set of API calls.
type Cache struct {
	src   Source
	group singleflight.Group

	mu    sync.Mutex
	repos map[string]*Repo
}

func NewCache(src Source) *Cache {
	return &Cache{src: src, repos: make(map[string]*Repo)}
}

func (c *Cache) Repo(ctx context.Context, owner, name string) (*Repo, error) {
	key := owner + "/" + name
	c.mu.Lock()
	r, ok := c.repos[key]
	c.mu.Unlock()
	if ok {
		return r, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		r, err := c.src.Repo(ctx, owner, name)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.repos[key] = r
		c.mu.Unlock()
		return r, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Repo), nil
}
