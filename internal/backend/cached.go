package backend

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// Cached is a read-through Provider decorator for case reads. Entries are scoped to
// the caller's access token, since a backend may filter rows per caller. Any
// successful insert through the same decorator flushes the cache, so a list after a
// create sees the new row.
type Cached struct {
	Provider
	cache *cache.Cache

	// generation changes on every flush; reads started before it skip the store.
	mu         sync.Mutex
	generation uint64
}

func NewCached(p Provider, ttl time.Duration) *Cached {
	return &Cached{
		Provider: p,
		cache:    cache.New(ttl, 2*ttl),
	}
}

func listKey(accessToken string) string {
	return "cases:all:" + accessToken
}

func caseKey(accessToken string, id int64) string {
	return "cases:" + strconv.FormatInt(id, 10) + ":" + accessToken
}

func (c *Cached) currentGeneration() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// store keeps v unless a flush happened since gen was read.
func (c *Cached) store(gen uint64, key string, v interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation == gen {
		c.cache.SetDefault(key, v)
	}
}

func (c *Cached) SelectCases(ctx context.Context, accessToken string) ([]Case, error) {
	key := listKey(accessToken)
	if x, found := c.cache.Get(key); found {
		return cloneCases(x.([]Case)), nil
	}

	gen := c.currentGeneration()
	cases, err := c.Provider.SelectCases(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	c.store(gen, key, cloneCases(cases))
	return cases, nil
}

func (c *Cached) SelectCase(ctx context.Context, accessToken string, id int64) (*Case, error) {
	key := caseKey(accessToken, id)
	if x, found := c.cache.Get(key); found {
		cs := x.(Case)
		return &cs, nil
	}

	gen := c.currentGeneration()
	cs, err := c.Provider.SelectCase(ctx, accessToken, id)
	if err != nil {
		return nil, err
	}
	c.store(gen, key, *cs)
	return cs, nil
}

func (c *Cached) InsertCase(ctx context.Context, accessToken string, nc NewCase) (*Case, error) {
	cs, err := c.Provider.InsertCase(ctx, accessToken, nc)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.generation++
	c.cache.Flush()
	c.mu.Unlock()
	return cs, nil
}

func cloneCases(in []Case) []Case {
	out := make([]Case, len(in))
	copy(out, in)
	return out
}
