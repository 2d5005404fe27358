package session

import (
	"context"
	"sync"
	"time"

	"casebook/internal/pkg/logger"

	"github.com/patrickmn/go-cache"
)

// Registry hands out one started Store per client id. Stores idle for longer than
// the TTL are evicted and stopped.
//
// stores owns the live stores; idle only carries one expiring marker per client.
// go-cache reports an expired marker as missing before its janitor runs, so Get
// checks stores for a leftover and stops it before creating the replacement.
type Registry struct {
	source Source
	logger logger.ILogger

	mu        sync.Mutex
	stores    map[string]*Store
	idle      *cache.Cache
	onCreated []func(*Store)
}

func NewRegistry(source Source, idleTTL time.Duration, log logger.ILogger) *Registry {
	r := &Registry{
		source: source,
		logger: log,
		stores: make(map[string]*Store),
		idle:   cache.New(idleTTL, idleTTL/2+time.Second),
	}
	r.idle.OnEvicted(func(clientID string, _ interface{}) {
		r.evict(clientID)
	})
	return r
}

// Get returns the store for clientID, creating and starting it on first use.
// Each call extends the store's idle deadline.
func (r *Registry) Get(clientID string) *Store {
	r.mu.Lock()
	defer r.mu.Unlock()

	store, live := r.stores[clientID]
	if _, fresh := r.idle.Get(clientID); fresh && live {
		r.idle.SetDefault(clientID, struct{}{})
		return store
	}
	if live {
		store.Stop()
		r.logger.Debug("SESSION", "Session store expired", map[string]interface{}{"client_id": clientID})
	}

	store = NewStore(clientID, r.source, r.logger)
	for _, fn := range r.onCreated {
		fn(store)
	}
	store.Start(context.Background())
	r.stores[clientID] = store
	r.idle.SetDefault(clientID, struct{}{})
	return store
}

// evict stops the store of clientID unless Get has refreshed it meanwhile.
func (r *Registry) evict(clientID string) {
	r.mu.Lock()
	if _, fresh := r.idle.Get(clientID); fresh {
		r.mu.Unlock()
		return
	}
	store := r.stores[clientID]
	delete(r.stores, clientID)
	r.mu.Unlock()

	if store != nil {
		store.Stop()
		r.logger.Debug("SESSION", "Session store evicted", map[string]interface{}{"client_id": clientID})
	}
}

// OnStoreCreated runs fn for every new store before it starts.
func (r *Registry) OnStoreCreated(fn func(*Store)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onCreated = append(r.onCreated, fn)
}

func (r *Registry) Remove(clientID string) {
	r.idle.Delete(clientID)
	r.evict(clientID)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stores)
}

// Close stops every store.
func (r *Registry) Close() {
	r.mu.Lock()
	stores := r.stores
	r.stores = make(map[string]*Store)
	r.idle.Flush()
	r.mu.Unlock()

	for _, store := range stores {
		store.Stop()
	}
}
