package docindex

import (
	"fmt"
	"sync"

	"github.com/andreyvit/docindex/schema"
	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
)

const DefaultRegistrySize = 1024

type registryKey struct {
	def   uint64
	table uint64
}

// Registry caches compiled indexes by definition fingerprint and table
// shape, so that equal definitions compile once.
type Registry struct {
	opts  Options
	cache *lru.Cache[registryKey, *Index]

	mu     sync.Mutex
	hits   uint64
	misses uint64
}

func NewRegistry(size int, opts Options) (*Registry, error) {
	if size <= 0 {
		size = DefaultRegistrySize
	}
	cache, err := lru.New[registryKey, *Index](size)
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}
	return &Registry{opts: opts, cache: cache}, nil
}

// Get returns the compiled index for def over table. Validation errors are
// not cached.
func (r *Registry) Get(def *Definition, table *schema.Table) (*Index, error) {
	key := registryKey{def.Fingerprint(), xxhash.Sum64String(table.Describe())}
	if idx, ok := r.cache.Get(key); ok {
		r.count(true)
		return idx, nil
	}
	r.count(false)
	idx, err := Compile(def, table, r.opts)
	if err != nil {
		return nil, err
	}
	r.cache.Add(key, idx)
	return idx, nil
}

func (r *Registry) Forget(def *Definition, table *schema.Table) {
	r.cache.Remove(registryKey{def.Fingerprint(), xxhash.Sum64String(table.Describe())})
}

func (r *Registry) Len() int {
	return r.cache.Len()
}

func (r *Registry) Stats() (hits, misses uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hits, r.misses
}

func (r *Registry) count(hit bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if hit {
		r.hits++
	} else {
		r.misses++
	}
}
