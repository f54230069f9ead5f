package storage

import (
	"fmt"

	"github.com/pocketbase/pocketbase/core"
	"github.com/redis/go-redis/v9"
)

// Registry keeps enrollment targets and stores in the order they are tried.
type Registry struct {
	targets []Target
	stores  []Store
	byName  map[string]Target
}

func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Target)}
}

// RegisterTarget appends t to the write chain.
func (r *Registry) RegisterTarget(t Target) error {
	if _, exists := r.byName[t.Name()]; exists {
		return fmt.Errorf("storage target %q already registered", t.Name())
	}
	r.byName[t.Name()] = t
	r.targets = append(r.targets, t)
	return nil
}

// RegisterStore appends s to the lookup order.
func (r *Registry) RegisterStore(s Store) {
	r.stores = append(r.stores, s)
}

func (r *Registry) Target(name string) (Target, error) {
	t, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("storage target %q not registered", name)
	}
	return t, nil
}

func (r *Registry) Targets() []Target {
	out := make([]Target, len(r.targets))
	copy(out, r.targets)
	return out
}

func (r *Registry) Stores() []Store {
	out := make([]Store, len(r.stores))
	copy(out, r.stores)
	return out
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.targets))
	for _, t := range r.targets {
		names = append(names, t.Name())
	}
	return names
}

// NewDefaultRegistry wires the standard chain: primary record insert,
// primary plain insert, legacy collection, then the Redis fallback when a
// client is given. Stores follow the same order without the duplicate
// primary entry.
func NewDefaultRegistry(app core.App, redisClient redis.Cmdable) *Registry {
	entries := NewEntryStore(app)
	legacy := NewLegacyStore(app)

	r := NewRegistry()
	_ = r.RegisterTarget(entries)
	_ = r.RegisterTarget(NewSQLTarget(entries))
	_ = r.RegisterTarget(legacy)
	r.RegisterStore(entries)
	r.RegisterStore(legacy)

	if redisClient != nil {
		kv := NewKVStore(redisClient)
		_ = r.RegisterTarget(kv)
		r.RegisterStore(kv)
	}
	return r
}
