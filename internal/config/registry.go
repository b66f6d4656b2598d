package config

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/callsight/callsight/pkg/store"
)

// ErrDriverNotRegistered is returned by [Registry.OpenStorage] when no
// factory has been registered under the requested driver name.
var ErrDriverNotRegistered = errors.New("config: storage driver not registered")

// Stores bundles the four artifact store views a storage driver provides,
// plus optional lifecycle hooks.
type Stores struct {
	Calls       store.CallStore
	Transcripts store.TranscriptStore
	Summaries   store.SummaryStore
	Locations   store.LocationStore

	// Ping probes the backing storage for readiness checks. Nil when the
	// driver has no meaningful probe (e.g., in-memory).
	Ping func(ctx context.Context) error

	// Close releases backend resources. Nil when there is nothing to
	// release.
	Close func()
}

// StoreFactory constructs the store bundle for one storage driver.
type StoreFactory func(ctx context.Context, cfg StorageConfig) (Stores, error)

// Registry maps storage driver names to their constructor functions.
// It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	storage map[StorageDriver]StoreFactory
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{storage: make(map[StorageDriver]StoreFactory)}
}

// RegisterStorage registers a storage driver factory under driver.
// Subsequent calls with the same driver overwrite the previous registration.
func (r *Registry) RegisterStorage(driver StorageDriver, factory StoreFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.storage[driver] = factory
}

// OpenStorage instantiates the store bundle using the factory registered
// under cfg.Driver. Returns [ErrDriverNotRegistered] if no factory has been
// registered for that driver.
func (r *Registry) OpenStorage(ctx context.Context, cfg StorageConfig) (Stores, error) {
	r.mu.RLock()
	factory, ok := r.storage[cfg.Driver]
	r.mu.RUnlock()
	if !ok {
		return Stores{}, fmt.Errorf("%w: %q", ErrDriverNotRegistered, cfg.Driver)
	}
	return factory(ctx, cfg)
}
