// Package observability provides hooks for metrics, tracing, and logging.
//
// This package enables optional instrumentation without adding hard dependencies
// on specific observability backends. Consumers register hooks at startup to
// receive events about container saves and loads, cache operations and
// market-data batch fetches.
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    observability.SetPersistHooks(&myPersistHooks{})
//	    observability.SetCacheHooks(&myCacheHooks{})
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	start := time.Now()
//	err := save(path, root)
//	observability.Persist().OnSave(path, entries, time.Since(start), err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Persist Hooks
// =============================================================================

// PersistHooks receives events from container saves and loads.
type PersistHooks interface {
	// OnSave records a save of entries nodes to path.
	OnSave(path string, entries int, duration time.Duration, err error)

	// OnLoad records a load of path. failures counts isolated per-key errors.
	OnLoad(path string, failures int, duration time.Duration, err error)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from cache operations.
type CacheHooks interface {
	// OnCacheHit records a cache hit.
	OnCacheHit(ctx context.Context, keyType string)

	// OnCacheMiss records a cache miss.
	OnCacheMiss(ctx context.Context, keyType string)

	// OnCacheSet records a cache write.
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// =============================================================================
// Fetch Hooks
// =============================================================================

// FetchHooks receives events from batched market-data downloads.
type FetchHooks interface {
	OnBatchStart(ctx context.Context, batch, fields int)
	OnBatchComplete(ctx context.Context, batch, rows int, cached bool, duration time.Duration, err error)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopPersistHooks is a no-op implementation of PersistHooks.
type NoopPersistHooks struct{}

func (NoopPersistHooks) OnSave(string, int, time.Duration, error) {}
func (NoopPersistHooks) OnLoad(string, int, time.Duration, error) {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// NoopFetchHooks is a no-op implementation of FetchHooks.
type NoopFetchHooks struct{}

func (NoopFetchHooks) OnBatchStart(context.Context, int, int) {}
func (NoopFetchHooks) OnBatchComplete(context.Context, int, int, bool, time.Duration, error) {
}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	persistHooks PersistHooks = NoopPersistHooks{}
	cacheHooks   CacheHooks   = NoopCacheHooks{}
	fetchHooks   FetchHooks   = NoopFetchHooks{}
	hooksMu      sync.RWMutex
)

// SetPersistHooks registers custom persist hooks.
// This should be called once at application startup before any save or load.
func SetPersistHooks(h PersistHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		persistHooks = h
	}
}

// SetCacheHooks registers custom cache hooks.
// This should be called once at application startup before any cache operations.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// SetFetchHooks registers custom fetch hooks.
func SetFetchHooks(h FetchHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		fetchHooks = h
	}
}

// Persist returns the registered persist hooks.
func Persist() PersistHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return persistHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// Fetch returns the registered fetch hooks.
func Fetch() FetchHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return fetchHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	persistHooks = NoopPersistHooks{}
	cacheHooks = NoopCacheHooks{}
	fetchHooks = NoopFetchHooks{}
}
