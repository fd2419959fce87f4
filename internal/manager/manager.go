// Package manager implements the process-wide pool manager: the single
// registry mapping alias name to (pool, adapter, cache manager, id
// generator), through which every other component reaches an alias by
// name. It is the only place the alias namespace is defined.
package manager

import (
	"context"
	"sync"

	"github.com/crossdbodm/odm/internal/config"
	"github.com/crossdbodm/odm/internal/idgen"
	"github.com/crossdbodm/odm/internal/odmerr"
	"github.com/crossdbodm/odm/internal/pool"
)

// Manager owns every registered alias's pool for the lifetime of the
// process. Aliases are append-only: once added they are never replaced,
// only removed wholesale on Shutdown.
type Manager struct {
	mu           sync.RWMutex
	pools        map[string]*pool.Pool
	defaultAlias string
}

// New constructs an empty Manager with no registered aliases.
func New() *Manager {
	return &Manager{pools: make(map[string]*pool.Pool)}
}

// AddDatabase creates the pool, starts its worker, and initializes the
// cache and id generator for cfg.Alias. It fails if the alias already
// exists or if any sub-initialization (adapter connect, cache tier-2 open)
// fails — there is no partial registration left behind on failure.
func (m *Manager) AddDatabase(ctx context.Context, cfg config.AliasConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.pools[cfg.Alias]; exists {
		return &odmerr.ConfigError{Message: "alias " + cfg.Alias + " already registered"}
	}

	a, err := newAdapter(ctx, cfg)
	if err != nil {
		return err
	}

	idGen, err := idgen.New(cfg.IDStrategy.ToIdgenOptions(cfg.BackendType))
	if err != nil {
		return &odmerr.ConfigError{Message: err.Error()}
	}

	p, err := pool.New(ctx, cfg.Alias, a, cfg.Pool.ToPoolConfig(), cfg.Cache.ToCacheConfig(cfg.SchemaVersion), idGen, cfg.SchemaVersion)
	if err != nil {
		return err
	}

	m.pools[cfg.Alias] = p
	if m.defaultAlias == "" {
		m.defaultAlias = cfg.Alias
	}
	return nil
}

// Get resolves alias to its pool, or the default alias's pool when alias
// is empty. Returns AliasNotFoundError when no such alias (or no default)
// is registered.
func (m *Manager) Get(alias string) (*pool.Pool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if alias == "" {
		alias = m.defaultAlias
	}
	if alias == "" {
		return nil, &odmerr.AliasNotFoundError{Alias: alias}
	}
	p, ok := m.pools[alias]
	if !ok {
		return nil, &odmerr.AliasNotFoundError{Alias: alias}
	}
	return p, nil
}

// DefaultAlias returns the alias resolved when callers omit one — the
// first alias registered, unless overridden by SetDefaultAlias.
func (m *Manager) DefaultAlias() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaultAlias
}

// SetDefaultAlias changes which registered alias resolves for callers that
// omit one. Fails if alias isn't registered.
func (m *Manager) SetDefaultAlias(alias string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pools[alias]; !ok {
		return &odmerr.AliasNotFoundError{Alias: alias}
	}
	m.defaultAlias = alias
	return nil
}

// HealthCheck pings every registered alias's backend and returns a
// per-alias liveness map; a nil error for an alias means it is reachable.
func (m *Manager) HealthCheck(ctx context.Context) map[string]error {
	m.mu.RLock()
	snapshot := make(map[string]*pool.Pool, len(m.pools))
	for alias, p := range m.pools {
		snapshot[alias] = p
	}
	m.mu.RUnlock()

	results := make(map[string]error, len(snapshot))
	var wg sync.WaitGroup
	var resultsMu sync.Mutex
	for alias, p := range snapshot {
		wg.Add(1)
		go func(alias string, p *pool.Pool) {
			defer wg.Done()
			err := p.HealthCheck(ctx)
			resultsMu.Lock()
			results[alias] = err
			resultsMu.Unlock()
		}(alias, p)
	}
	wg.Wait()
	return results
}

// Shutdown closes every alias's operation channel, awaits its worker
// draining any already-enqueued operations, releases all connections, and
// flushes tier-2 caches. After Shutdown the Manager registers no aliases.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	pools := m.pools
	m.pools = make(map[string]*pool.Pool)
	m.defaultAlias = ""
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, p := range pools {
		wg.Add(1)
		go func(p *pool.Pool) {
			defer wg.Done()
			p.Shutdown(ctx)
		}(p)
	}
	wg.Wait()
}
