package cache

import (
	"strings"
	"sync"
	"time"

	"github.com/crossdbodm/odm/internal/value"
)

// TTLConfig carries the per-alias TTL defaults.
type TTLConfig struct {
	DefaultTTL    time.Duration
	MaxTTL        time.Duration
	CheckInterval time.Duration
}

// DefaultNegativeCacheTTL is the default TTL applied to both positive and
// negative (empty-result) entries, adopted from the original's
// ttl.default_s of 300 seconds.
const DefaultNegativeCacheTTL = 300 * time.Second

// Config configures a Manager for one alias.
type Config struct {
	SchemaVersion string
	Strategy      Strategy
	MaxEntries    int
	MaxBytes      int64
	TTL           TTLConfig
	Disk          *DiskConfig // nil disables tier 2
}

// Manager is the two-tier cache manager owned exclusively by one alias. It
// is safe for concurrent use: reads may run concurrently, writes
// (Put/invalidate) are serialized internally by each tier's own mutex.
type Manager struct {
	schemaVersion string
	ttl           TTLConfig
	mem           *memoryTier
	disk          *diskTier

	stopSweep chan struct{}
	sweepOnce sync.Once
}

// New constructs a Manager. If cfg.Disk is non-nil and the tier-2 store
// cannot be opened, New fails with CacheInitError and the alias-add
// operation that called it must fail too — there is no silent fallback to
// tier-1-only operation.
func New(cfg Config) (*Manager, error) {
	ttl := cfg.TTL
	if ttl.DefaultTTL == 0 {
		ttl.DefaultTTL = DefaultNegativeCacheTTL
	}
	if ttl.CheckInterval == 0 {
		ttl.CheckInterval = 30 * time.Second
	}

	m := &Manager{
		schemaVersion: cfg.SchemaVersion,
		ttl:           ttl,
		mem:           newMemoryTier(cfg.Strategy, cfg.MaxEntries, cfg.MaxBytes),
		stopSweep:     make(chan struct{}),
	}

	if cfg.Disk != nil {
		d, err := openDiskTier(*cfg.Disk)
		if err != nil {
			return nil, err
		}
		m.disk = d
	}

	go m.sweepLoop()
	return m, nil
}

// Get consults tier 1, then (if enabled) tier 2, promoting a tier-2 hit
// into tier 1. An expired entry is treated as a miss and removed inline,
// even if the background sweeper has not yet run.
func (m *Manager) Get(key Key) ([]value.Value, bool) {
	now := time.Now()
	k := key.String()

	if e, ok := m.mem.get(k, now); ok {
		return e.Values, true
	}
	if m.disk == nil {
		return nil, false
	}
	e, ok := m.disk.get(k, now)
	if !ok {
		return nil, false
	}
	m.mem.set(k, e) // promote
	return e.Values, true
}

// Put writes an entry to tier 1 (and asynchronously to tier 2 if enabled)
// with the configured default TTL. Empty results ARE cached: negative
// caching is not distinguished from positive caching at this layer.
func (m *Manager) Put(key Key, values []value.Value) {
	m.PutWithTTL(key, values, m.ttl.DefaultTTL)
}

func (m *Manager) PutWithTTL(key Key, values []value.Value, ttl time.Duration) {
	now := time.Now()
	e := newEntry(values, ttl, now)
	k := key.String()
	m.mem.set(k, e)
	if m.disk != nil {
		m.disk.set(k, e)
	}
}

// InvalidateRecord drops one record key; does not touch query keys.
func (m *Manager) InvalidateRecord(table, idFingerprint string) {
	key := Key{SchemaVersion: m.schemaVersion, Table: table, Kind: KindRecord, Fingerprint: idFingerprint}.String()
	m.mem.remove(key)
	if m.disk != nil {
		m.disk.remove(key)
	}
}

// InvalidateTableQueries drops all query and groups keys for a table;
// keeps record keys.
func (m *Manager) InvalidateTableQueries(table string) {
	prefixQuery := m.schemaVersion + ":" + table + ":" + string(KindQuery) + ":"
	prefixGroups := m.schemaVersion + ":" + table + ":" + string(KindGroups) + ":"
	match := func(k string) bool {
		return strings.HasPrefix(k, prefixQuery) || strings.HasPrefix(k, prefixGroups)
	}
	m.mem.removeMatching(match)
	if m.disk != nil {
		m.disk.removeMatching(match)
	}
}

// InvalidateTableAll drops every key for a table.
func (m *Manager) InvalidateTableAll(table string) {
	prefix := m.schemaVersion + ":" + table + ":"
	match := func(k string) bool { return strings.HasPrefix(k, prefix) }
	m.mem.removeMatching(match)
	if m.disk != nil {
		m.disk.removeMatching(match)
	}
}

// InvalidateAll drops everything.
func (m *Manager) InvalidateAll() {
	m.mem.clear()
	if m.disk != nil {
		m.disk.clear()
	}
}

// CleanupExpired forces a sweep and returns the number of entries removed
// from tier 1 (tier-2 entries expire lazily on read since it is not kept
// in a form that is cheap to scan exhaustively on every sweep tick).
func (m *Manager) CleanupExpired() int {
	return m.mem.sweepExpired(time.Now())
}

// Stats returns the tier-1 hit/miss/eviction/byte counters.
func (m *Manager) Stats() Stats {
	return m.mem.snapshotStats()
}

func (m *Manager) sweepLoop() {
	ticker := time.NewTicker(m.ttl.CheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.CleanupExpired()
		case <-m.stopSweep:
			return
		}
	}
}

// Close stops the background sweeper and, if tier 2 is enabled, flushes
// and closes it. Called by the pool manager's shutdown path.
func (m *Manager) Close() {
	m.sweepOnce.Do(func() { close(m.stopSweep) })
	if m.disk != nil {
		m.disk.close()
	}
}
