package cache

import (
	"container/list"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Strategy selects the tier-1 eviction policy.
type Strategy string

const (
	StrategyLRU  Strategy = "lru"
	StrategyLFU  Strategy = "lfu"
	StrategyFIFO Strategy = "fifo"
)

// Stats exposes the tier-1 hit/miss/eviction counters spec.md requires on
// demand.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Bytes     int64
}

// memoryTier is the bounded tier-1 store. LRU delegates to
// hashicorp/golang-lru (the library already present in the teacher's
// transitive dependency graph, e.g. via testcontainers-go, and the natural
// choice for a production-quality LRU rather than hand-rolling one); LFU
// and FIFO have no equivalent library in the example pack, so they are
// hand-rolled container/list-based implementations.
type memoryTier struct {
	mu          sync.Mutex
	strategy    Strategy
	maxEntries  int
	maxBytes    int64
	curBytes    int64
	stats       Stats

	lru *lru.Cache[string, Entry]

	// fifo/lfu shared state
	items map[string]*list.Element
	order *list.List // front = oldest (FIFO) or least-frequent-tiebreak (LFU)

	freq map[string]int64 // LFU access counters
}

type listItem struct {
	key   string
	entry Entry
}

func newMemoryTier(strategy Strategy, maxEntries int, maxBytes int64) *memoryTier {
	m := &memoryTier{strategy: strategy, maxEntries: maxEntries, maxBytes: maxBytes}
	switch strategy {
	case StrategyLRU, "":
		m.strategy = StrategyLRU
		c, _ := lru.New[string, Entry](maxCap(maxEntries))
		m.lru = c
	case StrategyFIFO:
		m.items = make(map[string]*list.Element)
		m.order = list.New()
	case StrategyLFU:
		m.items = make(map[string]*list.Element)
		m.order = list.New()
		m.freq = make(map[string]int64)
	}
	return m
}

func maxCap(n int) int {
	if n <= 0 {
		return 1 << 20
	}
	return n
}

func (m *memoryTier) get(key string, now time.Time) (Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.strategy {
	case StrategyLRU:
		e, ok := m.lru.Get(key)
		if !ok {
			m.stats.Misses++
			return Entry{}, false
		}
		if e.expired(now) {
			m.lru.Remove(key)
			m.curBytes -= approxSize(e)
			m.stats.Misses++
			return Entry{}, false
		}
		m.stats.Hits++
		return e, true
	default:
		el, ok := m.items[key]
		if !ok {
			m.stats.Misses++
			return Entry{}, false
		}
		li := el.Value.(*listItem)
		if li.entry.expired(now) {
			m.removeElementLocked(key, el)
			m.stats.Misses++
			return Entry{}, false
		}
		m.stats.Hits++
		if m.strategy == StrategyLFU {
			m.freq[key]++
		}
		return li.entry, true
	}
}

func (m *memoryTier) set(key string, e Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	size := approxSize(e)

	switch m.strategy {
	case StrategyLRU:
		if old, ok := m.lru.Peek(key); ok {
			m.curBytes -= approxSize(old)
		}
		evicted := m.lru.Add(key, e)
		m.curBytes += size
		if evicted {
			m.stats.Evictions++
		}
		m.enforceBytesLRU()
	default:
		if el, ok := m.items[key]; ok {
			old := el.Value.(*listItem)
			m.curBytes -= approxSize(old.entry)
			old.entry = e
			m.curBytes += size
			if m.strategy == StrategyFIFO {
				// FIFO order reflects insertion, not update, so leave position.
			}
			return
		}
		el := m.order.PushBack(&listItem{key: key, entry: e})
		m.items[key] = el
		m.curBytes += size
		if m.strategy == StrategyLFU {
			m.freq[key] = 0
		}
		m.enforceBoundsListBased()
	}
}

func (m *memoryTier) enforceBytesLRU() {
	for m.maxBytes > 0 && m.curBytes > m.maxBytes {
		key, e, ok := m.lru.GetOldest()
		if !ok {
			return
		}
		m.lru.Remove(key)
		m.curBytes -= approxSize(e)
		m.stats.Evictions++
	}
}

func (m *memoryTier) enforceBoundsListBased() {
	for (m.maxEntries > 0 && len(m.items) > m.maxEntries) || (m.maxBytes > 0 && m.curBytes > m.maxBytes) {
		var victimKey string
		var victimEl *list.Element
		if m.strategy == StrategyLFU {
			victimKey, victimEl = m.leastFrequentLocked()
		} else {
			victimEl = m.order.Front()
			if victimEl == nil {
				return
			}
			victimKey = victimEl.Value.(*listItem).key
		}
		if victimEl == nil {
			return
		}
		m.removeElementLocked(victimKey, victimEl)
		m.stats.Evictions++
	}
}

func (m *memoryTier) leastFrequentLocked() (string, *list.Element) {
	var best string
	var bestEl *list.Element
	var bestFreq int64 = -1
	for el := m.order.Front(); el != nil; el = el.Next() {
		k := el.Value.(*listItem).key
		f := m.freq[k]
		if bestFreq == -1 || f < bestFreq {
			bestFreq = f
			best = k
			bestEl = el
		}
	}
	return best, bestEl
}

func (m *memoryTier) removeElementLocked(key string, el *list.Element) {
	li := el.Value.(*listItem)
	m.curBytes -= approxSize(li.entry)
	m.order.Remove(el)
	delete(m.items, key)
	delete(m.freq, key)
}

func (m *memoryTier) remove(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.strategy {
	case StrategyLRU:
		if e, ok := m.lru.Peek(key); ok {
			m.curBytes -= approxSize(e)
			m.lru.Remove(key)
		}
	default:
		if el, ok := m.items[key]; ok {
			m.removeElementLocked(key, el)
		}
	}
}

// removeMatching removes every key for which match returns true, used by
// the table-scoped invalidation primitives.
func (m *memoryTier) removeMatching(match func(key string) bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.strategy {
	case StrategyLRU:
		for _, key := range m.lru.Keys() {
			if match(key) {
				if e, ok := m.lru.Peek(key); ok {
					m.curBytes -= approxSize(e)
				}
				m.lru.Remove(key)
			}
		}
	default:
		for key, el := range m.items {
			if match(key) {
				m.removeElementLocked(key, el)
			}
		}
	}
}

func (m *memoryTier) clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.strategy {
	case StrategyLRU:
		m.lru.Purge()
	default:
		m.items = make(map[string]*list.Element)
		m.order = list.New()
		m.freq = make(map[string]int64)
	}
	m.curBytes = 0
}

// sweepExpired removes every expired entry and returns how many were removed.
func (m *memoryTier) sweepExpired(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	switch m.strategy {
	case StrategyLRU:
		for _, key := range m.lru.Keys() {
			e, ok := m.lru.Peek(key)
			if ok && e.expired(now) {
				m.curBytes -= approxSize(e)
				m.lru.Remove(key)
				removed++
			}
		}
	default:
		for key, el := range m.items {
			li := el.Value.(*listItem)
			if li.entry.expired(now) {
				m.removeElementLocked(key, el)
				removed++
			}
		}
	}
	return removed
}

func (m *memoryTier) snapshotStats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.stats
	s.Bytes = m.curBytes
	return s
}
