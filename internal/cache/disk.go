package cache

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/crossdbodm/odm/internal/odmerr"
	"github.com/crossdbodm/odm/internal/value"
)

// DiskConfig configures the optional tier-2 store.
type DiskConfig struct {
	Path           string
	MaxMB          int
	ClearOnStart   bool
	CompressionLvl int
}

// diskRecord is the on-disk, JSON-line representation of one cache entry.
// It is intentionally flat so the append-only log can be read back without
// a schema migration step.
type diskRecord struct {
	Key       string      `json:"key"`
	Values    []string    `json:"values"` // JSON-projected values, re-hydrated as Json-kind on read
	ExpiresAt time.Time   `json:"expires_at"`
	Tombstone bool        `json:"tombstone,omitempty"`
}

// diskTier is an append-only log of JSON-line records with periodic
// compaction, matching the spec's "append-only with periodic compaction"
// requirement. Tier-2 writes are asynchronous relative to the read path:
// callers invoke set/remove/removeMatching which enqueue onto a buffered channel drained
// by a single background writer goroutine.
type diskTier struct {
	mu       sync.RWMutex
	path     string
	index    map[string]Entry
	logFile  *os.File
	writer   *bufio.Writer
	writes   chan diskRecord
	done     chan struct{}
	compactN int
}

func openDiskTier(cfg DiskConfig) (*diskTier, error) {
	if cfg.Path == "" {
		return nil, &odmerr.CacheInitError{Err: errPathRequired}
	}
	if cfg.ClearOnStart {
		_ = os.RemoveAll(cfg.Path)
	}
	if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
		return nil, &odmerr.CacheInitError{Err: err}
	}
	logPath := filepath.Join(cfg.Path, "tier2.log")
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, &odmerr.CacheInitError{Err: err}
	}

	d := &diskTier{
		path:    cfg.Path,
		index:   make(map[string]Entry),
		logFile: f,
		writer:  bufio.NewWriter(f),
		writes:  make(chan diskRecord, 1024),
		done:    make(chan struct{}),
	}
	if err := d.replay(); err != nil {
		f.Close()
		return nil, &odmerr.CacheInitError{Err: err}
	}
	go d.writeLoop()
	return d, nil
}

var errPathRequired = &pathRequiredError{}

type pathRequiredError struct{}

func (*pathRequiredError) Error() string { return "cache: tier-2 path is required when enabled" }

func (d *diskTier) replay() error {
	if _, err := d.logFile.Seek(0, 0); err != nil {
		return err
	}
	scanner := bufio.NewScanner(d.logFile)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		var rec diskRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			continue // tolerate a torn last line from an unclean shutdown
		}
		if rec.Tombstone {
			delete(d.index, rec.Key)
			continue
		}
		values := make([]value.Value, len(rec.Values))
		for i, raw := range rec.Values {
			values[i] = value.JSON([]byte(raw))
		}
		d.index[rec.Key] = Entry{Values: values, ExpiresAt: rec.ExpiresAt}
	}
	if _, err := d.logFile.Seek(0, 2); err != nil {
		return err
	}
	return scanner.Err()
}

func (d *diskTier) writeLoop() {
	for {
		select {
		case rec := <-d.writes:
			d.mu.Lock()
			enc, err := json.Marshal(rec)
			if err == nil {
				d.writer.Write(enc)
				d.writer.WriteByte('\n')
				d.writer.Flush()
			}
			d.compactN++
			needsCompact := d.compactN >= 10000
			d.mu.Unlock()
			if needsCompact {
				d.compact()
			}
		case <-d.done:
			return
		}
	}
}

func (d *diskTier) get(key string, now time.Time) (Entry, bool) {
	d.mu.RLock()
	e, ok := d.index[key]
	d.mu.RUnlock()
	if !ok || e.expired(now) {
		return Entry{}, false
	}
	return e, true
}

func (d *diskTier) set(key string, e Entry) {
	d.mu.Lock()
	d.index[key] = e
	d.mu.Unlock()

	rec := diskRecord{Key: key, ExpiresAt: e.ExpiresAt}
	for _, v := range e.Values {
		proj, err := v.ToJSONValue()
		if err != nil {
			continue
		}
		b, _ := json.Marshal(proj)
		rec.Values = append(rec.Values, string(b))
	}
	select {
	case d.writes <- rec:
	default:
		// Writer backlog full; the in-memory index is already updated so
		// reads stay correct, we just drop this particular durability write.
	}
}

func (d *diskTier) remove(key string) {
	d.mu.Lock()
	delete(d.index, key)
	d.mu.Unlock()
	select {
	case d.writes <- diskRecord{Key: key, Tombstone: true}:
	default:
	}
}

func (d *diskTier) removeMatching(match func(key string) bool) {
	d.mu.Lock()
	var toRemove []string
	for k := range d.index {
		if match(k) {
			toRemove = append(toRemove, k)
		}
	}
	for _, k := range toRemove {
		delete(d.index, k)
	}
	d.mu.Unlock()
	for _, k := range toRemove {
		select {
		case d.writes <- diskRecord{Key: k, Tombstone: true}:
		default:
		}
	}
}

func (d *diskTier) clear() {
	d.mu.Lock()
	d.index = make(map[string]Entry)
	d.mu.Unlock()
	d.compact()
}

// compact rewrites the log from the current in-memory index, dropping
// tombstones and superseded entries — the periodic compaction spec.md
// requires for an append-only tier.
func (d *diskTier) compact() {
	d.mu.Lock()
	defer d.mu.Unlock()

	tmpPath := filepath.Join(d.path, "tier2.compact.tmp")
	f, err := os.Create(tmpPath)
	if err != nil {
		return
	}
	w := bufio.NewWriter(f)
	for key, e := range d.index {
		rec := diskRecord{Key: key, ExpiresAt: e.ExpiresAt}
		for _, v := range e.Values {
			proj, err := v.ToJSONValue()
			if err != nil {
				continue
			}
			b, _ := json.Marshal(proj)
			rec.Values = append(rec.Values, string(b))
		}
		enc, err := json.Marshal(rec)
		if err != nil {
			continue
		}
		w.Write(enc)
		w.WriteByte('\n')
	}
	w.Flush()
	f.Close()

	d.logFile.Close()
	logPath := filepath.Join(d.path, "tier2.log")
	os.Rename(tmpPath, logPath)

	newF, err := os.OpenFile(logPath, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err == nil {
		d.logFile = newF
		d.writer = bufio.NewWriter(newF)
	}
	d.compactN = 0
}

func (d *diskTier) close() {
	close(d.done)
	d.mu.Lock()
	defer d.mu.Unlock()
	d.writer.Flush()
	d.logFile.Close()
}
