package cache

import (
	"time"

	"github.com/crossdbodm/odm/internal/value"
)

// Entry is one cached value along with its absolute expiration. Values is
// a single canonical value for record-kind entries and a sequence for
// query/groups-kind entries; negative (empty) results are represented by
// an empty Values slice and are cached exactly like non-empty ones.
type Entry struct {
	Values    []value.Value
	ExpiresAt time.Time
}

func (e Entry) expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

func newEntry(values []value.Value, ttl time.Duration, now time.Time) Entry {
	return Entry{Values: values, ExpiresAt: now.Add(ttl)}
}

// approxSize estimates the in-memory footprint of an entry for the
// memory tier's byte-bound accounting. It does not need to be exact, only
// monotonic in the data it measures.
func approxSize(e Entry) int64 {
	var total int64
	for _, v := range e.Values {
		total += int64(len(v.String())) + 16
	}
	return total
}
