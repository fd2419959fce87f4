package idgen

import (
	"fmt"
	"sync"
	"time"

	"github.com/crossdbodm/odm/internal/value"
)

// epoch is the fixed reference point for the 41-bit millisecond timestamp
// field. Chosen arbitrarily (matches the custom-epoch convention common to
// snowflake-style generators); what matters is that it stays fixed for the
// lifetime of any IDs already issued.
var epoch = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

const (
	timestampBits  = 41
	datacenterBits = 5
	machineBits    = 5
	sequenceBits   = 12

	maxDatacenter = 1<<datacenterBits - 1
	maxMachine    = 1<<machineBits - 1
	maxSequence   = 1<<sequenceBits - 1

	machineShift    = sequenceBits
	datacenterShift = sequenceBits + machineBits
	timestampShift  = sequenceBits + machineBits + datacenterBits
)

// Snowflake implements the time-ordered 64-bit strategy: a 41-bit
// millisecond timestamp, 5-bit datacenter id, 5-bit machine id, and a
// 12-bit per-millisecond sequence. On clock-backwards detection it busy-
// waits for the clock to catch up rather than emitting a duplicate or
// erroring, matching the original generator's behavior.
type Snowflake struct {
	mu           sync.Mutex
	datacenterID uint8
	machineID    uint8
	lastMillis   int64
	sequence     uint16
}

func NewSnowflake(datacenterID, machineID uint8) (*Snowflake, error) {
	if datacenterID > maxDatacenter {
		return nil, fmt.Errorf("idgen: datacenter id %d exceeds %d-bit range", datacenterID, datacenterBits)
	}
	if machineID > maxMachine {
		return nil, fmt.Errorf("idgen: machine id %d exceeds %d-bit range", machineID, machineBits)
	}
	return &Snowflake{datacenterID: datacenterID, machineID: machineID, lastMillis: -1}, nil
}

func (s *Snowflake) nowMillis() int64 {
	return time.Since(epoch).Milliseconds()
}

func (s *Snowflake) Generate() (value.Value, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowMillis()
	for now < s.lastMillis {
		// Clock moved backwards (NTP step, VM pause). Busy-wait until it
		// catches up rather than risk a duplicate ID.
		time.Sleep(time.Millisecond)
		now = s.nowMillis()
	}

	if now == s.lastMillis {
		s.sequence = (s.sequence + 1) & maxSequence
		if s.sequence == 0 {
			// Sequence exhausted within this millisecond; spin to the next one.
			for now <= s.lastMillis {
				now = s.nowMillis()
			}
		}
	} else {
		s.sequence = 0
	}
	s.lastMillis = now

	id := (now << timestampShift) |
		(int64(s.datacenterID) << datacenterShift) |
		(int64(s.machineID) << machineShift) |
		int64(s.sequence)

	return value.Int(id), nil
}

// Validate accepts any non-negative 64-bit integer whose timestamp
// component does not exceed the 41-bit range.
func (s *Snowflake) Validate(v value.Value) bool {
	i, ok := v.AsInt()
	if !ok || i < 0 {
		return false
	}
	ts := i >> timestampShift
	return ts < (1 << timestampBits)
}
