package idgen

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"sync/atomic"
	"time"

	"github.com/crossdbodm/odm/internal/value"
)

// processRandom5 is the 5-byte per-process random component shared by every
// Opaque12 value generated in this process, matching the ObjectID
// convention of one random value per process rather than per-ID.
var processRandom5 = func() [5]byte {
	var b [5]byte
	_, _ = rand.Read(b[:])
	return b
}()

var opaque12Counter uint32

// Opaque12 implements the 12-byte opaque identifier: 4-byte seconds-since-
// epoch timestamp, 5-byte per-process random, 3-byte monotonic counter,
// emitted as 24 lowercase hex characters.
//
// When configured for the document-store backend, generation is delegated
// to the backend driver (which assigns an ObjectID implicitly on
// insert-without-id); this type is then used purely as a validator. For
// the SQL backends the system self-generates the value here.
type Opaque12 struct {
	delegate bool
}

func NewOpaque12(delegateToBackend bool) *Opaque12 {
	return &Opaque12{delegate: delegateToBackend}
}

func (o *Opaque12) Generate() (value.Value, error) {
	if o.delegate {
		return value.Null(), nil
	}

	var buf [12]byte
	binary.BigEndian.PutUint32(buf[0:4], uint32(time.Now().Unix()))
	copy(buf[4:9], processRandom5[:])

	c := atomic.AddUint32(&opaque12Counter, 1) & 0x00FFFFFF
	buf[9] = byte(c >> 16)
	buf[10] = byte(c >> 8)
	buf[11] = byte(c)

	return value.ObjectID(hex.EncodeToString(buf[:])), nil
}

// Validate matches the 24-lowercase-hex-char form regardless of whether
// generation is self-managed or delegated.
func (o *Opaque12) Validate(v value.Value) bool {
	s, ok := v.AsString()
	if !ok || len(s) != 24 {
		return false
	}
	for _, r := range s {
		isHexLower := (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f')
		if !isHexLower {
			return false
		}
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
