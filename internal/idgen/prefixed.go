package idgen

import (
	"crypto/rand"
	"encoding/hex"
	"strings"

	"github.com/crossdbodm/odm/internal/value"
)

// Prefixed emits <prefix>_<random-128-bit-hex>, where prefix is configured
// per alias (e.g. "usr", "ord").
type Prefixed struct {
	prefix string
}

func NewPrefixed(prefix string) *Prefixed {
	return &Prefixed{prefix: prefix}
}

func (p *Prefixed) Generate() (value.Value, error) {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return value.Value{}, err
	}
	return value.String(p.prefix + "_" + hex.EncodeToString(buf[:])), nil
}

// Validate checks for the "<prefix>_" form followed by 32 hex characters.
func (p *Prefixed) Validate(v value.Value) bool {
	s, ok := v.AsString()
	if !ok {
		return false
	}
	want := p.prefix + "_"
	if !strings.HasPrefix(s, want) {
		return false
	}
	rest := s[len(want):]
	if len(rest) != 32 {
		return false
	}
	_, err := hex.DecodeString(rest)
	return err == nil
}
