package idgen

import (
	"github.com/google/uuid"

	"github.com/crossdbodm/odm/internal/value"
)

// Random128 generates version-4 random UUIDs, formatted as the canonical
// 36-character hyphenated string. The teacher's dependency surface never
// hand-rolls UUID generation (testcontainers-go pulls in google/uuid
// transitively); this promotes that library to a direct dependency rather
// than writing a crypto/rand-based generator from scratch.
type Random128 struct{}

var allZeroUUID = "00000000-0000-0000-0000-000000000000"

func (r *Random128) Generate() (value.Value, error) {
	return value.UUID(uuid.NewString()), nil
}

// Validate rejects the all-zero value; any other well-formed 36-char UUID
// string is accepted.
func (r *Random128) Validate(v value.Value) bool {
	s, ok := v.AsString()
	if !ok {
		return false
	}
	if s == allZeroUUID {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

// NeedsRegeneration reports whether v is the all-zero sentinel UUID, which
// a caller may supply on Create to mean "no id" just as they would an
// absent or Null field.
func (r *Random128) NeedsRegeneration(v value.Value) bool {
	s, ok := v.AsString()
	return ok && s == allZeroUUID
}
