package idgen

import "github.com/crossdbodm/odm/internal/value"

// Monotonic delegates ID assignment to the backend's native auto-increment
// (or equivalent) column. Generate always returns Null as a sentinel
// meaning "let the backend choose". The document adapter omits a Null id
// from its insert and splices the backend-assigned id back into the
// returned record. The database/sql-backed adapters bind the Null id like
// any other column value and return the record as submitted, id still Null.
type Monotonic struct{}

func (m *Monotonic) Generate() (value.Value, error) {
	return value.Null(), nil
}

// Validate accepts any non-negative integer; Null is also accepted since
// it is the pre-assignment sentinel.
func (m *Monotonic) Validate(v value.Value) bool {
	if v.IsNull() {
		return true
	}
	i, ok := v.AsInt()
	return ok && i >= 0
}
