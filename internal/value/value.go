// Package value implements the canonical tagged-union value type that is
// the only interchange format crossing an adapter boundary. Every backend
// adapter reads and writes this type on its result and parameter paths so
// that callers never observe a backend-native representation.
package value

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/crossdbodm/odm/internal/odmerr"
)

// Kind discriminates the variant carried by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindBytes
	KindTimestamp
	KindUUID
	KindObjectID
	KindArray
	KindObject
	KindJSON
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "Null"
	case KindBool:
		return "Bool"
	case KindInt:
		return "Int"
	case KindFloat:
		return "Float"
	case KindString:
		return "String"
	case KindBytes:
		return "Bytes"
	case KindTimestamp:
		return "Timestamp"
	case KindUUID:
		return "Uuid"
	case KindObjectID:
		return "ObjectId"
	case KindArray:
		return "Array"
	case KindObject:
		return "Object"
	case KindJSON:
		return "Json"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Value is the canonical tagged-union value. Only the field matching Kind
// is meaningful; constructors below are the supported way to build one.
type Value struct {
	kind  Kind
	b     bool
	i     int64
	f     float64
	s     string
	bytes []byte
	ts    time.Time
	arr   []Value
	obj   map[string]Value
	// objOrder preserves the insertion order used when the value was built,
	// purely so JSON projection output is deterministic for tests; it is
	// not semantically significant (object key order is not significant
	// per the data model).
	objOrder []string
	raw      json.RawMessage
}

func Null() Value                { return Value{kind: KindNull} }
func Bool(b bool) Value           { return Value{kind: KindBool, b: b} }
func Int(i int64) Value           { return Value{kind: KindInt, i: i} }
func Float(f float64) Value       { return Value{kind: KindFloat, f: f} }
func String(s string) Value       { return Value{kind: KindString, s: s} }
func Bytes(b []byte) Value        { return Value{kind: KindBytes, bytes: append([]byte(nil), b...)} }
func Timestamp(t time.Time) Value { return Value{kind: KindTimestamp, ts: t} }
func UUID(s string) Value         { return Value{kind: KindUUID, s: s} }
func ObjectID(s string) Value     { return Value{kind: KindObjectID, s: s} }

func Array(items []Value) Value {
	cp := append([]Value(nil), items...)
	return Value{kind: KindArray, arr: cp}
}

// Object builds a keyed mapping. Key order of the input order slice is
// preserved for JSON emission but carries no semantic meaning.
func Object(fields map[string]Value, order []string) Value {
	cp := make(map[string]Value, len(fields))
	for k, v := range fields {
		cp[k] = v
	}
	ord := order
	if ord == nil {
		ord = make([]string, 0, len(fields))
		for k := range fields {
			ord = append(ord, k)
		}
		sort.Strings(ord)
	}
	return Value{kind: KindObject, obj: cp, objOrder: ord}
}

func JSON(raw json.RawMessage) Value {
	return Value{kind: KindJSON, raw: append(json.RawMessage(nil), raw...)}
}

func (v Value) Kind() Kind { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) AsBool() (bool, bool)         { return v.b, v.kind == KindBool }
func (v Value) AsInt() (int64, bool)         { return v.i, v.kind == KindInt }
func (v Value) AsFloat() (float64, bool)     { return v.f, v.kind == KindFloat }
func (v Value) AsString() (string, bool) {
	switch v.kind {
	case KindString, KindUUID, KindObjectID:
		return v.s, true
	default:
		return "", false
	}
}
func (v Value) AsBytes() ([]byte, bool)      { return v.bytes, v.kind == KindBytes }
func (v Value) AsTimestamp() (time.Time, bool) { return v.ts, v.kind == KindTimestamp }
func (v Value) AsArray() ([]Value, bool)     { return v.arr, v.kind == KindArray }
func (v Value) AsObject() (map[string]Value, []string, bool) {
	return v.obj, v.objOrder, v.kind == KindObject
}
func (v Value) AsJSON() (json.RawMessage, bool) { return v.raw, v.kind == KindJSON }

// Get returns a field of an Object value, or Null with ok=false if the key
// is absent or the receiver is not an Object. Null is distinct from absent:
// callers that need to tell the two apart should check ok.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindObject {
		return Null(), false
	}
	val, ok := v.obj[key]
	return val, ok
}

// Equal reports deep structural equality between two canonical values.
// Numeric widening is never implicit: Int(1) and Float(1) are unequal.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindBool:
		return a.b == b.b
	case KindInt:
		return a.i == b.i
	case KindFloat:
		return a.f == b.f || (math.IsNaN(a.f) && math.IsNaN(b.f))
	case KindString, KindUUID, KindObjectID:
		return a.s == b.s
	case KindBytes:
		if len(a.bytes) != len(b.bytes) {
			return false
		}
		for i := range a.bytes {
			if a.bytes[i] != b.bytes[i] {
				return false
			}
		}
		return true
	case KindTimestamp:
		return a.ts.Equal(b.ts)
	case KindArray:
		if len(a.arr) != len(b.arr) {
			return false
		}
		for i := range a.arr {
			if !Equal(a.arr[i], b.arr[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(a.obj) != len(b.obj) {
			return false
		}
		for k, av := range a.obj {
			bv, ok := b.obj[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	case KindJSON:
		return string(a.raw) == string(b.raw)
	default:
		return false
	}
}

// ToJSONValue projects a canonical value into a plain Go value suitable for
// json.Marshal.
func (v Value) ToJSONValue() (interface{}, error) {
	switch v.kind {
	case KindNull:
		return nil, nil
	case KindBool:
		return v.b, nil
	case KindInt:
		return v.i, nil
	case KindFloat:
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			return nil, &odmerr.ValueConversionError{Message: fmt.Sprintf("float %v has no JSON representation", v.f)}
		}
		return v.f, nil
	case KindString, KindUUID, KindObjectID:
		return v.s, nil
	case KindBytes:
		return v.bytes, nil
	case KindTimestamp:
		return v.ts.UTC().Format(time.RFC3339Nano), nil
	case KindArray:
		out := make([]interface{}, len(v.arr))
		for i, item := range v.arr {
			proj, err := item.ToJSONValue()
			if err != nil {
				return nil, err
			}
			out[i] = proj
		}
		return out, nil
	case KindObject:
		out := make(map[string]interface{}, len(v.obj))
		for k, fv := range v.obj {
			proj, err := fv.ToJSONValue()
			if err != nil {
				return nil, err
			}
			out[k] = proj
		}
		return out, nil
	case KindJSON:
		var generic interface{}
		if err := json.Unmarshal(v.raw, &generic); err != nil {
			return nil, &odmerr.ValueConversionError{Message: fmt.Sprintf("invalid raw json: %v", err)}
		}
		return generic, nil
	default:
		return nil, &odmerr.ValueConversionError{Message: fmt.Sprintf("unknown kind %v", v.kind)}
	}
}

// MarshalJSON implements json.Marshaler via ToJSONValue, so a Value nested
// inside any other json.Marshal call projects correctly.
func (v Value) MarshalJSON() ([]byte, error) {
	proj, err := v.ToJSONValue()
	if err != nil {
		return nil, err
	}
	return json.Marshal(proj)
}

// String renders a value for diagnostics (tracing attributes, log lines).
// It is not a serialization format.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindBool:
		return fmt.Sprintf("%t", v.b)
	case KindInt:
		return fmt.Sprintf("%d", v.i)
	case KindFloat:
		return fmt.Sprintf("%g", v.f)
	case KindString:
		return v.s
	case KindUUID:
		return v.s
	case KindObjectID:
		return v.s
	case KindBytes:
		return fmt.Sprintf("bytes(%d)", len(v.bytes))
	case KindTimestamp:
		return v.ts.Format(time.RFC3339)
	case KindArray:
		return fmt.Sprintf("array(%d)", len(v.arr))
	case KindObject:
		return fmt.Sprintf("object(%d)", len(v.obj))
	case KindJSON:
		return string(v.raw)
	default:
		return "?"
	}
}
