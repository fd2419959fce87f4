package sqlshared

import (
	"encoding/json"
	"time"

	"github.com/crossdbodm/odm/internal/odmerr"
	"github.com/crossdbodm/odm/internal/schema"
	"github.com/crossdbodm/odm/internal/value"
)

// EncodeConfig toggles the handful of representation choices that differ
// between the three SQL backends: whether bool is stored as an integer
// 0/1 column and whether timestamp is stored as ISO-8601 text rather than
// a native temporal type.
type EncodeConfig struct {
	BoolAsInt       bool
	TimestampAsText bool
}

// Encode converts one canonical value into a database/sql bind parameter
// per f's declared kind. Array and object fields are JSON-encoded as text
// on every SQL backend, including Postgres — a deliberate simplification
// over the type-mapping table's native T[] column (see DESIGN.md).
func Encode(cfg EncodeConfig) Encoder {
	return func(f schema.Field, v value.Value) (interface{}, error) {
		if v.IsNull() {
			return nil, nil
		}
		switch f.Kind {
		case schema.FieldBool:
			b, _ := v.AsBool()
			if cfg.BoolAsInt {
				if b {
					return int64(1), nil
				}
				return int64(0), nil
			}
			return b, nil
		case schema.FieldTimestamp:
			t, _ := v.AsTimestamp()
			if cfg.TimestampAsText {
				return t.UTC().Format(time.RFC3339Nano), nil
			}
			return t, nil
		case schema.FieldArray:
			arr, _ := v.AsArray()
			raw := make([]interface{}, len(arr))
			for i, item := range arr {
				proj, err := item.ToJSONValue()
				if err != nil {
					return nil, err
				}
				raw[i] = proj
			}
			b, err := json.Marshal(raw)
			if err != nil {
				return nil, &odmerr.SerializationError{Message: err.Error()}
			}
			return string(b), nil
		case schema.FieldObject:
			proj, err := v.ToJSONValue()
			if err != nil {
				return nil, err
			}
			b, err := json.Marshal(proj)
			if err != nil {
				return nil, &odmerr.SerializationError{Message: err.Error()}
			}
			return string(b), nil
		case schema.FieldJSON:
			raw, _ := v.AsJSON()
			return string(raw), nil
		case schema.FieldInt:
			i, _ := v.AsInt()
			return i, nil
		case schema.FieldFloat:
			fl, _ := v.AsFloat()
			return fl, nil
		default: // string, uuid, reference
			s, _ := v.AsString()
			return s, nil
		}
	}
}
