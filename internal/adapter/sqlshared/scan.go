package sqlshared

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/crossdbodm/odm/internal/odmerr"
	"github.com/crossdbodm/odm/internal/schema"
	"github.com/crossdbodm/odm/internal/value"
)

// BoolScan discriminates how a backend surfaces its native bool column back
// through database/sql.
type BoolScan int

const (
	BoolScanInt BoolScan = iota
	BoolScanNative
)

// ScanConfig mirrors EncodeConfig's representation choices on the read path.
type ScanConfig struct {
	BoolScan      BoolScan
	TimestampText bool
}

// ScanRows decodes every row of rows into a canonical Object value keyed by
// column name, consulting s for each column's declared field kind.
func ScanRows(rows *sql.Rows, s schema.Schema, cfg ScanConfig) ([]value.Value, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, &odmerr.DataConversionError{Message: err.Error()}
	}
	fieldKinds := make([]schema.Field, len(cols))
	for i, c := range cols {
		f, _ := s.FieldByName(c)
		fieldKinds[i] = f
	}

	var out []value.Value
	for rows.Next() {
		dest := make([]interface{}, len(cols))
		for i := range cols {
			dest[i] = scanDest(fieldKinds[i].Kind, cfg)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, &odmerr.DataConversionError{Message: err.Error()}
		}
		obj := make(map[string]value.Value, len(cols))
		order := make([]string, 0, len(cols))
		for i, c := range cols {
			v, err := toCanonical(fieldKinds[i], dest[i], cfg)
			if err != nil {
				return nil, err
			}
			obj[c] = v
			order = append(order, c)
		}
		out = append(out, value.Object(obj, order))
	}
	if err := rows.Err(); err != nil {
		return nil, &odmerr.DataConversionError{Message: err.Error()}
	}
	return out, nil
}

func scanDest(kind schema.FieldKind, cfg ScanConfig) interface{} {
	switch kind {
	case schema.FieldInt:
		return new(sql.NullInt64)
	case schema.FieldFloat:
		return new(sql.NullFloat64)
	case schema.FieldBool:
		if cfg.BoolScan == BoolScanNative {
			return new(sql.NullBool)
		}
		return new(sql.NullInt64)
	case schema.FieldTimestamp:
		if cfg.TimestampText {
			return new(sql.NullString)
		}
		return new(sql.NullTime)
	default: // string, uuid, json, array, object, reference
		return new(sql.NullString)
	}
}

func toCanonical(f schema.Field, dest interface{}, cfg ScanConfig) (value.Value, error) {
	switch d := dest.(type) {
	case *sql.NullInt64:
		if !d.Valid {
			return value.Null(), nil
		}
		if f.Kind == schema.FieldBool {
			return value.Bool(d.Int64 != 0), nil
		}
		return value.Int(d.Int64), nil
	case *sql.NullFloat64:
		if !d.Valid {
			return value.Null(), nil
		}
		return value.Float(d.Float64), nil
	case *sql.NullBool:
		if !d.Valid {
			return value.Null(), nil
		}
		return value.Bool(d.Bool), nil
	case *sql.NullTime:
		if !d.Valid {
			return value.Null(), nil
		}
		return value.Timestamp(d.Time), nil
	case *sql.NullString:
		if !d.Valid {
			return value.Null(), nil
		}
		return stringToCanonical(f, d.String)
	default:
		return value.Null(), nil
	}
}

func stringToCanonical(f schema.Field, s string) (value.Value, error) {
	switch f.Kind {
	case schema.FieldTimestamp:
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return value.Value{}, &odmerr.DataConversionError{Field: f.Name, Message: err.Error()}
		}
		return value.Timestamp(t), nil
	case schema.FieldArray:
		return decodeJSONArray(f, s)
	case schema.FieldObject:
		return decodeJSONObject(f, s)
	case schema.FieldJSON:
		return value.JSON(json.RawMessage(s)), nil
	case schema.FieldUUID:
		return value.UUID(s), nil
	default: // string, reference
		return value.String(s), nil
	}
}

func decodeJSONArray(f schema.Field, s string) (value.Value, error) {
	var raw []interface{}
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return value.Value{}, &odmerr.DataConversionError{Field: f.Name, Message: err.Error()}
	}
	items := make([]value.Value, len(raw))
	for i, item := range raw {
		items[i] = genericJSONToValue(item, f.ElementKind)
	}
	return value.Array(items), nil
}

func decodeJSONObject(f schema.Field, s string) (value.Value, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return value.Value{}, &odmerr.DataConversionError{Field: f.Name, Message: err.Error()}
	}
	obj := make(map[string]value.Value, len(raw))
	order := make([]string, 0, len(raw))
	for k, v := range raw {
		obj[k] = genericJSONToValue(v, schema.FieldJSON)
		order = append(order, k)
	}
	return value.Object(obj, order), nil
}

// genericJSONToValue converts a json.Unmarshal-produced generic value into
// a canonical Value. kind refines float64->Int when the declared element
// kind says so; everything else is structurally inferred from the JSON
// shape, since nested object sub-schemas aren't tracked per-key.
func genericJSONToValue(raw interface{}, kind schema.FieldKind) value.Value {
	switch rv := raw.(type) {
	case nil:
		return value.Null()
	case bool:
		return value.Bool(rv)
	case float64:
		if kind == schema.FieldInt {
			return value.Int(int64(rv))
		}
		return value.Float(rv)
	case string:
		return value.String(rv)
	case []interface{}:
		items := make([]value.Value, len(rv))
		for i, it := range rv {
			items[i] = genericJSONToValue(it, schema.FieldJSON)
		}
		return value.Array(items)
	case map[string]interface{}:
		obj := make(map[string]value.Value, len(rv))
		order := make([]string, 0, len(rv))
		for k, v := range rv {
			obj[k] = genericJSONToValue(v, schema.FieldJSON)
			order = append(order, k)
		}
		return value.Object(obj, order)
	default:
		return value.Null()
	}
}
