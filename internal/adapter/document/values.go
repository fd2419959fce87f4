package document

import (
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/crossdbodm/odm/internal/schema"
	"github.com/crossdbodm/odm/internal/value"
)

// idField is the canonical primary-key field name every declared schema
// uses; Mongo's own primary key is "_id", so it alone gets remapped.
const idField = "id"
const mongoIDField = "_id"

func fieldKey(name string) string {
	if name == idField {
		return mongoIDField
	}
	return name
}

func canonicalKey(name string) string {
	if name == mongoIDField {
		return idField
	}
	return name
}

// toBSON converts one canonical value into its BSON-native representation.
func toBSON(v value.Value) interface{} {
	switch v.Kind() {
	case value.KindNull:
		return nil
	case value.KindBool:
		b, _ := v.AsBool()
		return b
	case value.KindInt:
		i, _ := v.AsInt()
		return i
	case value.KindFloat:
		f, _ := v.AsFloat()
		return f
	case value.KindString:
		s, _ := v.AsString()
		return s
	case value.KindUUID:
		s, _ := v.AsString()
		return s
	case value.KindObjectID:
		s, _ := v.AsString()
		if oid, err := bson.ObjectIDFromHex(s); err == nil {
			return oid
		}
		return s
	case value.KindBytes:
		b, _ := v.AsBytes()
		return b
	case value.KindTimestamp:
		t, _ := v.AsTimestamp()
		return t
	case value.KindArray:
		arr, _ := v.AsArray()
		out := toBSONArray(arr)
		return out
	case value.KindObject:
		fields, order, _ := v.AsObject()
		out := bson.M{}
		for _, k := range order {
			out[k] = toBSON(fields[k])
		}
		return out
	case value.KindJSON:
		raw, _ := v.AsJSON()
		var generic interface{}
		_ = bson.UnmarshalExtJSON(raw, false, &generic)
		return generic
	default:
		return nil
	}
}

func toBSONArray(items []value.Value) bson.A {
	out := make(bson.A, len(items))
	for i, item := range items {
		out[i] = toBSON(item)
	}
	return out
}

// recordToBSON converts a canonical Object record into the document
// persisted to Mongo, remapping "id" to "_id". A Null/absent id is omitted
// entirely so the driver lets the server assign an ObjectID.
func recordToBSON(record value.Value) bson.M {
	fields, order, _ := record.AsObject()
	doc := bson.M{}
	for _, k := range order {
		v := fields[k]
		if k == idField && v.IsNull() {
			continue
		}
		doc[fieldKey(k)] = toBSON(v)
	}
	return doc
}

// docToValue converts one decoded Mongo document back into a canonical
// Object value, consulting s for each field's declared kind where BSON's
// own type doesn't already disambiguate (e.g. int32 vs int64, or an
// embedded document that should be an Array vs Object per the schema).
func docToValue(doc bson.M, s schema.Schema) value.Value {
	obj := make(map[string]value.Value, len(doc))
	order := make([]string, 0, len(doc))
	for k, raw := range doc {
		name := canonicalKey(k)
		f, _ := s.FieldByName(name)
		obj[name] = bsonToCanonical(raw, f)
		order = append(order, name)
	}
	return value.Object(obj, order)
}

func bsonToCanonical(raw interface{}, f schema.Field) value.Value {
	switch rv := raw.(type) {
	case nil:
		return value.Null()
	case bool:
		return value.Bool(rv)
	case int32:
		return value.Int(int64(rv))
	case int64:
		return value.Int(rv)
	case float64:
		return value.Float(rv)
	case string:
		if f.Kind == schema.FieldUUID {
			return value.UUID(rv)
		}
		return value.String(rv)
	case bson.ObjectID:
		return value.ObjectID(rv.Hex())
	case time.Time:
		return value.Timestamp(rv)
	case bson.A:
		items := make([]value.Value, len(rv))
		for i, item := range rv {
			items[i] = bsonToCanonical(item, schema.Field{Kind: f.ElementKind})
		}
		return value.Array(items)
	case bson.M:
		return docToValue(rv, schema.Schema{Fields: f.SubFields})
	case []byte:
		return value.Bytes(rv)
	default:
		return value.Null()
	}
}

// idFilter builds the {_id: <value>} filter used by the by-ID
// operations, accepting either an ObjectID-shaped string or any other
// canonical scalar used as a caller-assigned primary key.
func idFilter(id value.Value) bson.M {
	return bson.M{mongoIDField: toBSON(id)}
}

func regexEscape(s string) string {
	return regexp.QuoteMeta(s)
}
