package document

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/crossdbodm/odm/internal/schema"
	"github.com/crossdbodm/odm/internal/value"
)

func TestFieldKeyRemapsIDOnly(t *testing.T) {
	assert.Equal(t, "_id", fieldKey("id"))
	assert.Equal(t, "name", fieldKey("name"))
	assert.Equal(t, "id", canonicalKey("_id"))
	assert.Equal(t, "name", canonicalKey("name"))
}

func TestToBSONScalars(t *testing.T) {
	assert.Nil(t, toBSON(value.Null()))
	assert.Equal(t, true, toBSON(value.Bool(true)))
	assert.Equal(t, int64(7), toBSON(value.Int(7)))
	assert.Equal(t, 3.5, toBSON(value.Float(3.5)))
	assert.Equal(t, "hi", toBSON(value.String("hi")))
}

func TestToBSONArrayAndObject(t *testing.T) {
	arr := value.Array([]value.Value{value.Int(1), value.Int(2)})
	out := toBSON(arr)
	assert.Equal(t, bson.A{int64(1), int64(2)}, out)

	obj := value.Object(map[string]value.Value{"a": value.Int(1)}, []string{"a"})
	outObj := toBSON(obj)
	assert.Equal(t, bson.M{"a": int64(1)}, outObj)
}

func TestRegexEscapeEscapesMetacharacters(t *testing.T) {
	assert.Equal(t, `a\.b\*c`, regexEscape("a.b*c"))
}

func TestRecordToBSONOmitsNullID(t *testing.T) {
	record := value.Object(map[string]value.Value{
		"id":   value.Null(),
		"name": value.String("widget"),
	}, []string{"id", "name"})

	doc := recordToBSON(record)
	_, hasID := doc["_id"]
	assert.False(t, hasID)
	assert.Equal(t, "widget", doc["name"])
}

func TestRecordToBSONKeepsNonNullID(t *testing.T) {
	record := value.Object(map[string]value.Value{
		"id":   value.String("abc123"),
		"name": value.String("widget"),
	}, []string{"id", "name"})

	doc := recordToBSON(record)
	assert.Equal(t, "abc123", doc["_id"])
}

func TestDocToValueRoundTrip(t *testing.T) {
	s := schema.Schema{
		Table: "widgets",
		Fields: []schema.Field{
			{Name: "id", Kind: schema.FieldString},
			{Name: "name", Kind: schema.FieldString},
			{Name: "created_at", Kind: schema.FieldTimestamp},
		},
	}
	now := time.Now().UTC().Truncate(time.Millisecond)
	doc := bson.M{"_id": "abc", "name": "widget", "created_at": now}

	v := docToValue(doc, s)
	id, ok := v.Get("id")
	require.True(t, ok)
	idStr, _ := id.AsString()
	assert.Equal(t, "abc", idStr)

	created, ok := v.Get("created_at")
	require.True(t, ok)
	ts, _ := created.AsTimestamp()
	assert.True(t, ts.Equal(now))
}

func TestIDFilterConvertsCanonicalValue(t *testing.T) {
	filter := idFilter(value.String("abc"))
	assert.Equal(t, bson.M{"_id": "abc"}, filter)
}
