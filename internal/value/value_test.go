package value

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToJSONValueScalars(t *testing.T) {
	proj, err := Int(42).ToJSONValue()
	require.NoError(t, err)
	assert.Equal(t, int64(42), proj)

	proj, err = String("hi").ToJSONValue()
	require.NoError(t, err)
	assert.Equal(t, "hi", proj)

	proj, err = Null().ToJSONValue()
	require.NoError(t, err)
	assert.Nil(t, proj)
}

func TestToJSONValueRejectsNonFiniteFloat(t *testing.T) {
	_, err := Float(math.NaN()).ToJSONValue()
	require.Error(t, err)

	_, err = Float(math.Inf(1)).ToJSONValue()
	require.Error(t, err)

	_, err = Float(math.Inf(-1)).ToJSONValue()
	require.Error(t, err)
}

func TestToJSONValueSingleKeyObjectIsNotUnwrapped(t *testing.T) {
	inner := Object(map[string]Value{"name": String("a")}, []string{"name"})
	wrapper := Object(map[string]Value{"doc": inner}, []string{"doc"})

	proj, err := wrapper.ToJSONValue()
	require.NoError(t, err)

	// A single-key Object is a real field, not a document-store wrapping
	// artifact — its projection must stay {"doc": {"name": "a"}}.
	m, ok := proj.(map[string]interface{})
	require.True(t, ok)
	inner2, ok := m["doc"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "a", inner2["name"])
}

func TestToJSONValueMultiKeyObjectDoesNotUnwrap(t *testing.T) {
	obj := Object(map[string]Value{
		"name": String("a"),
		"age":  Int(5),
	}, []string{"name", "age"})

	proj, err := obj.ToJSONValue()
	require.NoError(t, err)
	m, ok := proj.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "a", m["name"])
	assert.Equal(t, int64(5), m["age"])
}

func TestToJSONValueArrayPreservesOrderAndTypes(t *testing.T) {
	arr := Array([]Value{Int(95), Int(87), Int(92)})
	proj, err := arr.ToJSONValue()
	require.NoError(t, err)
	out, ok := proj.([]interface{})
	require.True(t, ok)
	require.Len(t, out, 3)
	assert.Equal(t, int64(95), out[0])
	assert.Equal(t, int64(87), out[1])
	assert.Equal(t, int64(92), out[2])
}

func TestEqualNeverWidensNumerics(t *testing.T) {
	assert.False(t, Equal(Int(1), Float(1)))
	assert.True(t, Equal(Int(1), Int(1)))
	assert.True(t, Equal(Float(1.5), Float(1.5)))
}

func TestEqualNullDistinctFromAbsentKey(t *testing.T) {
	withNull := Object(map[string]Value{"x": Null()}, []string{"x"})
	without := Object(map[string]Value{}, nil)
	assert.False(t, Equal(withNull, without))

	_, ok := without.Get("x")
	assert.False(t, ok)
	v, ok := withNull.Get("x")
	assert.True(t, ok)
	assert.True(t, v.IsNull())
}

func TestTimestampRoundTrip(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	v := Timestamp(now)
	got, ok := v.AsTimestamp()
	require.True(t, ok)
	assert.True(t, now.Equal(got))
}
