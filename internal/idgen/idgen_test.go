package idgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crossdbodm/odm/internal/value"
)

func TestMonotonicGeneratesNullSentinel(t *testing.T) {
	m := &Monotonic{}
	v, err := m.Generate()
	require.NoError(t, err)
	assert.True(t, v.IsNull())
	assert.True(t, m.Validate(value.Int(5)))
	assert.False(t, m.Validate(value.Int(-1)))
}

func TestRandom128SuccessiveCallsDistinct(t *testing.T) {
	r := &Random128{}
	a, err := r.Generate()
	require.NoError(t, err)
	b, err := r.Generate()
	require.NoError(t, err)
	assert.False(t, value.Equal(a, b))
	assert.True(t, r.Validate(a))
	assert.False(t, r.Validate(value.UUID(allZeroUUID)))
}

func TestRandom128NeedsRegenerationOnAllZeroSentinel(t *testing.T) {
	r := &Random128{}
	assert.True(t, r.NeedsRegeneration(value.UUID(allZeroUUID)))

	fresh, err := r.Generate()
	require.NoError(t, err)
	assert.False(t, r.NeedsRegeneration(fresh))
}

func TestSnowflakeMonotonicity(t *testing.T) {
	sf, err := NewSnowflake(1, 1)
	require.NoError(t, err)

	var last int64 = -1
	seen := make(map[int64]bool, 1000)
	for i := 0; i < 1000; i++ {
		v, err := sf.Generate()
		require.NoError(t, err)
		id, ok := v.AsInt()
		require.True(t, ok)
		assert.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
		assert.GreaterOrEqual(t, id, last)
		last = id
		assert.True(t, sf.Validate(v))
	}
	assert.Len(t, seen, 1000)
}

func TestSnowflakeRejectsOutOfRangeIDs(t *testing.T) {
	_, err := NewSnowflake(32, 0)
	assert.Error(t, err)
	_, err = NewSnowflake(0, 32)
	assert.Error(t, err)
}

func TestOpaque12SelfGeneratedForm(t *testing.T) {
	g := NewOpaque12(false)
	v, err := g.Generate()
	require.NoError(t, err)
	assert.False(t, v.IsNull())
	assert.True(t, g.Validate(v))

	s, _ := v.AsString()
	assert.Len(t, s, 24)
}

func TestOpaque12DelegatedReturnsNull(t *testing.T) {
	g := NewOpaque12(true)
	v, err := g.Generate()
	require.NoError(t, err)
	assert.True(t, v.IsNull())

	// As a validator it still recognizes backend-assigned ObjectIDs.
	assert.True(t, g.Validate(value.ObjectID("507f1f77bcf86cd799439011")))
	assert.False(t, g.Validate(value.ObjectID("not-hex")))
}

func TestPrefixedGeneratesDistinctValuesWithPrefix(t *testing.T) {
	g := NewPrefixed("usr")
	a, err := g.Generate()
	require.NoError(t, err)
	b, err := g.Generate()
	require.NoError(t, err)
	assert.False(t, value.Equal(a, b))

	s, _ := a.AsString()
	assert.Contains(t, s, "usr_")
	assert.True(t, g.Validate(a))
	assert.False(t, g.Validate(value.String("other_deadbeef")))
}

func TestNeedsGeneration(t *testing.T) {
	assert.True(t, NeedsGeneration(value.Null(), true))
	assert.True(t, NeedsGeneration(value.Value{}, false))
	assert.True(t, NeedsGeneration(value.String(""), true))
	assert.True(t, NeedsGeneration(value.String("0"), true))
	assert.False(t, NeedsGeneration(value.String("abc"), true))
	assert.False(t, NeedsGeneration(value.Int(5), true))
}

func TestNewDispatchesOnStrategyName(t *testing.T) {
	g, err := New(Options{Strategy: StrategyMonotonic})
	require.NoError(t, err)
	_, ok := g.(*Monotonic)
	assert.True(t, ok)

	g, err = New(Options{Strategy: StrategyTimeOrdered64, DatacenterID: 2, MachineID: 3})
	require.NoError(t, err)
	_, ok = g.(*Snowflake)
	assert.True(t, ok)

	_, err = New(Options{Strategy: "bogus"})
	assert.Error(t, err)
}
