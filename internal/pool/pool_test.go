package pool

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crossdbodm/odm/internal/adapter"
	"github.com/crossdbodm/odm/internal/cache"
	"github.com/crossdbodm/odm/internal/idgen"
	"github.com/crossdbodm/odm/internal/query"
	"github.com/crossdbodm/odm/internal/schema"
	"github.com/crossdbodm/odm/internal/value"
)

// fakeConn is a no-op connection handle for exercising the pool without a
// real backend.
type fakeConn struct{ dead bool }

func (c *fakeConn) Ping(ctx context.Context) error { return nil }
func (c *fakeConn) Close(ctx context.Context) error { return nil }

// fakeAdapter is an in-memory table store standing in for a real backend,
// letting the pool's worker algorithm (cache consult, invalidation,
// connection lifecycle) be exercised without any of the four real drivers.
type fakeAdapter struct {
	mu     sync.Mutex
	tables map[string]map[string]value.Value // table -> id string -> record
	dials  int
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{tables: make(map[string]map[string]value.Value)}
}

func (a *fakeAdapter) Connect(ctx context.Context) (adapter.Conn, error) {
	a.mu.Lock()
	a.dials++
	a.mu.Unlock()
	return &fakeConn{}, nil
}

func (a *fakeAdapter) Dialect() string { return "fake" }

func (a *fakeAdapter) CreateTable(ctx context.Context, c adapter.Conn, table string, s schema.Schema) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tables[table] = make(map[string]value.Value)
	return nil
}

func (a *fakeAdapter) DropTable(ctx context.Context, c adapter.Conn, table string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.tables, table)
	return nil
}

func (a *fakeAdapter) Create(ctx context.Context, c adapter.Conn, table string, record value.Value) (value.Value, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.tables[table] == nil {
		a.tables[table] = make(map[string]value.Value)
	}
	id, _ := record.Get("id")
	idStr, _ := id.AsString()
	a.tables[table][idStr] = record
	return record, nil
}

func (a *fakeAdapter) Find(ctx context.Context, c adapter.Conn, table string, cond *query.Condition, opts adapter.FindOptions) ([]value.Value, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []value.Value
	ev := query.Evaluator{}
	for _, rec := range a.tables[table] {
		if cond == nil {
			out = append(out, rec)
			continue
		}
		ok, err := ev.Evaluate(*cond, rec)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (a *fakeAdapter) FindByID(ctx context.Context, c adapter.Conn, table string, id value.Value) (value.Value, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	idStr, _ := id.AsString()
	rec, ok := a.tables[table][idStr]
	return rec, ok, nil
}

func (a *fakeAdapter) Update(ctx context.Context, c adapter.Conn, table string, cond *query.Condition, data value.Value) (int64, error) {
	return 0, nil
}

func (a *fakeAdapter) UpdateByID(ctx context.Context, c adapter.Conn, table string, id value.Value, data value.Value) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	idStr, _ := id.AsString()
	rec, ok := a.tables[table][idStr]
	if !ok {
		return 0, nil
	}
	fields, order, _ := rec.AsObject()
	newFields, newData, _ := data.AsObject()
	merged := make(map[string]value.Value, len(fields))
	for k, v := range fields {
		merged[k] = v
	}
	for k, v := range newFields {
		merged[k] = v
	}
	_ = newData
	a.tables[table][idStr] = value.Object(merged, order)
	return 1, nil
}

func (a *fakeAdapter) Delete(ctx context.Context, c adapter.Conn, table string, cond *query.Condition) (int64, error) {
	return 0, nil
}

func (a *fakeAdapter) DeleteByID(ctx context.Context, c adapter.Conn, table string, id value.Value) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	idStr, _ := id.AsString()
	if _, ok := a.tables[table][idStr]; !ok {
		return 0, nil
	}
	delete(a.tables[table], idStr)
	return 1, nil
}

func (a *fakeAdapter) Count(ctx context.Context, c adapter.Conn, table string, cond *query.Condition) (int64, error) {
	rows, err := a.Find(ctx, c, table, cond, adapter.FindOptions{})
	return int64(len(rows)), err
}

func (a *fakeAdapter) Exists(ctx context.Context, c adapter.Conn, table string, cond *query.Condition) (bool, error) {
	n, err := a.Count(ctx, c, table, cond)
	return n > 0, err
}

func record(id, name string) value.Value {
	return value.Object(map[string]value.Value{
		"id":   value.String(id),
		"name": value.String(name),
	}, []string{"id", "name"})
}

func newTestPool(t *testing.T, withCache bool) (*Pool, *fakeAdapter) {
	t.Helper()
	gen, err := idgen.New(idgen.Options{Strategy: idgen.StrategyMonotonic})
	require.NoError(t, err)
	return newTestPoolWithGen(t, withCache, gen)
}

func newTestPoolWithGen(t *testing.T, withCache bool, gen idgen.Generator) (*Pool, *fakeAdapter) {
	t.Helper()
	fa := newFakeAdapter()

	var cacheCfg *cache.Config
	if withCache {
		cacheCfg = &cache.Config{
			SchemaVersion: "v1",
			Strategy:      cache.StrategyLRU,
			MaxEntries:    1000,
			TTL:           cache.TTLConfig{DefaultTTL: time.Hour, CheckInterval: time.Hour},
		}
	}

	p, err := New(context.Background(), "test", fa, Config{MinConnections: 1, MaxConnections: 4, ConnectionTimeout: time.Second}, cacheCfg, gen, "v1")
	require.NoError(t, err)
	t.Cleanup(func() { p.Shutdown(context.Background()) })
	return p, fa
}

func TestCreateAndFindByID(t *testing.T) {
	p, _ := newTestPool(t, true)
	ctx := context.Background()

	created, err := p.Create(ctx, "u", record("r1", "alice"))
	require.NoError(t, err)
	idVal, _ := created.Get("id")
	idStr, _ := idVal.AsString()
	assert.Equal(t, "r1", idStr)

	got, found, err := p.FindByID(ctx, "u", value.String("r1"))
	require.NoError(t, err)
	assert.True(t, found)
	nameVal, _ := got.Get("name")
	name, _ := nameVal.AsString()
	assert.Equal(t, "alice", name)
}

func TestNegativeCacheHitStatistics(t *testing.T) {
	p, fa := newTestPool(t, true)
	ctx := context.Background()
	_ = fa.CreateTable(ctx, nil, "u", schema.Schema{})

	opts := query.Options{Conditions: []query.Condition{query.Single("name", query.OpEq, value.String("absent"))}}
	values, err := p.Find(ctx, "u", opts)
	require.NoError(t, err)
	assert.Empty(t, values)

	values, err = p.Find(ctx, "u", opts)
	require.NoError(t, err)
	assert.Empty(t, values)

	stats := p.cache.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestWriteInvalidatesRecordButSiblingSurvives(t *testing.T) {
	p, _ := newTestPool(t, true)
	ctx := context.Background()

	_, err := p.Create(ctx, "e", record("r1", "one"))
	require.NoError(t, err)
	_, err = p.Create(ctx, "e", record("r2", "two"))
	require.NoError(t, err)

	_, _, err = p.FindByID(ctx, "e", value.String("r1"))
	require.NoError(t, err)
	_, _, err = p.FindByID(ctx, "e", value.String("r2"))
	require.NoError(t, err)

	statsBefore := p.cache.Stats()

	_, err = p.UpdateByID(ctx, "e", value.String("r1"), value.Object(map[string]value.Value{
		"name": value.String("one-updated"),
	}, []string{"name"}))
	require.NoError(t, err)

	updated, found, err := p.FindByID(ctx, "e", value.String("r1"))
	require.NoError(t, err)
	require.True(t, found)
	nameVal, _ := updated.Get("name")
	name, _ := nameVal.AsString()
	assert.Equal(t, "one-updated", name)

	_, found, err = p.FindByID(ctx, "e", value.String("r2"))
	require.NoError(t, err)
	assert.True(t, found)

	statsAfter := p.cache.Stats()
	assert.Greater(t, statsAfter.Hits, statsBefore.Hits, "r2 should still be a cache hit after r1's invalidation")
}

func TestEmptyUpdateDataIsNoOpSuccess(t *testing.T) {
	p, _ := newTestPool(t, false)
	ctx := context.Background()
	_, err := p.Create(ctx, "e", record("r1", "one"))
	require.NoError(t, err)

	affected, err := p.UpdateByID(ctx, "e", value.String("r1"), value.Object(nil, nil))
	require.NoError(t, err)
	assert.Equal(t, int64(0), affected)
}

func TestFindThenCountOnSameConditionsDoNotAliasInCache(t *testing.T) {
	p, _ := newTestPool(t, true)
	ctx := context.Background()

	_, err := p.Create(ctx, "e", record("r1", "alice"))
	require.NoError(t, err)

	opts := query.Options{Conditions: []query.Condition{query.Single("name", query.OpEq, value.String("alice"))}}

	found, err := p.Find(ctx, "e", opts)
	require.NoError(t, err)
	require.Len(t, found, 1)

	count, err := p.Count(ctx, "e", opts)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "Count must not read back Find's cached Objects as its own result")

	exists, err := p.Exists(ctx, "e", opts)
	require.NoError(t, err)
	assert.True(t, exists, "Exists must not read back Find's cached Objects as its own result")
}

func TestCreateRegeneratesAllZeroUUIDSentinel(t *testing.T) {
	gen, err := idgen.New(idgen.Options{Strategy: idgen.StrategyRandom128})
	require.NoError(t, err)
	p, _ := newTestPoolWithGen(t, false, gen)
	ctx := context.Background()

	sentinel := value.Object(map[string]value.Value{
		"id":   value.UUID("00000000-0000-0000-0000-000000000000"),
		"name": value.String("alice"),
	}, []string{"id", "name"})

	created, err := p.Create(ctx, "u", sentinel)
	require.NoError(t, err)

	idVal, _ := created.Get("id")
	idStr, _ := idVal.AsString()
	assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", idStr)
}

func TestCreateRejectsRecordMissingRequiredField(t *testing.T) {
	p, _ := newTestPool(t, false)
	ctx := context.Background()

	s := schema.Schema{
		Table: "u",
		Fields: []schema.Field{
			{Name: "id", Kind: schema.FieldString},
			{Name: "name", Kind: schema.FieldString, Required: true},
		},
	}
	require.NoError(t, p.CreateTable(ctx, "u", s))

	missingName := value.Object(map[string]value.Value{"id": value.String("r1")}, []string{"id"})
	_, err := p.Create(ctx, "u", missingName)
	assert.Error(t, err)

	_, found, ferr := p.FindByID(ctx, "u", value.String("r1"))
	require.NoError(t, ferr)
	assert.False(t, found, "the invalid record must never reach the adapter")
}

func TestCreateAcceptsValidRecordAgainstKnownSchema(t *testing.T) {
	p, _ := newTestPool(t, false)
	ctx := context.Background()

	s := schema.Schema{
		Table: "u",
		Fields: []schema.Field{
			{Name: "id", Kind: schema.FieldString},
			{Name: "name", Kind: schema.FieldString, Required: true},
		},
	}
	require.NoError(t, p.CreateTable(ctx, "u", s))

	_, err := p.Create(ctx, "u", record("r1", "alice"))
	require.NoError(t, err)
}

func TestUpdatePartialValidatesOnlyPresentFields(t *testing.T) {
	p, _ := newTestPool(t, false)
	ctx := context.Background()

	maxLen := 3
	s := schema.Schema{
		Table: "u",
		Fields: []schema.Field{
			{Name: "id", Kind: schema.FieldString},
			{Name: "name", Kind: schema.FieldString, Required: true, Constraints: schema.Constraints{MaxLength: &maxLen}},
		},
	}
	require.NoError(t, p.CreateTable(ctx, "u", s))
	_, err := p.Create(ctx, "u", record("r1", "ann"))
	require.NoError(t, err)

	// Updating a field the schema doesn't mention about this record (here
	// none are omitted, just touching "name" alone) must not be rejected
	// for the required fields the payload doesn't happen to mention.
	affected, err := p.UpdateByID(ctx, "u", value.String("r1"), value.Object(map[string]value.Value{
		"name": value.String("bob"),
	}, []string{"name"}))
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	_, err = p.UpdateByID(ctx, "u", value.String("r1"), value.Object(map[string]value.Value{
		"name": value.String("toolong"),
	}, []string{"name"}))
	assert.Error(t, err, "exceeding the declared max length must be rejected")
}

func TestShutdownStopsWorkerAndRejectsNewOperations(t *testing.T) {
	p, _ := newTestPool(t, false)
	ctx := context.Background()

	_, err := p.Create(ctx, "e", record("r1", "one"))
	require.NoError(t, err)

	p.Shutdown(ctx)
	assert.Equal(t, "stopped", p.State())

	_, err = p.Create(ctx, "e", record("r2", "two"))
	assert.Error(t, err)
}

func TestPoolReusesConnectionsWithinBound(t *testing.T) {
	p, fa := newTestPool(t, false)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		_, err := p.Create(ctx, "e", record("r", "x"))
		require.NoError(t, err)
	}
	fa.mu.Lock()
	dials := fa.dials
	fa.mu.Unlock()
	assert.LessOrEqual(t, dials, 4, "connection reuse should keep dial count bounded by max_connections")
}
