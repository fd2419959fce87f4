package embedded

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crossdbodm/odm/internal/odmerr"
	"github.com/crossdbodm/odm/internal/schema"
)

func newMemoryAdapter(t *testing.T) *Adapter {
	t.Helper()
	a, err := New(context.Background(), Config{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.db.Close() })
	return a
}

func widgetSchema(fields ...schema.Field) schema.Schema {
	return schema.Schema{Table: "widgets", Fields: fields}
}

func TestCreateTableAgainstExistingCompatibleTableSucceeds(t *testing.T) {
	a := newMemoryAdapter(t)
	ctx := context.Background()
	conn, err := a.Connect(ctx)
	require.NoError(t, err)
	defer conn.Close(ctx)

	s := widgetSchema(
		schema.Field{Name: "id", Kind: schema.FieldString},
		schema.Field{Name: "name", Kind: schema.FieldString, Required: true},
	)
	require.NoError(t, a.CreateTable(ctx, conn, "widgets", s))

	// A second adapter instance against the same on-disk shape (simulated
	// here by clearing the in-process "known" bookkeeping) must still see
	// the table as compatible and succeed.
	a.mu.Lock()
	delete(a.known, "widgets")
	a.mu.Unlock()
	assert.NoError(t, a.CreateTable(ctx, conn, "widgets", s))
}

func TestCreateTableAgainstExistingIncompatibleTableFails(t *testing.T) {
	a := newMemoryAdapter(t)
	ctx := context.Background()
	conn, err := a.Connect(ctx)
	require.NoError(t, err)
	defer conn.Close(ctx)

	original := widgetSchema(
		schema.Field{Name: "id", Kind: schema.FieldString},
		schema.Field{Name: "name", Kind: schema.FieldString, Required: true},
	)
	require.NoError(t, a.CreateTable(ctx, conn, "widgets", original))

	// A later process reusing the same file declares a different column
	// set for the same table name — this process never called
	// CreateTable("widgets", ...) with this shape itself, so "known" must
	// not shadow the real mismatch.
	a.mu.Lock()
	delete(a.known, "widgets")
	a.mu.Unlock()

	changed := widgetSchema(
		schema.Field{Name: "id", Kind: schema.FieldString},
		schema.Field{Name: "name", Kind: schema.FieldString, Required: true},
		schema.Field{Name: "qty", Kind: schema.FieldInt},
	)
	err = a.CreateTable(ctx, conn, "widgets", changed)
	require.Error(t, err)
	var mismatch *odmerr.SchemaMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "widgets", mismatch.Table)
}
