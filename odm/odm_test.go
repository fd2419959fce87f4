package odm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crossdbodm/odm/internal/config"
	"github.com/crossdbodm/odm/internal/query"
	"github.com/crossdbodm/odm/internal/schema"
	"github.com/crossdbodm/odm/internal/value"
)

func memoryAlias(alias string) config.AliasConfig {
	return config.AliasConfig{
		Alias:       alias,
		BackendType: config.BackendEmbeddedSQL,
		Connection:  config.Connection{Path: ":memory:"},
		IDStrategy:  config.IDStrategySettings{Strategy: "opaque12"},
	}
}

func widgetSchema() schema.Schema {
	return schema.Schema{
		Table: "widgets",
		Fields: []schema.Field{
			{Name: "id", Kind: schema.FieldString},
			{Name: "name", Kind: schema.FieldString, Required: true},
			{Name: "qty", Kind: schema.FieldInt},
		},
	}
}

func TestDBEndToEndLifecycle(t *testing.T) {
	ctx := context.Background()
	db := New()
	require.NoError(t, db.AddDatabase(ctx, memoryAlias("primary")))
	defer db.Shutdown(ctx)

	assert.Equal(t, "primary", db.DefaultAlias())

	s := widgetSchema()
	require.NoError(t, db.CreateTable(ctx, "widgets", s, ""))

	created, err := db.Create(ctx, "widgets", value.Object(map[string]value.Value{
		"name": value.String("sprocket"),
		"qty":  value.Int(10),
	}, []string{"name", "qty"}), "")
	require.NoError(t, err)

	id, ok := created.Get("id")
	require.True(t, ok)
	assert.False(t, id.IsNull())

	found, ok, err := db.FindByID(ctx, "widgets", id, "")
	require.NoError(t, err)
	require.True(t, ok)
	name, _ := found.Get("name")
	nameStr, _ := name.AsString()
	assert.Equal(t, "sprocket", nameStr)

	affected, err := db.UpdateByID(ctx, "widgets", id, value.Object(map[string]value.Value{
		"qty": value.Int(42),
	}, []string{"qty"}), "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	results, err := db.Find(ctx, "widgets", query.Options{
		Conditions: []query.Condition{query.Single("qty", query.OpEq, value.Int(42))},
	}, "")
	require.NoError(t, err)
	require.Len(t, results, 1)

	count, err := db.Count(ctx, "widgets", query.Options{}, "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	exists, err := db.Exists(ctx, "widgets", query.Options{
		Conditions: []query.Condition{query.Single("name", query.OpEq, value.String("sprocket"))},
	}, "")
	require.NoError(t, err)
	assert.True(t, exists)

	group := query.Group(query.LogicOr,
		query.Single("qty", query.OpEq, value.Int(42)),
		query.Single("qty", query.OpEq, value.Int(999)),
	)
	grouped, err := db.FindWithGroups(ctx, "widgets", &group, query.Options{}, "")
	require.NoError(t, err)
	assert.Len(t, grouped, 1)

	deleted, err := db.DeleteByID(ctx, "widgets", id, "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	remaining, err := db.Count(ctx, "widgets", query.Options{}, "")
	require.NoError(t, err)
	assert.Equal(t, int64(0), remaining)
}

func TestDBHealthCheckAndDropTable(t *testing.T) {
	ctx := context.Background()
	db := New()
	require.NoError(t, db.AddDatabase(ctx, memoryAlias("primary")))
	defer db.Shutdown(ctx)

	results := db.HealthCheck(ctx)
	require.Len(t, results, 1)
	assert.NoError(t, results["primary"])

	require.NoError(t, db.CreateTable(ctx, "widgets", widgetSchema(), ""))
	require.NoError(t, db.DropTable(ctx, "widgets", ""))
}

func TestDBUnknownAliasFails(t *testing.T) {
	ctx := context.Background()
	db := New()
	require.NoError(t, db.AddDatabase(ctx, memoryAlias("primary")))
	defer db.Shutdown(ctx)

	_, err := db.Create(ctx, "widgets", value.Object(nil, nil), "ghost")
	assert.Error(t, err)
}
