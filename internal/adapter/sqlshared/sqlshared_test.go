package sqlshared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crossdbodm/odm/internal/adapter"
	"github.com/crossdbodm/odm/internal/odmerr"
	"github.com/crossdbodm/odm/internal/query"
	"github.com/crossdbodm/odm/internal/schema"
	"github.com/crossdbodm/odm/internal/value"
)

func questionMarkDialect() query.Dialect {
	return query.Dialect{
		Name:        "test",
		Placeholder: func(n int) string { return "?" },
	}
}

func widgetsSchema() schema.Schema {
	return schema.Schema{
		Table: "widgets",
		Fields: []schema.Field{
			{Name: "id", Kind: schema.FieldString},
			{Name: "name", Kind: schema.FieldString, Required: true},
			{Name: "sku", Kind: schema.FieldString, Unique: true},
			{Name: "qty", Kind: schema.FieldInt, Indexed: true},
		},
		Indexes: []schema.Index{
			{Name: "idx_widgets_name_qty", Fields: []string{"name", "qty"}},
		},
	}
}

func identityEncoder(f schema.Field, v value.Value) (interface{}, error) {
	switch f.Kind {
	case schema.FieldInt:
		i, _ := v.AsInt()
		return i, nil
	default:
		s, _ := v.AsString()
		return s, nil
	}
}

func TestQuoteEscapesEmbeddedQuotes(t *testing.T) {
	assert.Equal(t, `"widgets"`, Quote("widgets"))
	assert.Equal(t, `"weird""name"`, Quote(`weird"name`))
}

func TestBuildCreateTableRendersColumnsAndIndexes(t *testing.T) {
	colType := func(f schema.Field) string { return "TEXT" }
	stmts := BuildCreateTable(widgetsSchema(), colType)
	require.NotEmpty(t, stmts)
	assert.Contains(t, stmts[0], `CREATE TABLE IF NOT EXISTS "widgets"`)
	assert.Contains(t, stmts[0], `"id" TEXT PRIMARY KEY`)
	assert.Contains(t, stmts[0], `"name" TEXT NOT NULL`)
	assert.Contains(t, stmts[0], `"sku" TEXT UNIQUE`)

	var sawFieldIndex, sawCompositeIndex bool
	for _, s := range stmts[1:] {
		if s == fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (%s)`, Quote("idx_widgets_qty"), Quote("widgets"), Quote("qty")) {
			sawFieldIndex = true
		}
		if s == fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (%s)`, Quote("idx_widgets_name_qty"), Quote("widgets"), `"name", "qty"`) {
			sawCompositeIndex = true
		}
	}
	assert.True(t, sawFieldIndex, "expected a field-level index statement for qty")
	assert.True(t, sawCompositeIndex, "expected the composite index statement")
}

func TestDropTableSQL(t *testing.T) {
	assert.Equal(t, `DROP TABLE IF EXISTS "widgets"`, DropTableSQL("widgets"))
}

func TestBuildInsertOnlySchemaDeclaredFields(t *testing.T) {
	record := value.Object(map[string]value.Value{
		"name":    value.String("sprocket"),
		"qty":     value.Int(5),
		"ignored": value.String("drop me"),
	}, []string{"name", "qty", "ignored"})

	sqlText, args, err := BuildInsert("widgets", widgetsSchema(), record, identityEncoder, func(n int) string { return "?" })
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "widgets" ("name", "qty") VALUES (?, ?)`, sqlText)
	assert.Equal(t, []interface{}{"sprocket", int64(5)}, args)
}

func TestBuildUpdateByIDAppendsIDLast(t *testing.T) {
	data := value.Object(map[string]value.Value{"qty": value.Int(9)}, []string{"qty"})
	sqlText, args, err := BuildUpdateByID("widgets", widgetsSchema(), value.String("abc"), data, identityEncoder, questionMarkDialect())
	require.NoError(t, err)
	assert.Equal(t, `UPDATE "widgets" SET "qty" = ? WHERE "id" = ?`, sqlText)
	assert.Equal(t, []interface{}{int64(9), "abc"}, args)
}

func TestBuildUpdateOffsetsConditionPlaceholders(t *testing.T) {
	data := value.Object(map[string]value.Value{"qty": value.Int(9)}, []string{"qty"})
	cond := query.Single("name", query.OpEq, value.String("sprocket"))
	sqlText, args, err := BuildUpdate("widgets", widgetsSchema(), &cond, data, identityEncoder, questionMarkDialect())
	require.NoError(t, err)
	assert.Equal(t, `UPDATE "widgets" SET "qty" = ? WHERE "name" = ?`, sqlText)
	assert.Equal(t, []interface{}{int64(9), "sprocket"}, args)
}

func TestBuildDeleteByID(t *testing.T) {
	sqlText, args, err := BuildDeleteByID("widgets", widgetsSchema(), value.String("abc"), identityEncoder, questionMarkDialect())
	require.NoError(t, err)
	assert.Equal(t, `DELETE FROM "widgets" WHERE "id" = ?`, sqlText)
	assert.Equal(t, []interface{}{"abc"}, args)
}

func TestBuildDelete(t *testing.T) {
	cond := query.Single("qty", query.OpGt, value.Int(3))
	sqlText, args, err := BuildDelete("widgets", &cond, questionMarkDialect())
	require.NoError(t, err)
	assert.Equal(t, `DELETE FROM "widgets" WHERE "qty" > ?`, sqlText)
	assert.Equal(t, []interface{}{int64(3)}, args)
}

func TestBuildSelectByID(t *testing.T) {
	sqlText, args, err := BuildSelectByID("widgets", widgetsSchema(), value.String("abc"), identityEncoder, questionMarkDialect())
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "widgets" WHERE "id" = ?`, sqlText)
	assert.Equal(t, []interface{}{"abc"}, args)
}

func TestBuildSelectWithSortAndPagination(t *testing.T) {
	limit := int64(10)
	opts := adapter.FindOptions{
		Sort:       []query.SortField{{Field: "qty", Desc: true}},
		Pagination: &query.Pagination{Skip: 20, Limit: &limit},
		Fields:     []string{"name", "qty"},
	}
	sqlText, args, err := BuildSelect("widgets", nil, opts, questionMarkDialect(), "-1")
	require.NoError(t, err)
	assert.Equal(t, `SELECT "name", "qty" FROM "widgets" WHERE 1=1 ORDER BY "qty" DESC, "id" ASC LIMIT 10 OFFSET 20`, sqlText)
	assert.Empty(t, args)
}

func TestBuildSelectSkipWithoutLimitUsesLargeLimit(t *testing.T) {
	opts := adapter.FindOptions{Pagination: &query.Pagination{Skip: 5}}
	sqlText, _, err := BuildSelect("widgets", nil, opts, questionMarkDialect(), "-1")
	require.NoError(t, err)
	assert.Contains(t, sqlText, "LIMIT -1 OFFSET 5")
}

func TestBuildCount(t *testing.T) {
	cond := query.Single("name", query.OpEq, value.String("sprocket"))
	sqlText, args, err := BuildCount("widgets", &cond, questionMarkDialect())
	require.NoError(t, err)
	assert.Equal(t, `SELECT COUNT(*) FROM "widgets" WHERE "name" = ?`, sqlText)
	assert.Equal(t, []interface{}{"sprocket"}, args)
}

func TestBuildExists(t *testing.T) {
	cond := query.Single("name", query.OpEq, value.String("sprocket"))
	sqlText, args, err := BuildExists("widgets", &cond, questionMarkDialect())
	require.NoError(t, err)
	assert.Equal(t, `SELECT EXISTS(SELECT 1 FROM "widgets" WHERE "name" = ?)`, sqlText)
	assert.Equal(t, []interface{}{"sprocket"}, args)
}

func TestCheckColumnSetNoExistingTableIsNotAMismatch(t *testing.T) {
	err := CheckColumnSet("widgets", DeclaredColumns(widgetsSchema()), nil)
	assert.NoError(t, err)
}

func TestCheckColumnSetMatchingColumnsIsNotAMismatch(t *testing.T) {
	declared := DeclaredColumns(widgetsSchema())
	existing := []string{"qty", "id", "name", "sku"} // order-independent
	assert.NoError(t, CheckColumnSet("widgets", declared, existing))
}

func TestCheckColumnSetMissingColumnIsAMismatch(t *testing.T) {
	declared := DeclaredColumns(widgetsSchema())
	existing := []string{"id", "name", "sku"} // missing "qty"
	err := CheckColumnSet("widgets", declared, existing)
	require.Error(t, err)
	var mismatch *odmerr.SchemaMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, "widgets", mismatch.Table)
	assert.True(t, errors.Is(err, odmerr.ErrSchemaMismatch))
}

func TestCheckColumnSetExtraColumnIsAMismatch(t *testing.T) {
	declared := DeclaredColumns(widgetsSchema())
	existing := append(append([]string(nil), declared...), "legacy_flag")
	err := CheckColumnSet("widgets", declared, existing)
	require.Error(t, err)
	var mismatch *odmerr.SchemaMismatchError
	require.True(t, errors.As(err, &mismatch))
}
