// Package sqlshared factors the SQL-generation and row-scanning logic
// common to the three database/sql-backed adapters (embedded, sqla, sqlb):
// DDL rendering from a declared schema, statement assembly around the
// shared condition compiler, and row-to-canonical-value scanning driven by
// the schema's declared field kinds. Each backend still owns its own
// connection lifecycle and error classification, the way the teacher keeps
// sqlite and dolt as separate packages under internal/storage.
package sqlshared

import (
	"fmt"
	"strings"

	"github.com/crossdbodm/odm/internal/odmerr"
	"github.com/crossdbodm/odm/internal/schema"
)

// IDColumn is the conventional primary-key field name every declared schema
// carries; idgen and the pool's write path both assume it.
const IDColumn = "id"

// ColumnTyper renders one field descriptor's backend-native column type.
type ColumnTyper func(f schema.Field) string

// Quote double-quotes an identifier, matching the condition compiler's own
// quoting so WHERE fragments and DDL/DML column references agree.
func Quote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// BuildCreateTable renders a "CREATE TABLE IF NOT EXISTS" statement plus one
// "CREATE [UNIQUE] INDEX IF NOT EXISTS" per declared field-level and
// composite index.
func BuildCreateTable(s schema.Schema, colType ColumnTyper) []string {
	cols := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		def := Quote(f.Name) + " " + colType(f)
		switch {
		case f.Name == IDColumn:
			def += " PRIMARY KEY"
		case f.Required:
			def += " NOT NULL"
		}
		if f.Unique && f.Name != IDColumn {
			def += " UNIQUE"
		}
		cols = append(cols, def)
	}
	stmts := []string{
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", Quote(s.Table), strings.Join(cols, ", ")),
	}
	for _, f := range s.Fields {
		if f.Indexed && f.Name != IDColumn {
			stmts = append(stmts, fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)",
				Quote("idx_"+s.Table+"_"+f.Name), Quote(s.Table), Quote(f.Name)))
		}
	}
	for _, idx := range s.Indexes {
		unique := ""
		if idx.Unique {
			unique = "UNIQUE "
		}
		idxCols := make([]string, len(idx.Fields))
		for i, fn := range idx.Fields {
			idxCols[i] = Quote(fn)
		}
		name := idx.Name
		if name == "" {
			name = "idx_" + s.Table + "_" + strings.Join(idx.Fields, "_")
		}
		stmts = append(stmts, fmt.Sprintf("CREATE %sINDEX IF NOT EXISTS %s ON %s (%s)",
			unique, Quote(name), Quote(s.Table), strings.Join(idxCols, ", ")))
	}
	return stmts
}

// DropTableSQL renders a "DROP TABLE IF EXISTS" statement.
func DropTableSQL(table string) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s", Quote(table))
}

// DeclaredColumns lists the column names a schema's CREATE TABLE would
// produce, in declaration order, for CheckColumnSet to compare as a set
// against a backend's introspected column list.
func DeclaredColumns(s schema.Schema) []string {
	cols := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		cols[i] = f.Name
	}
	return cols
}

// CheckColumnSet compares a declared schema's column names against a table
// that already exists in the database, reporting odmerr.SchemaMismatchError
// when the sets differ. It is a no-op when actual is empty, which callers
// use to mean "the table does not exist yet" — CreateTable's own
// CREATE TABLE IF NOT EXISTS handles that case.
func CheckColumnSet(table string, declared, actual []string) error {
	if len(actual) == 0 {
		return nil
	}
	declaredSet := make(map[string]bool, len(declared))
	for _, c := range declared {
		declaredSet[c] = true
	}
	actualSet := make(map[string]bool, len(actual))
	for _, c := range actual {
		actualSet[c] = true
	}
	var missing, extra []string
	for _, c := range declared {
		if !actualSet[c] {
			missing = append(missing, c)
		}
	}
	for _, c := range actual {
		if !declaredSet[c] {
			extra = append(extra, c)
		}
	}
	if len(missing) == 0 && len(extra) == 0 {
		return nil
	}
	msg := fmt.Sprintf("declared columns %v do not match existing table columns %v", declared, actual)
	if len(missing) > 0 {
		msg += fmt.Sprintf("; missing %v", missing)
	}
	if len(extra) > 0 {
		msg += fmt.Sprintf("; unexpected %v", extra)
	}
	return &odmerr.SchemaMismatchError{Table: table, Message: msg}
}
