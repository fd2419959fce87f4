package sqlshared

import (
	"fmt"
	"strings"

	"github.com/crossdbodm/odm/internal/adapter"
	"github.com/crossdbodm/odm/internal/query"
	"github.com/crossdbodm/odm/internal/schema"
	"github.com/crossdbodm/odm/internal/value"
)

// Encoder converts one canonical field value into the representation
// database/sql should bind as a parameter, per the backend's own
// EncodeConfig (bool-as-int vs native, timestamp-as-text vs native).
type Encoder func(f schema.Field, v value.Value) (interface{}, error)

// BuildInsert renders an INSERT over every schema-declared field present in
// record, in record's own key order.
func BuildInsert(table string, s schema.Schema, record value.Value, enc Encoder, ph func(int) string) (string, []interface{}, error) {
	fields, order, _ := record.AsObject()
	cols := make([]string, 0, len(order))
	phs := make([]string, 0, len(order))
	args := make([]interface{}, 0, len(order))
	for _, name := range order {
		f, declared := s.FieldByName(name)
		if !declared {
			continue
		}
		native, err := enc(f, fields[name])
		if err != nil {
			return "", nil, err
		}
		args = append(args, native)
		cols = append(cols, Quote(name))
		phs = append(phs, ph(len(args)))
	}
	sqlText := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", Quote(table), strings.Join(cols, ", "), strings.Join(phs, ", "))
	return sqlText, args, nil
}

// BuildUpdateByID renders an UPDATE SET ... WHERE id = ? statement.
func BuildUpdateByID(table string, s schema.Schema, id value.Value, data value.Value, enc Encoder, d query.Dialect) (string, []interface{}, error) {
	fields, order, _ := data.AsObject()
	setClauses := make([]string, 0, len(order))
	args := make([]interface{}, 0, len(order)+1)
	for _, name := range order {
		f, declared := s.FieldByName(name)
		if !declared {
			continue
		}
		native, err := enc(f, fields[name])
		if err != nil {
			return "", nil, err
		}
		args = append(args, native)
		setClauses = append(setClauses, fmt.Sprintf("%s = %s", Quote(name), d.Placeholder(len(args))))
	}
	idField, _ := s.FieldByName(IDColumn)
	idNative, err := enc(idField, id)
	if err != nil {
		return "", nil, err
	}
	args = append(args, idNative)
	sqlText := fmt.Sprintf("UPDATE %s SET %s WHERE %s = %s",
		Quote(table), strings.Join(setClauses, ", "), Quote(IDColumn), d.Placeholder(len(args)))
	return sqlText, args, nil
}

// BuildUpdate renders an UPDATE SET ... WHERE <compiled condition>
// statement; the condition's placeholders are numbered starting after the
// SET clause's own, via an offset dialect.
func BuildUpdate(table string, s schema.Schema, cond *query.Condition, data value.Value, enc Encoder, d query.Dialect) (string, []interface{}, error) {
	fields, order, _ := data.AsObject()
	setClauses := make([]string, 0, len(order))
	args := make([]interface{}, 0, len(order))
	for _, name := range order {
		f, declared := s.FieldByName(name)
		if !declared {
			continue
		}
		native, err := enc(f, fields[name])
		if err != nil {
			return "", nil, err
		}
		args = append(args, native)
		setClauses = append(setClauses, fmt.Sprintf("%s = %s", Quote(name), d.Placeholder(len(args))))
	}
	compiled, err := query.Compile(cond, offsetDialect(d, len(args)))
	if err != nil {
		return "", nil, err
	}
	args = append(args, compiled.Args...)
	sqlText := fmt.Sprintf("UPDATE %s SET %s WHERE %s", Quote(table), strings.Join(setClauses, ", "), compiled.SQL)
	return sqlText, args, nil
}

func offsetDialect(d query.Dialect, offset int) query.Dialect {
	base := d.Placeholder
	d.Placeholder = func(n int) string { return base(n + offset) }
	return d
}

// BuildDeleteByID renders a DELETE WHERE id = ? statement.
func BuildDeleteByID(table string, s schema.Schema, id value.Value, enc Encoder, d query.Dialect) (string, []interface{}, error) {
	idField, _ := s.FieldByName(IDColumn)
	idNative, err := enc(idField, id)
	if err != nil {
		return "", nil, err
	}
	sqlText := fmt.Sprintf("DELETE FROM %s WHERE %s = %s", Quote(table), Quote(IDColumn), d.Placeholder(1))
	return sqlText, []interface{}{idNative}, nil
}

// BuildDelete renders a DELETE WHERE <compiled condition> statement.
func BuildDelete(table string, cond *query.Condition, d query.Dialect) (string, []interface{}, error) {
	compiled, err := query.Compile(cond, d)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("DELETE FROM %s WHERE %s", Quote(table), compiled.SQL), compiled.Args, nil
}

// BuildSelectByID renders a SELECT * WHERE id = ? statement.
func BuildSelectByID(table string, s schema.Schema, id value.Value, enc Encoder, d query.Dialect) (string, []interface{}, error) {
	idField, _ := s.FieldByName(IDColumn)
	idNative, err := enc(idField, id)
	if err != nil {
		return "", nil, err
	}
	sqlText := fmt.Sprintf("SELECT * FROM %s WHERE %s = %s", Quote(table), Quote(IDColumn), d.Placeholder(1))
	return sqlText, []interface{}{idNative}, nil
}

// BuildSelect renders a projected, sorted, paginated SELECT around a
// compiled WHERE clause. largeLimit is the backend's "no explicit limit but
// skip is present" idiom (e.g. "-1" for SQLite, "18446744073709551615" for
// MySQL, "ALL" for Postgres).
func BuildSelect(table string, cond *query.Condition, opts adapter.FindOptions, d query.Dialect, largeLimit string) (string, []interface{}, error) {
	compiled, err := query.Compile(cond, d)
	if err != nil {
		return "", nil, err
	}
	projection := "*"
	if len(opts.Fields) > 0 {
		cols := make([]string, len(opts.Fields))
		for i, f := range opts.Fields {
			cols[i] = Quote(f)
		}
		projection = strings.Join(cols, ", ")
	}
	sqlText := fmt.Sprintf("SELECT %s FROM %s WHERE %s", projection, Quote(table), compiled.SQL)
	if len(opts.Sort) > 0 {
		parts := make([]string, 0, len(opts.Sort)+1)
		for _, sf := range opts.Sort {
			dir := "ASC"
			if sf.Desc {
				dir = "DESC"
			}
			parts = append(parts, Quote(sf.Field)+" "+dir)
		}
		parts = append(parts, Quote(IDColumn)+" ASC")
		sqlText += " ORDER BY " + strings.Join(parts, ", ")
	}
	if opts.Pagination != nil {
		p := opts.Pagination
		switch {
		case p.Limit != nil && p.Skip == 0:
			sqlText += fmt.Sprintf(" LIMIT %d", *p.Limit)
		case p.Limit != nil && p.Skip > 0:
			sqlText += fmt.Sprintf(" LIMIT %d OFFSET %d", *p.Limit, p.Skip)
		case p.Limit == nil && p.Skip > 0:
			sqlText += fmt.Sprintf(" LIMIT %s OFFSET %d", largeLimit, p.Skip)
		}
	}
	return sqlText, compiled.Args, nil
}

// BuildCount renders a SELECT COUNT(*) WHERE <compiled condition> statement.
func BuildCount(table string, cond *query.Condition, d query.Dialect) (string, []interface{}, error) {
	compiled, err := query.Compile(cond, d)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", Quote(table), compiled.SQL), compiled.Args, nil
}

// BuildExists renders a SELECT EXISTS(SELECT 1 ...) statement.
func BuildExists(table string, cond *query.Condition, d query.Dialect) (string, []interface{}, error) {
	compiled, err := query.Compile(cond, d)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s WHERE %s)", Quote(table), compiled.SQL), compiled.Args, nil
}
