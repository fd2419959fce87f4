// Package sqla implements the client-server SQL engine A backend adapter on
// top of PostgreSQL via jackc/pgx/v5's database/sql driver shim, so the
// adapter layer shares one database/sql surface across all three SQL
// backends (consistent with the teacher's own database/sql-first approach).
package sqla

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/crossdbodm/odm/internal/adapter"
	"github.com/crossdbodm/odm/internal/adapter/sqlshared"
	"github.com/crossdbodm/odm/internal/odmerr"
	"github.com/crossdbodm/odm/internal/query"
	"github.com/crossdbodm/odm/internal/schema"
	"github.com/crossdbodm/odm/internal/value"
)

var dialect = query.Dialect{
	Name:                  "postgres",
	Placeholder:           func(n int) string { return "$" + strconv.Itoa(n) },
	NativeRegexOperator:   "~",
	SupportsNativeArrayIn: true,
}

var encodeCfg = sqlshared.EncodeConfig{BoolAsInt: false, TimestampAsText: false}
var scanCfg = sqlshared.ScanConfig{BoolScan: sqlshared.BoolScanNative, TimestampText: false}

// Config is the Postgres backend's connection configuration.
type Config struct {
	DSN string
}

// Adapter implements adapter.Adapter against Postgres through the
// database/sql surface registered by pgx/v5's stdlib shim.
type Adapter struct {
	db   *sql.DB
	tele sqlshared.Telemetry

	mu      sync.Mutex
	schemas map[string]schema.Schema
	known   map[string]bool
}

// New opens a connection pool against cfg.DSN and verifies connectivity.
func New(ctx context.Context, cfg Config) (*Adapter, error) {
	if cfg.DSN == "" {
		return nil, &odmerr.ConfigError{Message: "sqla adapter requires a DSN"}
	}
	connCfg, err := pgx.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, &odmerr.ConfigError{Message: err.Error()}
	}
	db := stdlib.OpenDB(*connCfg)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, &odmerr.ConnectionError{Err: err}
	}
	return &Adapter{
		db:      db,
		tele:    sqlshared.NewTelemetry("postgres"),
		schemas: make(map[string]schema.Schema),
		known:   make(map[string]bool),
	}, nil
}

func (a *Adapter) Dialect() string { return "postgres" }

func (a *Adapter) Connect(ctx context.Context) (adapter.Conn, error) {
	conn, err := a.db.Conn(ctx)
	if err != nil {
		return nil, &odmerr.ConnectionError{Err: err}
	}
	return &conn_{c: conn}, nil
}

type conn_ struct{ c *sql.Conn }

func (c *conn_) Ping(ctx context.Context) error {
	if err := c.c.PingContext(ctx); err != nil {
		return &odmerr.ConnectionError{Err: err}
	}
	return nil
}

func (c *conn_) Close(ctx context.Context) error { return c.c.Close() }

func nativeConn(c adapter.Conn) *sql.Conn { return c.(*conn_).c }

// existingColumns reports the column names Postgres already has for table
// in the current search_path schema, or nil if no such table exists.
func (a *Adapter) existingColumns(ctx context.Context, c adapter.Conn, table string) ([]string, error) {
	rows, err := nativeConn(c).QueryContext(ctx,
		`SELECT column_name FROM information_schema.columns WHERE table_name = $1 AND table_schema = ANY (current_schemas(false))`,
		table)
	if err != nil {
		return nil, classifyError(table, err)
	}
	defer rows.Close()
	var cols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, classifyError(table, err)
		}
		cols = append(cols, name)
	}
	return cols, rows.Err()
}

func (a *Adapter) CreateTable(ctx context.Context, c adapter.Conn, table string, s schema.Schema) error {
	a.mu.Lock()
	if a.known[table] {
		a.mu.Unlock()
		return nil
	}
	a.mu.Unlock()

	existing, err := a.existingColumns(ctx, c, table)
	if err != nil {
		return err
	}
	if err := sqlshared.CheckColumnSet(table, sqlshared.DeclaredColumns(s), existing); err != nil {
		return err
	}

	for _, stmt := range sqlshared.BuildCreateTable(s, columnType) {
		if _, err := a.tele.Exec(ctx, nativeConn(c), "create_table", stmt, nil); err != nil {
			return classifyError(table, err)
		}
	}
	a.mu.Lock()
	a.known[table] = true
	a.schemas[table] = s
	a.mu.Unlock()
	return nil
}

func (a *Adapter) DropTable(ctx context.Context, c adapter.Conn, table string) error {
	_, err := a.tele.Exec(ctx, nativeConn(c), "drop_table", sqlshared.DropTableSQL(table), nil)
	if err != nil {
		return classifyError(table, err)
	}
	a.mu.Lock()
	delete(a.known, table)
	delete(a.schemas, table)
	a.mu.Unlock()
	return nil
}

func (a *Adapter) tableSchema(table string) schema.Schema {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.schemas[table]
}

func (a *Adapter) Create(ctx context.Context, c adapter.Conn, table string, record value.Value) (value.Value, error) {
	s := a.tableSchema(table)
	sqlText, args, err := sqlshared.BuildInsert(table, s, record, sqlshared.Encode(encodeCfg), dialect.Placeholder)
	if err != nil {
		return value.Value{}, err
	}
	if _, err := a.tele.Exec(ctx, nativeConn(c), "create", sqlText, args); err != nil {
		return value.Value{}, classifyError(table, err)
	}
	return record, nil
}

func (a *Adapter) Find(ctx context.Context, c adapter.Conn, table string, cond *query.Condition, opts adapter.FindOptions) ([]value.Value, error) {
	s := a.tableSchema(table)
	sqlText, args, err := sqlshared.BuildSelect(table, cond, opts, dialect, "ALL")
	if err != nil {
		return nil, err
	}
	rows, err := a.tele.Query(ctx, nativeConn(c), "find", sqlText, args)
	if err != nil {
		return nil, classifyError(table, err)
	}
	defer rows.Close()
	return sqlshared.ScanRows(rows, s, scanCfg)
}

func (a *Adapter) FindByID(ctx context.Context, c adapter.Conn, table string, id value.Value) (value.Value, bool, error) {
	s := a.tableSchema(table)
	sqlText, args, err := sqlshared.BuildSelectByID(table, s, id, sqlshared.Encode(encodeCfg), dialect)
	if err != nil {
		return value.Value{}, false, err
	}
	rows, err := a.tele.Query(ctx, nativeConn(c), "find_by_id", sqlText, args)
	if err != nil {
		return value.Value{}, false, classifyError(table, err)
	}
	defer rows.Close()
	values, err := sqlshared.ScanRows(rows, s, scanCfg)
	if err != nil {
		return value.Value{}, false, err
	}
	if len(values) == 0 {
		return value.Value{}, false, nil
	}
	return values[0], true, nil
}

func (a *Adapter) Update(ctx context.Context, c adapter.Conn, table string, cond *query.Condition, data value.Value) (int64, error) {
	s := a.tableSchema(table)
	sqlText, args, err := sqlshared.BuildUpdate(table, s, cond, data, sqlshared.Encode(encodeCfg), dialect)
	if err != nil {
		return 0, err
	}
	res, err := a.tele.Exec(ctx, nativeConn(c), "update", sqlText, args)
	if err != nil {
		return 0, classifyError(table, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (a *Adapter) UpdateByID(ctx context.Context, c adapter.Conn, table string, id value.Value, data value.Value) (int64, error) {
	s := a.tableSchema(table)
	sqlText, args, err := sqlshared.BuildUpdateByID(table, s, id, data, sqlshared.Encode(encodeCfg), dialect)
	if err != nil {
		return 0, err
	}
	res, err := a.tele.Exec(ctx, nativeConn(c), "update_by_id", sqlText, args)
	if err != nil {
		return 0, classifyError(table, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (a *Adapter) Delete(ctx context.Context, c adapter.Conn, table string, cond *query.Condition) (int64, error) {
	sqlText, args, err := sqlshared.BuildDelete(table, cond, dialect)
	if err != nil {
		return 0, err
	}
	res, err := a.tele.Exec(ctx, nativeConn(c), "delete", sqlText, args)
	if err != nil {
		return 0, classifyError(table, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (a *Adapter) DeleteByID(ctx context.Context, c adapter.Conn, table string, id value.Value) (int64, error) {
	s := a.tableSchema(table)
	sqlText, args, err := sqlshared.BuildDeleteByID(table, s, id, sqlshared.Encode(encodeCfg), dialect)
	if err != nil {
		return 0, err
	}
	res, err := a.tele.Exec(ctx, nativeConn(c), "delete_by_id", sqlText, args)
	if err != nil {
		return 0, classifyError(table, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (a *Adapter) Count(ctx context.Context, c adapter.Conn, table string, cond *query.Condition) (int64, error) {
	sqlText, args, err := sqlshared.BuildCount(table, cond, dialect)
	if err != nil {
		return 0, err
	}
	var n int64
	scanErr := a.tele.QueryRow(ctx, nativeConn(c), "count", sqlText, args, func(row *sql.Row) error {
		return row.Scan(&n)
	})
	if scanErr != nil {
		return 0, classifyError(table, scanErr)
	}
	return n, nil
}

func (a *Adapter) Exists(ctx context.Context, c adapter.Conn, table string, cond *query.Condition) (bool, error) {
	sqlText, args, err := sqlshared.BuildExists(table, cond, dialect)
	if err != nil {
		return false, err
	}
	var exists bool
	scanErr := a.tele.QueryRow(ctx, nativeConn(c), "exists", sqlText, args, func(row *sql.Row) error {
		return row.Scan(&exists)
	})
	if scanErr != nil {
		return false, classifyError(table, scanErr)
	}
	return exists, nil
}

// columnType maps a declared field descriptor onto its Postgres column
// type, per spec.md's engine-A row of the type-mapping table.
func columnType(f schema.Field) string {
	switch f.Kind {
	case schema.FieldInt:
		return "BIGINT"
	case schema.FieldFloat:
		return "DOUBLE PRECISION"
	case schema.FieldBool:
		return "BOOLEAN"
	case schema.FieldTimestamp:
		return "TIMESTAMPTZ"
	case schema.FieldUUID:
		return "UUID"
	case schema.FieldJSON, schema.FieldObject:
		return "JSONB"
	case schema.FieldArray:
		// JSONB rather than native T[]: the canonical Array element type
		// isn't always homogeneous enough to pick one Postgres element
		// type at schema-declaration time. See DESIGN.md.
		return "JSONB"
	default: // string
		if f.Constraints.MaxLength != nil {
			return fmt.Sprintf("VARCHAR(%d)", *f.Constraints.MaxLength)
		}
		return "VARCHAR(255)"
	}
}
