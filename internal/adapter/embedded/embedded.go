// Package embedded implements the embedded file-based SQL backend adapter
// on top of modernc.org/sqlite, the pure-Go SQLite driver (no CGO). It is
// the cheapest backend to stand up for tests and single-process use.
package embedded

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/crossdbodm/odm/internal/adapter"
	"github.com/crossdbodm/odm/internal/adapter/sqlshared"
	"github.com/crossdbodm/odm/internal/odmerr"
	"github.com/crossdbodm/odm/internal/query"
	"github.com/crossdbodm/odm/internal/schema"
	"github.com/crossdbodm/odm/internal/value"
)

// dialect is shared by every *Adapter instance; sqlite's placeholder and
// regex story never varies per alias.
var dialect = query.Dialect{
	Name:                 "sqlite",
	Placeholder:          func(int) string { return "?" },
	NativeRegexOperator:  "",
	SupportsNativeArrayIn: false,
}

var encodeCfg = sqlshared.EncodeConfig{BoolAsInt: true, TimestampAsText: true}
var scanCfg = sqlshared.ScanConfig{BoolScan: sqlshared.BoolScanInt, TimestampText: true}

// Config is the embedded backend's connection configuration.
type Config struct {
	// Path is the sqlite file path, or ":memory:" for an in-process database.
	Path string
}

// Adapter implements adapter.Adapter against a single *sql.DB shared by
// every pooled connection the ODM pool checks out; SQLite's own file
// locking serializes writers regardless, so sharing one *sql.DB handle is
// both safe and the modernc.org/sqlite-recommended usage.
type Adapter struct {
	db   *sql.DB
	tele sqlshared.Telemetry

	mu      sync.Mutex
	schemas map[string]schema.Schema
	known   map[string]bool
}

// New opens the sqlite database at cfg.Path (creating the file if absent)
// and verifies connectivity.
func New(ctx context.Context, cfg Config) (*Adapter, error) {
	if cfg.Path == "" {
		return nil, &odmerr.ConfigError{Message: "embedded adapter requires a path"}
	}
	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, &odmerr.ConnectionError{Err: err}
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, &odmerr.ConnectionError{Err: err}
	}
	// SQLite only truly supports one writer at a time; cap the pool so
	// database/sql doesn't hand out concurrent writer connections that
	// would just serialize behind SQLITE_BUSY anyway.
	db.SetMaxOpenConns(1)
	return &Adapter{
		db:      db,
		tele:    sqlshared.NewTelemetry("sqlite"),
		schemas: make(map[string]schema.Schema),
		known:   make(map[string]bool),
	}, nil
}

func (a *Adapter) Dialect() string { return "sqlite" }

// Connect checks out a dedicated *sql.Conn, giving the ODM pool's own
// connection-count bookkeeping a real 1:1 correspondence to backend
// connections even though database/sql keeps its own internal pool too.
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

// existingColumns reports the column names sqlite already has for table, or
// nil if the table does not exist yet. PRAGMA table_info returns zero rows
// for an unknown table rather than erroring, so an empty result is the
// "doesn't exist" signal CheckColumnSet expects.
func (a *Adapter) existingColumns(ctx context.Context, c adapter.Conn, table string) ([]string, error) {
	rows, err := nativeConn(c).QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", sqlshared.Quote(table)))
	if err != nil {
		return nil, classifyError(table, err)
	}
	defer rows.Close()
	var cols []string
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
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
	sqlText, args, err := sqlshared.BuildSelect(table, cond, opts, dialect, "-1")
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
	var exists int64
	scanErr := a.tele.QueryRow(ctx, nativeConn(c), "exists", sqlText, args, func(row *sql.Row) error {
		return row.Scan(&exists)
	})
	if scanErr != nil {
		return false, classifyError(table, scanErr)
	}
	return exists != 0, nil
}

// columnType maps a declared field descriptor onto its sqlite column type.
// SQLite is dynamically typed, so the CHECK clause is the only place string
// length constraints are actually enforced at the storage layer.
func columnType(f schema.Field) string {
	switch f.Kind {
	case schema.FieldInt:
		return "INTEGER"
	case schema.FieldFloat:
		return "REAL"
	case schema.FieldBool:
		return "INTEGER"
	case schema.FieldTimestamp, schema.FieldUUID, schema.FieldJSON, schema.FieldArray, schema.FieldObject, schema.FieldReference:
		return "TEXT"
	default: // string
		if f.Constraints.MaxLength != nil {
			return fmt.Sprintf("TEXT CHECK (length(%s) <= %d)", sqlshared.Quote(f.Name), *f.Constraints.MaxLength)
		}
		return "TEXT"
	}
}
