// Package odm is the thin facade dispatchers reach for: create, find,
// find_by_id, find_with_groups, update, update_by_id, delete, delete_by_id,
// count, and exists, each keyed on (table, payload, alias?). Every call
// resolves the alias against the process-wide manager, looks up its pool,
// and forwards the request — the manager and pool own everything else.
package odm

import (
	"context"

	"github.com/crossdbodm/odm/internal/config"
	"github.com/crossdbodm/odm/internal/manager"
	"github.com/crossdbodm/odm/internal/query"
	"github.com/crossdbodm/odm/internal/schema"
	"github.com/crossdbodm/odm/internal/value"
)

// DB is one process's ODM entry point, wrapping the alias registry that
// every operation below resolves against.
type DB struct {
	mgr *manager.Manager
}

// New constructs an empty DB with no registered aliases.
func New() *DB {
	return &DB{mgr: manager.New()}
}

// AddDatabase registers a new alias: creates its pool, starts its worker,
// and initializes its cache and id generator. The first alias registered
// becomes the default.
func (db *DB) AddDatabase(ctx context.Context, cfg config.AliasConfig) error {
	return db.mgr.AddDatabase(ctx, cfg)
}

// DefaultAlias returns the alias resolved when callers omit one.
func (db *DB) DefaultAlias() string { return db.mgr.DefaultAlias() }

// SetDefaultAlias changes which registered alias resolves for callers that
// omit one.
func (db *DB) SetDefaultAlias(alias string) error { return db.mgr.SetDefaultAlias(alias) }

// HealthCheck pings every registered alias and reports per-alias liveness.
func (db *DB) HealthCheck(ctx context.Context) map[string]error {
	return db.mgr.HealthCheck(ctx)
}

// Shutdown closes every alias's operation channel, awaits its worker
// draining, releases connections, and flushes tier-2 caches.
func (db *DB) Shutdown(ctx context.Context) {
	db.mgr.Shutdown(ctx)
}

// CreateTable issues the backend's create-if-absent DDL for table against
// s, at most once per (alias, table) pair for the lifetime of the pool.
func (db *DB) CreateTable(ctx context.Context, table string, s schema.Schema, alias string) error {
	p, err := db.mgr.Get(alias)
	if err != nil {
		return err
	}
	return p.CreateTable(ctx, table, s)
}

// DropTable drops table's backing storage entirely.
func (db *DB) DropTable(ctx context.Context, table string, alias string) error {
	p, err := db.mgr.Get(alias)
	if err != nil {
		return err
	}
	return p.DropTable(ctx, table)
}

// Create inserts record into table, generating its id if the configured
// strategy's trigger fires, and returns the stored canonical record.
func (db *DB) Create(ctx context.Context, table string, record value.Value, alias string) (value.Value, error) {
	p, err := db.mgr.Get(alias)
	if err != nil {
		return value.Value{}, err
	}
	return p.Create(ctx, table, record)
}

// Find returns every record in table matching opts' flat condition list
// (or "match everything" when opts has no conditions).
func (db *DB) Find(ctx context.Context, table string, opts query.Options, alias string) ([]value.Value, error) {
	p, err := db.mgr.Get(alias)
	if err != nil {
		return nil, err
	}
	return p.Find(ctx, table, opts)
}

// FindByID returns the single record in table with the given id, or
// found=false if none exists.
func (db *DB) FindByID(ctx context.Context, table string, id value.Value, alias string) (value.Value, bool, error) {
	p, err := db.mgr.Get(alias)
	if err != nil {
		return value.Value{}, false, err
	}
	return p.FindByID(ctx, table, id)
}

// FindWithGroups returns every record in table matching opts' nested
// AND/OR condition-group tree, which takes precedence over any flat
// condition list also present on opts.
func (db *DB) FindWithGroups(ctx context.Context, table string, groups *query.Condition, opts query.Options, alias string) ([]value.Value, error) {
	opts.Groups = groups
	return db.Find(ctx, table, opts, alias)
}

// Update applies data to every record in table matching opts' condition
// tree and returns the affected-row count. An empty data object is a
// documented no-op success rather than an error.
func (db *DB) Update(ctx context.Context, table string, opts query.Options, data value.Value, alias string) (int64, error) {
	p, err := db.mgr.Get(alias)
	if err != nil {
		return 0, err
	}
	return p.Update(ctx, table, opts, data)
}

// UpdateByID applies data to the single record in table with the given id.
func (db *DB) UpdateByID(ctx context.Context, table string, id value.Value, data value.Value, alias string) (int64, error) {
	p, err := db.mgr.Get(alias)
	if err != nil {
		return 0, err
	}
	return p.UpdateByID(ctx, table, id, data)
}

// Delete removes every record in table matching opts' condition tree and
// returns the affected-row count.
func (db *DB) Delete(ctx context.Context, table string, opts query.Options, alias string) (int64, error) {
	p, err := db.mgr.Get(alias)
	if err != nil {
		return 0, err
	}
	return p.Delete(ctx, table, opts)
}

// DeleteByID removes the single record in table with the given id.
func (db *DB) DeleteByID(ctx context.Context, table string, id value.Value, alias string) (int64, error) {
	p, err := db.mgr.Get(alias)
	if err != nil {
		return 0, err
	}
	return p.DeleteByID(ctx, table, id)
}

// Count returns the number of records in table matching opts' condition
// tree.
func (db *DB) Count(ctx context.Context, table string, opts query.Options, alias string) (int64, error) {
	p, err := db.mgr.Get(alias)
	if err != nil {
		return 0, err
	}
	return p.Count(ctx, table, opts)
}

// Exists reports whether any record in table matches opts' condition tree.
func (db *DB) Exists(ctx context.Context, table string, opts query.Options, alias string) (bool, error) {
	p, err := db.mgr.Get(alias)
	if err != nil {
		return false, err
	}
	return p.Exists(ctx, table, opts)
}
