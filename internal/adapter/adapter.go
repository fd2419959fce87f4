// Package adapter defines the capability set every backend (embedded SQL,
// the two client-server SQL engines, and the document store) must
// implement, plus the shared connection-handle abstraction the pool hands
// to it on every operation.
package adapter

import (
	"context"

	"github.com/crossdbodm/odm/internal/query"
	"github.com/crossdbodm/odm/internal/schema"
	"github.com/crossdbodm/odm/internal/value"
)

// Conn is an opaque, backend-owned connection handle. The pool tracks its
// lifecycle (Idle/InUse/Retiring/Retired); the adapter is the only party
// that knows its concrete type.
type Conn interface {
	// Ping verifies the connection is still usable. The pool's health
	// check pings a freshly dialed connection; pooled connections are not
	// pinged, and are retired instead of returned when an operation on
	// them fails with a ConnectionError.
	Ping(ctx context.Context) error
	// Close releases the underlying native handle.
	Close(ctx context.Context) error
}

// FindOptions carries the sort/pagination/projection portion of a read,
// independent of which condition form (flat list or group tree) selects
// the rows.
type FindOptions struct {
	Sort       []query.SortField
	Pagination *query.Pagination
	Fields     []string
}

// Adapter is the capability set a backend exposes to the pool worker. Every
// method receives the connection the pool already acquired for this
// operation; adapters never manage their own pooling.
type Adapter interface {
	// Connect opens a new native connection using the backend-specific
	// connection tuple baked into the adapter at construction time.
	Connect(ctx context.Context) (Conn, error)

	CreateTable(ctx context.Context, c Conn, table string, s schema.Schema) error
	DropTable(ctx context.Context, c Conn, table string) error

	Create(ctx context.Context, c Conn, table string, record value.Value) (value.Value, error)
	Find(ctx context.Context, c Conn, table string, cond *query.Condition, opts FindOptions) ([]value.Value, error)
	FindByID(ctx context.Context, c Conn, table string, id value.Value) (value.Value, bool, error)

	Update(ctx context.Context, c Conn, table string, cond *query.Condition, data value.Value) (int64, error)
	UpdateByID(ctx context.Context, c Conn, table string, id value.Value, data value.Value) (int64, error)

	Delete(ctx context.Context, c Conn, table string, cond *query.Condition) (int64, error)
	DeleteByID(ctx context.Context, c Conn, table string, id value.Value) (int64, error)

	Count(ctx context.Context, c Conn, table string, cond *query.Condition) (int64, error)
	Exists(ctx context.Context, c Conn, table string, cond *query.Condition) (bool, error)

	// Dialect identifies the backend for span attributes and error context.
	Dialect() string
}
