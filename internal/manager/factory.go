package manager

import (
	"context"
	"fmt"

	"github.com/crossdbodm/odm/internal/adapter"
	"github.com/crossdbodm/odm/internal/adapter/document"
	"github.com/crossdbodm/odm/internal/adapter/embedded"
	"github.com/crossdbodm/odm/internal/adapter/sqla"
	"github.com/crossdbodm/odm/internal/adapter/sqlb"
	"github.com/crossdbodm/odm/internal/config"
)

// newAdapter builds the concrete backend adapter an alias's configuration
// selects, mirroring the teacher's storage/factory registry dispatch but
// over this module's four fixed backend kinds rather than an open
// plugin registry — there is no third-party backend to register at
// runtime here.
func newAdapter(ctx context.Context, cfg config.AliasConfig) (adapter.Adapter, error) {
	switch cfg.BackendType {
	case config.BackendEmbeddedSQL:
		return embedded.New(ctx, embedded.Config{Path: cfg.Connection.Path})
	case config.BackendSQLA:
		return sqla.New(ctx, sqla.Config{DSN: postgresDSN(cfg.Connection)})
	case config.BackendSQLB:
		return sqlb.New(ctx, sqlb.Config{DSN: mysqlDSN(cfg.Connection)})
	case config.BackendDocument:
		return document.New(ctx, document.Config{URI: mongoURI(cfg.Connection), Database: cfg.Connection.Database})
	default:
		return nil, fmt.Errorf("manager: unknown backend_type %q", cfg.BackendType)
	}
}

func postgresDSN(c config.Connection) string {
	sslmode := "disable"
	if c.TLS {
		sslmode = "require"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s", c.User, c.Password, c.Host, c.Port, c.Database, sslmode)
}

func mysqlDSN(c config.Connection) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s", c.User, c.Password, c.Host, c.Port, c.Database)
}

func mongoURI(c config.Connection) string {
	scheme := "mongodb"
	auth := ""
	if c.User != "" {
		auth = fmt.Sprintf("%s:%s@", c.User, c.Password)
	}
	uri := fmt.Sprintf("%s://%s%s:%d", scheme, auth, c.Host, c.Port)
	if c.AuthSource != "" {
		uri += "/?authSource=" + c.AuthSource
	}
	return uri
}
