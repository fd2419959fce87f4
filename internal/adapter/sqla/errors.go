package sqla

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/crossdbodm/odm/internal/odmerr"
)

// classifyError maps a pgx/database/sql error onto the odmerr taxonomy.
// Postgres reports constraint and connection failures through structured
// *pgconn.PgError codes, unlike the teacher's string-matched MySQL/Dolt
// classification, so this prefers errors.As where Postgres gives us that.
func classifyError(table string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return &odmerr.DuplicateKeyError{Table: table, Field: pgErr.ConstraintName}
		case "08000", "08003", "08006", "08001", "08004": // connection_exception class
			return &odmerr.ConnectionError{Err: err}
		}
		return err
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "connection refused") || strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "i/o timeout") || strings.Contains(msg, "connection reset") {
		return &odmerr.ConnectionError{Err: err}
	}
	return err
}
