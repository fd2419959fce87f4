package sqlb

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/crossdbodm/odm/internal/odmerr"
)

// classifyError maps a go-sql-driver/mysql error onto the odmerr taxonomy,
// grounded directly on the teacher's isRetryableError/wrapLockError string
// matching in internal/storage/dolt/store.go — MySQL and Dolt-server both
// speak the same wire protocol and raise the same error shapes.
func classifyError(table string, err error) error {
	if err == nil {
		return nil
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case 1062: // ER_DUP_ENTRY
			return &odmerr.DuplicateKeyError{Table: table}
		case 2013, 2006: // lost connection / server gone away
			return &odmerr.ConnectionError{Err: err}
		}
		return err
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "driver: bad connection") || strings.Contains(msg, "invalid connection") ||
		strings.Contains(msg, "broken pipe") || strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused") || strings.Contains(msg, "i/o timeout") ||
		strings.Contains(msg, "database is read only") {
		return &odmerr.ConnectionError{Err: err}
	}
	return err
}
