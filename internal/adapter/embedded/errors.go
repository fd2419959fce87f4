package embedded

import (
	"strings"

	"github.com/crossdbodm/odm/internal/odmerr"
)

// classifyError maps a modernc.org/sqlite driver error onto the odmerr
// taxonomy, mirroring the teacher's wrapDBError string-matching idiom in
// internal/storage/sqlite/errors.go.
func classifyError(table string, err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "unique constraint"):
		return &odmerr.DuplicateKeyError{Table: table}
	case strings.Contains(msg, "database is locked"),
		strings.Contains(msg, "disk i/o error"),
		strings.Contains(msg, "unable to open database file"):
		return &odmerr.ConnectionError{Err: err}
	default:
		return err
	}
}
