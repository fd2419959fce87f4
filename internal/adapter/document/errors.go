package document

import (
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/crossdbodm/odm/internal/odmerr"
)

// duplicateKeyCode is the MongoDB server error code raised on a unique
// index violation.
const duplicateKeyCode = 11000

// classifyError maps a mongo-driver error onto the odmerr taxonomy, the
// same role internal/adapter/sqlb/errors.go and internal/adapter/sqla/errors.go
// play for their engines: structured codes where the driver gives us one,
// string matching on connectivity failures otherwise.
func classifyError(table string, err error) error {
	if err == nil {
		return nil
	}
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, werr := range we.WriteErrors {
			if werr.Code == duplicateKeyCode {
				return &odmerr.DuplicateKeyError{Table: table}
			}
		}
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Code == duplicateKeyCode {
		return &odmerr.DuplicateKeyError{Table: table}
	}
	if mongo.IsTimeout(err) || mongo.IsNetworkError(err) {
		return &odmerr.ConnectionError{Err: err}
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "server selection error") || strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "no reachable servers") || strings.Contains(msg, "topology is closed") {
		return &odmerr.ConnectionError{Err: err}
	}
	return err
}
