package sqla

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/crossdbodm/odm/internal/odmerr"
)

func TestClassifyErrorNil(t *testing.T) {
	assert.Nil(t, classifyError("widgets", nil))
}

func TestClassifyErrorUniqueViolation(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "widgets_sku_key"}
	err := classifyError("widgets", pgErr)
	var dup *odmerr.DuplicateKeyError
	assert.ErrorAs(t, err, &dup)
	assert.Equal(t, "widgets", dup.Table)
	assert.Equal(t, "widgets_sku_key", dup.Field)
}

func TestClassifyErrorConnectionExceptionCodes(t *testing.T) {
	for _, code := range []string{"08000", "08003", "08006", "08001", "08004"} {
		pgErr := &pgconn.PgError{Code: code}
		var connErr *odmerr.ConnectionError
		assert.ErrorAs(t, classifyError("widgets", pgErr), &connErr, "code %q should classify as ConnectionError", code)
	}
}

func TestClassifyErrorPgErrorOtherCodePassesThrough(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "42601"}
	assert.Same(t, error(pgErr), classifyError("widgets", pgErr))
}

func TestClassifyErrorStringMatchedNetworkIssues(t *testing.T) {
	for _, msg := range []string{"connection refused", "broken pipe", "i/o timeout", "connection reset"} {
		err := classifyError("widgets", errors.New(msg))
		var connErr *odmerr.ConnectionError
		assert.ErrorAs(t, err, &connErr, "message %q should classify as ConnectionError", msg)
	}
}

func TestClassifyErrorPassesThroughUnknown(t *testing.T) {
	original := errors.New("syntax error")
	assert.Same(t, original, classifyError("widgets", original))
}
