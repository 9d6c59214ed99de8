package db

import (
	"errors"
	"fmt"
	"strings"

	"github.com/surrealdb/surrealdb.go"
)

// Sentinel errors, checked with errors.Is.
var (
	ErrAlreadyExists = errors.New("record already exists")

	// ErrTransactionConflict is returned when concurrent writes touch the
	// same records. Callers may retry.
	ErrTransactionConflict = errors.New("transaction conflict")

	ErrNotFound = errors.New("record not found")
)

// queryErrorPatterns maps SurrealDB message fragments to sentinels.
var queryErrorPatterns = []struct {
	fragment string
	sentinel error
}{
	{"already exists", ErrAlreadyExists},
	{"Transaction conflict", ErrTransactionConflict},
	{"does not exist", ErrNotFound},
}

// wrapQueryError attaches a sentinel to known *surrealdb.QueryError messages.
// Anything else is returned unchanged.
func wrapQueryError(err error) error {
	var queryErr *surrealdb.QueryError
	if err == nil || !errors.As(err, &queryErr) {
		return err
	}
	for _, p := range queryErrorPatterns {
		if strings.Contains(queryErr.Message, p.fragment) {
			return fmt.Errorf("%w: %s", p.sentinel, queryErr.Message)
		}
	}
	return err
}
