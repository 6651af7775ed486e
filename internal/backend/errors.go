package backend

import (
	"fmt"
	"net/http"

	"github.com/mekod/ledger/internal/common"
)

// Wire-level error codes this core reacts to.
const (
	codeUniqueViolation = "23505" // duplicate key
	codeUndefinedTable  = "42P01" // expected schema not installed
)

// Error is a structured backend failure: HTTP status plus the
// PostgREST/GoTrue error code and message. Callers branch on taxonomy via
// errors.Is against the sentinels in internal/common rather than matching
// code strings.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("backend: %s (code=%s, status=%d)", e.Message, e.Code, e.Status)
	}
	return fmt.Sprintf("backend: %s (status=%d)", e.Message, e.Status)
}

func notFoundError(table string) error {
	return fmt.Errorf("%w: no matching row in %q", common.ErrNotFound, table)
}

// Is maps wire codes onto the shared sentinels, so
// errors.Is(err, common.ErrConflict) works wherever the error surfaced.
func (e *Error) Is(target error) bool {
	switch target {
	case common.ErrConflict:
		return e.Code == codeUniqueViolation
	case common.ErrSchemaMissing:
		return e.Code == codeUndefinedTable
	case common.ErrUnauthorized:
		return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
	}
	return false
}
