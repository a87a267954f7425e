package workorder

import (
	"fmt"

	"facilities-maintenance-backend/internal/store"
)

// ErrConflict is returned when the work order changed state between read and
// write.
var ErrConflict = store.ErrConflict

// ValidationError rejects an action before anything is written. Reason is
// safe to show to the user.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func reject(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}
