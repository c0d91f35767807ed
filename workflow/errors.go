package workflow

import (
	"errors"
	"fmt"
	"strings"
)

// ErrStaleRevision is returned when a check-and-set write misses because
// another actor mutated the case first.
var ErrStaleRevision = errors.New("case was modified by another actor, retry with fresh state")

// ValidationError is a missing or unresolvable input. Surfaced immediately,
// never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// IncompleteRequirementsError blocks submission while the checklist or the
// required form is unsatisfied.
type IncompleteRequirementsError struct {
	Missing []string
}

func (e *IncompleteRequirementsError) Error() string {
	return fmt.Sprintf("requirements not met: %s", strings.Join(e.Missing, ", "))
}

// TransientRemoteError wraps a storage/mail/network failure that survived its
// bounded retries.
type TransientRemoteError struct {
	Op  string
	Err error
}

func (e *TransientRemoteError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *TransientRemoteError) Unwrap() error { return e.Err }

// ConsistencyWarning reports a partially applied batch. The operation is not
// rolled back; callers relay the failed subset to the user.
type ConsistencyWarning struct {
	Op     string
	Failed []string
}

func (e *ConsistencyWarning) Error() string {
	return fmt.Sprintf("%s partially failed for: %s", e.Op, strings.Join(e.Failed, ", "))
}
