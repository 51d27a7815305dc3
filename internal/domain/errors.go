package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors raised by cross-entity invariants in the Data Service,
// mirroring original_source/data_service.py's ValueError messages but as
// typed sentinels the way the teacher's internal/domain/*.go files do it.
var (
	ErrSystemUserExists     = errors.New("a system user already exists for this system")
	ErrSystemUserImmutable  = errors.New("the system user cannot be demoted, promoted away from, or deleted")
	ErrDuplicateUsername    = errors.New("another user with this username already exists")
	ErrTaskActionEmpty      = errors.New("task action must not be empty")
	ErrScheduleCronEmpty    = errors.New("schedule cron expression must not be empty")
	ErrTriggerEventAmbiguous = errors.New("trigger event must set exactly one of triggeredByScheduleId or triggeredByUserId")
)

// InvalidState collects every validation violation found on one Validate()
// call, per spec.md §9's "single validate() method returning a list of
// structured errors" design note.
type InvalidState struct {
	Entity string
	Errs   []error
}

func (e *InvalidState) Error() string {
	msgs := make([]string, len(e.Errs))
	for i, err := range e.Errs {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("%s: invalid state: %s", e.Entity, strings.Join(msgs, "; "))
}

func (e *InvalidState) Unwrap() []error { return e.Errs }

// Invalid joins non-empty violations into an *InvalidState, or returns nil
// if errs is empty.
func Invalid(entity string, errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return &InvalidState{Entity: entity, Errs: errs}
}

// ErrorKind enumerates the terminal failure categories an Execution can
// record, per spec.md §4.8.
type ErrorKind string

const (
	ErrorKindValidation ErrorKind = "VALIDATION"
	ErrorKindTask       ErrorKind = "TASK"
	ErrorKindOther      ErrorKind = "OTHER"
)
