package common

import (
	"errors"
	"fmt"
)

var (
	ErrUniqueViolation     = errors.New("unique constraint violation")
	ErrForeignKeyViolation = errors.New("foreign key constraint violation")
	ErrNotNullViolation    = errors.New("not null constraint violation")
)

// ConstraintError pairs a driver error with the kind of constraint it broke.
// errors.Is matches both the kind and the driver error.
type ConstraintError struct {
	Kind error
	Err  error
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("%v: %v", e.Kind, e.Err)
}

func (e *ConstraintError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// IsConstraint reports whether err is any classified constraint violation.
func IsConstraint(err error) bool {
	var ce *ConstraintError
	return errors.As(err, &ce)
}

func Constraint(kind, err error) error {
	return &ConstraintError{Kind: kind, Err: err}
}
