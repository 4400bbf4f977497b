package models

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidLabel            = errors.New("model label must be of the form 'app_label.ModelName'")
	ErrModelNotFound           = errors.New("model not found")
	ErrDoesNotExist            = errors.New("object does not exist")
	ErrMultipleObjectsReturned = errors.New("multiple objects returned")
	ErrIntegrity               = errors.New("integrity error")
	ErrProtected               = errors.New("protected")
)

// LookupError reports a label that no registered model answers to.
type LookupError struct {
	AppLabel  string
	ModelName string
	NoApp     bool
}

func (e *LookupError) Error() string {
	if e.NoApp {
		return fmt.Sprintf("No installed app with label '%s'.", e.AppLabel)
	}
	return fmt.Sprintf("App '%s' doesn't have a '%s' model.", e.AppLabel, e.ModelName)
}

func (e *LookupError) Unwrap() error { return ErrModelNotFound }

// ObjectError is returned by Get when the filter matches zero or several rows.
// Kind is ErrDoesNotExist or ErrMultipleObjectsReturned.
type ObjectError struct {
	Model string
	Kind  error
	Count int
}

func (e *ObjectError) Error() string {
	if errors.Is(e.Kind, ErrMultipleObjectsReturned) {
		return fmt.Sprintf("get() returned more than one %s -- it returned %d!", e.Model, e.Count)
	}
	return fmt.Sprintf("%s matching query does not exist.", e.Model)
}

func (e *ObjectError) Unwrap() error { return e.Kind }

func NewDoesNotExist(model string) error {
	return &ObjectError{Model: model, Kind: ErrDoesNotExist}
}

func NewMultipleObjectsReturned(model string, count int) error {
	return &ObjectError{Model: model, Kind: ErrMultipleObjectsReturned, Count: count}
}

// ProtectedError names the reference that blocked a delete.
type ProtectedError struct {
	Model string
	Ref   Reference
	Count int
}

func (e *ProtectedError) Error() string {
	return fmt.Sprintf("cannot delete %s: referenced by %d row(s) in %s.%s", e.Model, e.Count, e.Ref.Table, e.Ref.Column)
}

func (e *ProtectedError) Unwrap() error { return ErrProtected }
