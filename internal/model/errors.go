// Package model holds the registered object models and compiles their
// find, save, update and delete operations into parameterized CQL.
package model

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies which operation an error came from.
type Kind string

const (
	KindFind          Kind = "find"
	KindSave          Kind = "save"
	KindUpdate        Kind = "update"
	KindDelete        Kind = "delete"
	KindTableCreation Kind = "tablecreation"
)

// Error wraps an operation failure with the operation kind, so callers
// can branch on what failed without string matching.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// opError wraps err as an operation error; nil stays nil.
func opError(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

var (
	// ErrBeforeHookAborted is returned when a before hook rejects the
	// operation; nothing has been executed.
	ErrBeforeHookAborted = errors.New("operation aborted by before hook")

	// ErrAfterHookFailed is returned when an after hook fails; the
	// operation itself has already executed successfully.
	ErrAfterHookFailed = errors.New("after hook failed, operation was already applied")

	// ErrModelNotRegistered is returned when an unknown model name is
	// looked up.
	ErrModelNotRegistered = errors.New("model not registered")
)
