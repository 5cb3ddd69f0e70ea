package model

import (
	"context"

	"github.com/pkg/errors"
)

// Hooks are optional callbacks around model write operations. A before
// hook returning an error vetoes the operation before anything executes.
// An after hook returning an error is surfaced to the caller, but the
// operation has already been applied; the error only reports on the hook.
type Hooks struct {
	BeforeSave func(ctx context.Context, row map[string]interface{}) error
	AfterSave  func(ctx context.Context, row map[string]interface{}) error

	BeforeUpdate func(ctx context.Context, q *Query, u *Update) error
	AfterUpdate  func(ctx context.Context, q *Query, u *Update) error

	BeforeDelete func(ctx context.Context, q *Query) error
	AfterDelete  func(ctx context.Context, q *Query) error
}

func beforeHookErr(err error) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(ErrBeforeHookAborted, err.Error())
}

func afterHookErr(err error) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(ErrAfterHookFailed, err.Error())
}
