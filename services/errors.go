package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cppla/smartreader/store"
)

// Error kinds, matched with errors.Is.
var (
	ErrValidation        = errors.New("validation error")
	ErrNotFound          = errors.New("not found")
	ErrRateLimited       = errors.New("rate limited")
	ErrExpired           = errors.New("expired")
	ErrNoMatch           = errors.New("no match")
	ErrAlreadyRegistered = errors.New("already registered")
	ErrDelivery          = errors.New("delivery failed")
	ErrStorage           = errors.New("storage failure")
)

// Error carries the failing operation, its kind and an optional retry hint.
type Error struct {
	Op         string
	Kind       error
	Message    string
	RetryAfter time.Duration
	Err        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// Unwrap returns the underlying error, or the kind when there is none.
func (e *Error) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is matches on the kind as well as the wrapped error.
func (e *Error) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	return e.Err != nil && errors.Is(e.Err, target)
}

func newError(op string, kind error, message string) *Error {
	return &Error{Op: op, Kind: kind, Message: message}
}

func validationError(op, message string) *Error {
	return newError(op, ErrValidation, message)
}

func notFoundError(op, message string) *Error {
	return newError(op, ErrNotFound, message)
}

func storageError(op string, err error) *Error {
	return &Error{Op: op, Kind: ErrStorage, Message: "storage unavailable", Err: err}
}

// RetryAfter extracts the retry hint from a rate limited error.
func RetryAfter(err error) time.Duration {
	var e *Error
	if errors.As(err, &e) {
		return e.RetryAfter
	}
	return 0
}

// withRetry runs fn and repeats it once when the store fails.
// Domain errors, missing records and cancellation are returned as they are.
func withRetry[T any](ctx context.Context, op string, fn func() (T, error)) (T, error) {
	v, err := fn()
	if err == nil || !retryable(ctx, err) {
		return v, wrapStorage(op, err)
	}
	v, err = fn()
	return v, wrapStorage(op, err)
}

func withRetryErr(ctx context.Context, op string, fn func() error) error {
	_, err := withRetry(ctx, op, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

func retryable(ctx context.Context, err error) bool {
	var e *Error
	switch {
	case errors.As(err, &e):
		return false
	case errors.Is(err, store.ErrNotFound):
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return ctx.Err() == nil
}

func wrapStorage(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	if errors.Is(err, store.ErrNotFound) {
		return &Error{Op: op, Kind: ErrNotFound, Message: "record not found", Err: err}
	}
	return storageError(op, err)
}
