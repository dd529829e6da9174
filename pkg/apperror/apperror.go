package apperror

import (
	"errors"
	"fmt"
)

// Kind is the stable, client-visible category of an error.
type Kind string

const (
	KindValidation        Kind = "validation_error"
	KindNotFound          Kind = "not_found"
	KindInactiveProduct   Kind = "inactive_product"
	KindInsufficientStock Kind = "insufficient_stock"
	KindAlreadyCancelled  Kind = "already_cancelled"
	KindSequenceConflict  Kind = "sequence_conflict"
	KindConflict          Kind = "conflict"
	KindBusy              Kind = "busy"
	KindUnauthorized      Kind = "unauthorized"
	KindForbidden         Kind = "forbidden"
	KindInternal          Kind = "internal_error"
)

// Error is an expected, recoverable failure carrying enough context for the
// caller to act on it.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]interface{}
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Kind so errors.Is(err, &Error{Kind: KindNotFound}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

// WithDetail returns e with one more detail entry.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = map[string]interface{}{}
	}
	e.Details[key] = value
	return e
}

func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func Validation(format string, args ...interface{}) *Error {
	return New(KindValidation, format, args...)
}

func NotFound(entity string, id interface{}) *Error {
	return New(KindNotFound, "%s not found: %v", entity, id).
		WithDetail("entity", entity).
		WithDetail("id", fmt.Sprint(id))
}

func InactiveProduct(id interface{}, name string) *Error {
	return New(KindInactiveProduct, "product %s is not available", name).
		WithDetail("product_id", fmt.Sprint(id)).
		WithDetail("product_name", name)
}

func InsufficientStock(id interface{}, name string, available, requested int) *Error {
	return New(KindInsufficientStock, "insufficient stock for %s. Available: %d", name, available).
		WithDetail("product_id", fmt.Sprint(id)).
		WithDetail("product_name", name).
		WithDetail("available", available).
		WithDetail("requested", requested)
}

func AlreadyCancelled(number string) *Error {
	return New(KindAlreadyCancelled, "transaction %s already cancelled", number).
		WithDetail("transaction_number", number)
}

func SequenceConflict(number string, err error) *Error {
	return Wrap(KindSequenceConflict, err, "transaction number %s already taken", number).
		WithDetail("transaction_number", number)
}

// Busy is a write that kept losing to concurrent ones.
func Busy(err error) *Error {
	return Wrap(KindBusy, err, "the database is busy, please retry")
}

// KindOf returns the Kind of err, or KindInternal for errors that did not
// originate here.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// IsKind reports whether any error in err's chain has the given kind.
func IsKind(err error, kind Kind) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind == kind
	}
	return false
}
