package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindUnauthenticated
	KindForbidden
	KindOutOfStock
	KindAlreadyPaid
	KindNotPaid
	KindPaymentVerificationFailed
	KindEmptyCart
	KindMissingAddress
	KindMissingPaymentMethod
	KindConflict
	KindProvider
	KindOrderCreationFailed
)

// Error is an expected business failure. Two errors match under errors.Is
// when their kinds are equal.
type Error struct {
	Kind       Kind
	Message    string
	RedirectTo string
	Fields     map[string]string
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrNotFound                  = &Error{Kind: KindNotFound, Message: "not found"}
	ErrUnauthenticated           = &Error{Kind: KindUnauthenticated, Message: "user is not authenticated", RedirectTo: "/sign-in"}
	ErrForbidden                 = &Error{Kind: KindForbidden, Message: "user is not authorized"}
	ErrOutOfStock                = &Error{Kind: KindOutOfStock, Message: "not enough stock"}
	ErrAlreadyPaid               = &Error{Kind: KindAlreadyPaid, Message: "order is already paid"}
	ErrNotPaid                   = &Error{Kind: KindNotPaid, Message: "order is not paid"}
	ErrPaymentVerificationFailed = &Error{Kind: KindPaymentVerificationFailed, Message: "error in payment verification"}
	ErrEmptyCart                 = &Error{Kind: KindEmptyCart, Message: "your cart is empty", RedirectTo: "/cart"}
	ErrMissingAddress            = &Error{Kind: KindMissingAddress, Message: "no shipping address", RedirectTo: "/shipping-address"}
	ErrMissingPaymentMethod      = &Error{Kind: KindMissingPaymentMethod, Message: "no payment method", RedirectTo: "/payment-method"}
	ErrOrderCreationFailed       = &Error{Kind: KindOrderCreationFailed, Message: "order not created"}
)

func NotFound(what string) *Error {
	return &Error{Kind: KindNotFound, Message: what + " not found"}
}

// Validation builds a field-level validation failure. The message lists the
// fields in a stable order.
func Validation(fields map[string]string) *Error {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+fields[name])
	}
	return &Error{Kind: KindValidation, Message: strings.Join(parts, "; "), Fields: fields}
}

func Conflict(field string) *Error {
	return &Error{Kind: KindConflict, Message: field + " already exists"}
}

func Provider(err error) *Error {
	return &Error{Kind: KindProvider, Message: "payment provider error", Err: err}
}

func orderCreationFailed(err error) *Error {
	return &Error{Kind: KindOrderCreationFailed, Message: ErrOrderCreationFailed.Message, Err: err}
}

// KindOf reports the business kind of err, KindInternal for anything else.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
