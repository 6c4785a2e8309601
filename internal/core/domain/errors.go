// Package domain contains the core entities of the payment protocol layer:
// payment methods, transactions, amounts and the error taxonomy shared by
// all of them.
package domain

import (
	"errors"
	"strconv"
)

// Category separates the two failure classes of the protocol layer.
type Category string

const (
	// CategorySystem marks errors raised before or independent of any
	// network call: bad configuration, invalid input, precondition
	// violations, integrity mismatches. They are always fatal to the
	// current operation and never leave partial state behind.
	CategorySystem Category = "system"

	// CategoryGateway marks errors raised after a round trip. The HTTP
	// exchange itself succeeded; the business operation was declined or
	// flagged by the gateway.
	CategoryGateway Category = "gateway"
)

// PaymentError is the error type used throughout the protocol layer.
type PaymentError struct {
	Category Category
	Message  string
	Details  string
	Code     int // gateway NCERROR code; zero for system errors
	Err      error
}

func (e *PaymentError) Error() string {
	msg := string(e.Category) + ": " + e.Message
	if e.Code != 0 {
		msg += " (NCERROR " + strconv.Itoa(e.Code) + ")"
	}
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *PaymentError) Unwrap() error {
	return e.Err
}

// NewSystemError creates a system-category error.
func NewSystemError(message, details string) *PaymentError {
	return &PaymentError{Category: CategorySystem, Message: message, Details: details}
}

// WrapSystemError creates a system-category error around an underlying cause.
func WrapSystemError(message string, err error) *PaymentError {
	return &PaymentError{Category: CategorySystem, Message: message, Err: err}
}

// NewGatewayError creates a gateway-category error carrying the remote code.
func NewGatewayError(code int, message string) *PaymentError {
	return &PaymentError{Category: CategoryGateway, Message: message, Code: code}
}

// IsSystem reports whether err is a system-category payment error.
func IsSystem(err error) bool {
	var pe *PaymentError
	return errors.As(err, &pe) && pe.Category == CategorySystem
}

// IsGateway reports whether err is a gateway-category payment error.
func IsGateway(err error) bool {
	var pe *PaymentError
	return errors.As(err, &pe) && pe.Category == CategoryGateway
}
