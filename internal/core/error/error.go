package errx

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	// SystemErrorMessage is a user-facing fallback when internal errors occur.
	SystemErrorMessage = "internal server error"
	// RedisErrorMessage describes Redis related failures.
	RedisErrorMessage = "redis operation failed"
	// RedisNotFoundMessage describes a missing Redis key.
	RedisNotFoundMessage = "redis key not found"
	// PostgresErrorMessage describes PostgreSQL related failures.
	PostgresErrorMessage = "postgres operation failed"
)

// Kind classifies the failure outcomes of cart and order operations.
type Kind string

const (
	KindNone                 Kind = ""
	KindProductNotFound      Kind = "product_not_found"
	KindInsufficientStock    Kind = "insufficient_stock"
	KindCartEmpty            Kind = "cart_empty"
	KindItemNotInCart        Kind = "item_not_in_cart"
	KindOrderPlacementFailed Kind = "order_placement_failed"
	KindClarificationNeeded  Kind = "clarification_needed"
	KindInternal             Kind = "internal"
)

// AppError wraps an underlying error with an HTTP status, a safe message and
// an optional failure kind.
type AppError struct {
	Err     error
	Status  int
	Message string
	Kind    Kind

	// Available is set for KindInsufficientStock.
	Available int
	// Field names the missing argument for KindClarificationNeeded.
	Field string
	// Subject is the product or query the failure refers to.
	Subject string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError with the provided information.
func New(err error, status int, message string) *AppError {
	return &AppError{
		Err:     err,
		Status:  status,
		Message: message,
	}
}

// Is reports whether the target matches the underlying error, or is an
// AppError of the same non-empty kind.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if errors.As(target, &t) && t.Kind != KindNone && t.Kind == e.Kind {
		return true
	}
	return errors.Is(e.Err, target)
}

// KindOf returns the failure kind carried by err, KindNone for nil and
// KindInternal for errors that are not AppErrors.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	var ae *AppError
	if errors.As(err, &ae) && ae.Kind != KindNone {
		return ae.Kind
	}
	return KindInternal
}

// As returns the AppError in err's chain, if any.
func As(err error) (*AppError, bool) {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

func ProductNotFound(query string) *AppError {
	return &AppError{
		Status:  http.StatusNotFound,
		Message: fmt.Sprintf("product not found: %q", query),
		Kind:    KindProductNotFound,
		Subject: query,
	}
}

func InsufficientStock(product string, available int) *AppError {
	return &AppError{
		Status:    http.StatusConflict,
		Message:   fmt.Sprintf("insufficient stock for %q: %d available", product, available),
		Kind:      KindInsufficientStock,
		Available: available,
		Subject:   product,
	}
}

func CartEmpty() *AppError {
	return &AppError{
		Status:  http.StatusConflict,
		Message: "cart is empty",
		Kind:    KindCartEmpty,
	}
}

func ItemNotInCart(query string) *AppError {
	return &AppError{
		Status:  http.StatusNotFound,
		Message: fmt.Sprintf("item not in cart: %q", query),
		Kind:    KindItemNotInCart,
		Subject: query,
	}
}

func OrderPlacementFailed(cause error) *AppError {
	return &AppError{
		Err:     cause,
		Status:  http.StatusBadGateway,
		Message: "order placement failed",
		Kind:    KindOrderPlacementFailed,
	}
}

func ClarificationNeeded(field, subject string) *AppError {
	return &AppError{
		Status:  http.StatusUnprocessableEntity,
		Message: fmt.Sprintf("clarification needed: %s", field),
		Kind:    KindClarificationNeeded,
		Field:   field,
		Subject: subject,
	}
}
