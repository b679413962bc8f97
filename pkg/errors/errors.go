package errors

import (
	"errors"
	"fmt"
)

// Domain error types for business logic

var (
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrAlreadyExists indicates a resource already exists
	ErrAlreadyExists = errors.New("resource already exists")

	// ErrInvalidInput indicates invalid input parameters
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates the caller does not hold the required role
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInternal indicates an internal server error
	ErrInternal = errors.New("internal error")

	// ErrUnavailable indicates a service is unavailable
	ErrUnavailable = errors.New("service unavailable")
)

// Fund accounting errors

var (
	// ErrInvalidNavPrice indicates a zero NAV was submitted or NAV was never initialized
	ErrInvalidNavPrice = errors.New("NAV price is zero or invalid")

	// ErrInvalidAmount indicates a zero quantity or a computed result that rounds to zero
	ErrInvalidAmount = errors.New("amount must be greater than zero")

	// ErrInsufficientTokens indicates a share or payment balance is below what is required
	ErrInsufficientTokens = errors.New("insufficient tokens")

	// ErrArithmeticOverflow indicates a fixed-point computation exceeded its working precision
	ErrArithmeticOverflow = errors.New("arithmetic overflow")

	// ErrFundPaused indicates subscribe/redeem were attempted while the fund is paused
	ErrFundPaused = errors.New("fund is paused")

	// ErrRedemptionQueueFull indicates the redemption queue reached capacity
	ErrRedemptionQueueFull = errors.New("redemption queue has reached max capacity")

	// ErrInvalidStatusTransition indicates a redemption status change out of order
	ErrInvalidStatusTransition = errors.New("invalid redemption status transition")

	// ErrFundNotFound indicates the fund does not exist
	ErrFundNotFound = fmt.Errorf("fund %w", ErrNotFound)

	// ErrRedemptionNotFound indicates the redemption request does not exist
	ErrRedemptionNotFound = fmt.Errorf("redemption request %w", ErrNotFound)
)

// codes maps sentinels to stable identifiers used in metrics labels and API bodies.
// Order matters: more specific sentinels first.
var codes = []struct {
	err  error
	code string
}{
	{ErrInvalidNavPrice, "invalid_nav_price"},
	{ErrUnauthorized, "unauthorized"},
	{ErrInvalidAmount, "invalid_amount"},
	{ErrInsufficientTokens, "insufficient_tokens"},
	{ErrArithmeticOverflow, "arithmetic_overflow"},
	{ErrFundPaused, "fund_paused"},
	{ErrRedemptionQueueFull, "redemption_queue_full"},
	{ErrInvalidStatusTransition, "invalid_status_transition"},
	{ErrFundNotFound, "fund_not_found"},
	{ErrRedemptionNotFound, "redemption_not_found"},
	{ErrNotFound, "not_found"},
	{ErrAlreadyExists, "already_exists"},
	{ErrInvalidInput, "invalid_input"},
	{ErrUnavailable, "unavailable"},
}

// Code returns a stable snake_case code for err, "ok" for nil and "internal" when unknown.
func Code(err error) string {
	if err == nil {
		return "ok"
	}
	var de *DomainError
	if errors.As(err, &de) && de.Code != "" {
		return de.Code
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "internal"
}

// DomainError wraps an error with additional context
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// MultiError wraps multiple errors
type MultiError struct {
	Errors []error
}

// Error implements the error interface
func (m *MultiError) Error() string {
	if len(m.Errors) == 0 {
		return "no errors"
	}
	if len(m.Errors) == 1 {
		return m.Errors[0].Error()
	}
	return fmt.Sprintf("multiple errors (%d): %v", len(m.Errors), m.Errors[0])
}

// Add adds an error to the list
func (m *MultiError) Add(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
}

// Unwrap exposes the collected errors to errors.Is and errors.As
func (m *MultiError) Unwrap() []error {
	return m.Errors
}

// HasErrors returns true if there are any errors
func (m *MultiError) HasErrors() bool {
	return len(m.Errors) > 0
}

// ToError returns the MultiError as an error, or nil if no errors
func (m *MultiError) ToError() error {
	if !m.HasErrors() {
		return nil
	}
	return m
}

// Helper functions

// Is checks if err is or wraps target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target type
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap wraps an error with context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

func New(message string) error {
	return errors.New(message)
}

func Newf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}
