// Package businessflow contains the core business logic and use cases for the reference service
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Account-related errors
	ErrAccountNotFound    = errors.New("account not found")
	ErrAccountInactive    = errors.New("account is inactive")
	ErrEmailAlreadyExists = errors.New("email already exists")
	// ErrInvalidCredentials covers both unknown email and wrong password so
	// login failures never reveal which one happened
	ErrInvalidCredentials = errors.New("invalid email or password")

	// Reference-related errors
	ErrReferenceNotFound     = errors.New("reference not found")
	ErrReferenceAccessDenied = errors.New("reference access denied")
	ErrReferenceURLRequired  = errors.New("reference url is required")

	// Ingestion and scrape errors
	ErrUnknownScrapeSource = errors.New("unknown scrape source")
	ErrAnalysisFailed      = errors.New("analysis failed")

	// Filter errors
	ErrInvalidLimit  = errors.New("limit must be between 1 and 100")
	ErrInvalidOffset = errors.New("offset must be at least 0")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

func IsAccountNotFound(err error) bool {
	return errors.Is(err, ErrAccountNotFound)
}

func IsAccountInactive(err error) bool {
	return errors.Is(err, ErrAccountInactive)
}

func IsEmailAlreadyExists(err error) bool {
	return errors.Is(err, ErrEmailAlreadyExists)
}

func IsInvalidCredentials(err error) bool {
	return errors.Is(err, ErrInvalidCredentials)
}

func IsReferenceNotFound(err error) bool {
	return errors.Is(err, ErrReferenceNotFound)
}

func IsReferenceAccessDenied(err error) bool {
	return errors.Is(err, ErrReferenceAccessDenied)
}

func IsReferenceURLRequired(err error) bool {
	return errors.Is(err, ErrReferenceURLRequired)
}

func IsUnknownScrapeSource(err error) bool {
	return errors.Is(err, ErrUnknownScrapeSource)
}

func IsAnalysisFailed(err error) bool {
	return errors.Is(err, ErrAnalysisFailed)
}

func IsInvalidLimit(err error) bool {
	return errors.Is(err, ErrInvalidLimit)
}

func IsInvalidOffset(err error) bool {
	return errors.Is(err, ErrInvalidOffset)
}
