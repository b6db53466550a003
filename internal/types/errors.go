package types

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies provider failures into the closed taxonomy the
// facade and strategies react to.
type ErrorKind string

const (
	ErrSymbolNotFound    ErrorKind = "SYMBOL_NOT_FOUND"
	ErrInvalidDateRange  ErrorKind = "INVALID_DATE_RANGE"
	ErrInvalidAPIKey     ErrorKind = "INVALID_API_KEY"
	ErrRateLimitExceeded ErrorKind = "RATE_LIMIT_EXCEEDED"
	ErrAPIUnavailable    ErrorKind = "API_UNAVAILABLE"
	ErrNoHealthyProvider ErrorKind = "NO_HEALTHY_PROVIDER"
	ErrUnknownProvider   ErrorKind = "UNKNOWN_PROVIDER"
)

// ProviderError is the typed error surfaced by provider variants and the
// facade. Symbol and RetryAfter give the outer API layer enough context to
// translate into a response without re-inspecting the cause chain.
type ProviderError struct {
	Kind       ErrorKind     `json:"kind"`
	Provider   ProviderTag   `json:"provider,omitempty"`
	Symbol     string        `json:"symbol,omitempty"`
	Message    string        `json:"message"`
	RetryAfter time.Duration `json:"retry_after,omitempty"`
	Err        error         `json:"-"`
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("%s: %s: %s", e.Provider, e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/As chains.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the variant layer may retry the request.
// Only transient upstream faults qualify; deterministic verdicts
// (unknown symbol, bad key) and quota refusals never do.
func (e *ProviderError) Retryable() bool {
	return e.Kind == ErrAPIUnavailable
}

// NewProviderError creates a typed provider error.
func NewProviderError(kind ErrorKind, provider ProviderTag, symbol, message string) *ProviderError {
	return &ProviderError{
		Kind:     kind,
		Provider: provider,
		Symbol:   symbol,
		Message:  message,
	}
}

// WrapProviderError creates a typed provider error wrapping a cause.
func WrapProviderError(kind ErrorKind, provider ProviderTag, symbol string, err error) *ProviderError {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return &ProviderError{
		Kind:     kind,
		Provider: provider,
		Symbol:   symbol,
		Message:  msg,
		Err:      err,
	}
}

// KindOf extracts the error kind from an error chain. Unclassified errors
// report ErrAPIUnavailable since they can only originate from transport or
// parsing faults.
func KindOf(err error) ErrorKind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ErrAPIUnavailable
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// ServableFromStale reports whether an error may be answered from the stale
// cache tier. Deterministic upstream verdicts must never be masked by old
// data.
func ServableFromStale(err error) bool {
	switch KindOf(err) {
	case ErrSymbolNotFound, ErrInvalidAPIKey, ErrInvalidDateRange:
		return false
	}
	return true
}
