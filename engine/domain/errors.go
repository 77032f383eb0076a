package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors. Typed errors below unwrap to one of these so callers
// can branch with errors.Is.
var (
	ErrNoListings    = errors.New("no listings found")
	ErrFirstPage     = errors.New("first search page failed")
	ErrPageFetch     = errors.New("search page fetch failed")
	ErrDetailFetch   = errors.New("detail fetch failed")
	ErrRateLimited   = errors.New("rate limited")
	ErrExtraction    = errors.New("detail extraction failed")
	ErrTaskPanic     = errors.New("detail task panicked")
	ErrInvalidParams = errors.New("invalid search params")

	ErrYearRange     = errors.New("year range")
	ErrPriceRange    = errors.New("price range")
	ErrOdometerRange = errors.New("odometer range")
	ErrProximity     = errors.New("proximity")
	ErrPageSize      = errors.New("results per page")
)

// FetchError reports a search page that failed after every attempt.
type FetchError struct {
	Page     int
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch page %d failed after %d attempts: %v", e.Page, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() []error { return []error{ErrPageFetch, e.Err} }

// DetailError reports a detail page that could not be fetched or parsed.
type DetailError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *DetailError) Error() string {
	return fmt.Sprintf("fetch detail %s failed after %d attempts: %v", e.URL, e.Attempts, e.Err)
}

func (e *DetailError) Unwrap() []error { return []error{ErrDetailFetch, e.Err} }

// RateLimitError is returned when every detail attempt was throttled.
type RateLimitError struct {
	URL      string
	Attempts int
	// Signal is the last throttle seen: "429" or the matched body marker.
	Signal string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited after %d attempts: %s (%s)", e.Attempts, e.URL, e.Signal)
}

func (e *RateLimitError) Unwrap() []error { return []error{ErrRateLimited, ErrDetailFetch} }

// ExtractionError reports a detail page whose embedded data was missing or
// malformed.
type ExtractionError struct {
	URL    string
	Reason string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %s", e.URL, e.Reason)
}

func (e *ExtractionError) Unwrap() error { return ErrExtraction }

// PanicError carries a value recovered from a crashed detail task.
type PanicError struct {
	URL   string
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("detail task for %s panicked: %v", e.URL, e.Value)
}

func (e *PanicError) Unwrap() error { return ErrTaskPanic }

// ValidationError wraps a sentinel with context.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() []error { return []error{ErrInvalidParams, e.Wrapped} }

// NewValidationError creates a ValidationError.
func NewValidationError(field, value string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: wrapped}
}
