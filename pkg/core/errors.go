package core

import (
	"errors"
	"fmt"
	"net/http"
)

// Error categories. Every failure the explorer reports wraps one of these.
var (
	// ErrFetchFailure marks a non-2xx response or a transport error.
	ErrFetchFailure = errors.New("fetch failure")

	// ErrPrecondition marks an operation attempted in a state that does not allow it.
	ErrPrecondition = errors.New("precondition failure")
)

// Precondition failures.
var (
	ErrNoSnapshot      = fmt.Errorf("%w: no graph loaded yet", ErrPrecondition)
	ErrUnknownNode     = fmt.Errorf("%w: node not in current view", ErrPrecondition)
	ErrInvalidViewMode = fmt.Errorf("%w: invalid view mode", ErrPrecondition)
)

// FetchError describes a failed read from a graph source.
type FetchError struct {
	// Endpoint names what was being fetched, e.g. "users" or "/graph".
	Endpoint string
	// StatusCode is the HTTP status, or 0 for transport failures.
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("fetch %s: HTTP %d: %v", e.Endpoint, e.StatusCode, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("fetch %s: HTTP %d %s", e.Endpoint, e.StatusCode, http.StatusText(e.StatusCode))
	case e.Err != nil:
		return fmt.Sprintf("fetch %s: %v", e.Endpoint, e.Err)
	default:
		return fmt.Sprintf("fetch %s failed", e.Endpoint)
	}
}

// Unwrap exposes both the category and the underlying cause.
func (e *FetchError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrFetchFailure}
	}
	return []error{ErrFetchFailure, e.Err}
}

// IsFetchFailure reports whether err is a fetch failure.
func IsFetchFailure(err error) bool {
	return errors.Is(err, ErrFetchFailure)
}

// IsPrecondition reports whether err is a precondition failure.
func IsPrecondition(err error) bool {
	return errors.Is(err, ErrPrecondition)
}
