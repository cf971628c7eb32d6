package openlibrary

import (
	"errors"
	"fmt"
)

// Kind classifies a failed catalog fetch. It is informational only.
type Kind string

const (
	KindTransport Kind = "transport"
	KindStatus    Kind = "status"
	KindDecode    Kind = "decode"
)

// FetchError is returned for any failed catalog search
type FetchError struct {
	Kind Kind
	// StatusCode is set for KindStatus
	StatusCode int
	Err        error
}

// Error implements the error interface
func (e *FetchError) Error() string {
	if e.Kind == KindStatus {
		return fmt.Sprintf("catalog search failed: unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("catalog search failed (%s): %v", e.Kind, e.Err)
}

// Unwrap returns the underlying error
func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsFetchError reports whether err is, or wraps, a FetchError
func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}
