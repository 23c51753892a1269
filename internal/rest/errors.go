package rest

import (
	"fmt"
	"net/http"
)

// ErrorKind categorizes REST failures for the consuming layer. These are
// the only errors the sync core propagates to callers.
type ErrorKind int

const (
	ErrServer ErrorKind = iota
	ErrUnauthorized
	ErrForbidden
	ErrNotFound
	ErrValidation
)

func (k ErrorKind) String() string {
	switch k {
	case ErrUnauthorized:
		return "unauthorized"
	case ErrForbidden:
		return "forbidden"
	case ErrNotFound:
		return "not_found"
	case ErrValidation:
		return "validation"
	default:
		return "server"
	}
}

// APIError is a categorized REST request failure.
type APIError struct {
	Kind    ErrorKind
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (%s, status %d): %s", e.Kind, e.Status, e.Message)
}

func categorize(status int) ErrorKind {
	switch {
	case status == http.StatusUnauthorized:
		return ErrUnauthorized
	case status == http.StatusForbidden:
		return ErrForbidden
	case status == http.StatusNotFound:
		return ErrNotFound
	case status >= 400 && status < 500:
		return ErrValidation
	default:
		return ErrServer
	}
}
