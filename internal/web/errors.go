package web

import (
	"errors"
	"fmt"
)

var (
	// ErrFormNotFound is returned when the service page has no form to submit.
	ErrFormNotFound = errors.New("no form found on service page")

	// ErrFieldNotFound is returned when the form has no lookup field.
	ErrFieldNotFound = errors.New("lookup field not found in form")

	// ErrUnexpectedStatus is returned when the site answers with a non-2xx status.
	ErrUnexpectedStatus = errors.New("unexpected HTTP status")

	// ErrBodyTooLarge is returned when a page exceeds the size limit.
	ErrBodyTooLarge = errors.New("page exceeds size limit")

	// ErrEmptyHost is returned when Retrieve is called without a host.
	ErrEmptyHost = errors.New("host is empty")

	// ErrInvalidProxyAddress is returned when the proxy address cannot be parsed.
	ErrInvalidProxyAddress = errors.New("invalid proxy address: expected host:port or socks5://host:port")
)

// Stage names the step of a retrieval that failed.
type Stage string

const (
	// StageOpen is loading the service page.
	StageOpen Stage = "open"
	// StageForm is locating and filling the form.
	StageForm Stage = "form"
	// StageSubmit is submitting the form and reading the result page.
	StageSubmit Stage = "submit"
)

// RetrievalError describes a failed page retrieval.
type RetrievalError struct {
	Stage Stage
	URL   string
	Err   error
}

// Error implements error.
func (e *RetrievalError) Error() string {
	return fmt.Sprintf("page retrieval failed at %s (%s): %v", e.Stage, e.URL, e.Err)
}

// Unwrap returns the underlying error.
func (e *RetrievalError) Unwrap() error {
	return e.Err
}
