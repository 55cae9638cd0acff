package core

import (
	"errors"
	"fmt"
)

// Error kinds. Callers use errors.Is to decide whether to continue or abort.
var (
	// ErrMissingPrecondition indicates a required input file or directory is absent.
	ErrMissingPrecondition = errors.New("missing precondition")
	// ErrExternalDependency indicates the voice model, a service, or a binary failed.
	ErrExternalDependency = errors.New("external dependency failure")
	// ErrItemFailed indicates a single item of a batch could not be processed.
	ErrItemFailed = errors.New("item processing failed")
	// ErrDecode indicates the audio could not be decoded.
	ErrDecode = errors.New("audio decode failed")
)

// ItemError records the failure of one file inside a batch.
type ItemError struct {
	File string
	Err  error
}

// NewItemError wraps err as the failure of file.
func NewItemError(file string, err error) *ItemError {
	return &ItemError{File: file, Err: err}
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("%s: %v", e.File, e.Err)
}

// Unwrap exposes both the item kind and the underlying cause.
func (e *ItemError) Unwrap() []error {
	return []error{ErrItemFailed, e.Err}
}

// MissingPrecondition builds an ErrMissingPrecondition for path with a remediation hint.
func MissingPrecondition(path, hint string) error {
	if hint == "" {
		return fmt.Errorf("%w: %s not found", ErrMissingPrecondition, path)
	}

	return fmt.Errorf("%w: %s not found (%s)", ErrMissingPrecondition, path, hint)
}
