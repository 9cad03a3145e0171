package recorder

import (
	"errors"
	"fmt"
)

// ErrClosed is returned when using a closed Recorder.
var ErrClosed = errors.New("recorder closed")

// StorageError indicates the output directory is not usable.
type StorageError struct {
	Dir string
	Err error
}

// Error implements error.
func (e *StorageError) Error() string {
	return fmt.Sprintf("output directory %s not writable: %v", e.Dir, e.Err)
}

// Unwrap returns the underlying error.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// WriteError is a failure writing a log file.
type WriteError struct {
	Path string
	Err  error
}

// Error implements error.
func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *WriteError) Unwrap() error {
	return e.Err
}
