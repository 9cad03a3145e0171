package serial

import (
	"errors"
	"fmt"
)

var (
	// ErrNotOpen indicates the channel has no open port.
	ErrNotOpen = errors.New("channel not open")
	// ErrShortWrite indicates the port accepted fewer bytes than requested.
	ErrShortWrite = errors.New("short write")
)

// OpenError is returned when a device can't be opened.
type OpenError struct {
	Path string
	Baud int
	Err  error
}

// Error implements error.
func (e *OpenError) Error() string {
	return fmt.Sprintf("open %s@%d: %v", e.Path, e.Baud, e.Err)
}

// Unwrap returns the underlying error.
func (e *OpenError) Unwrap() error {
	return e.Err
}

// IOError is returned when reading or writing an open device fails.
type IOError struct {
	Path string
	Op   string
	Err  error
}

// Error implements error.
func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *IOError) Unwrap() error {
	return e.Err
}
