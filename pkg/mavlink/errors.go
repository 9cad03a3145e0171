package mavlink

import (
	"errors"
	"fmt"
)

var (
	// ErrBadCRC indicates a frame failed checksum verification.
	ErrBadCRC = errors.New("bad crc")
	// ErrUnsupportedFlags indicates incompatibility flags this package can't handle.
	ErrUnsupportedFlags = errors.New("unsupported incompat flags")
	// ErrUnknownMessage matches any UnknownMessageError.
	ErrUnknownMessage = errors.New("unknown message")
	// ErrNameTooLong indicates a NAMED_VALUE_FLOAT name over 10 bytes.
	ErrNameTooLong = errors.New("name too long")
)

// UnknownMessageError is reported for message IDs this package can't decode.
type UnknownMessageError struct {
	ID uint32
}

// Error implements error.
func (e *UnknownMessageError) Error() string {
	return fmt.Sprintf("unknown message %d", e.ID)
}

// Is makes errors.Is(err, ErrUnknownMessage) work.
func (e *UnknownMessageError) Is(target error) bool {
	return target == ErrUnknownMessage
}

// EncodeError is returned when a message can't be represented on the wire.
type EncodeError struct {
	MsgID uint32
	Field string
	Err   error
}

// Error implements error.
func (e *EncodeError) Error() string {
	return fmt.Sprintf("encode %s field %s: %v", Name(e.MsgID), e.Field, e.Err)
}

// Unwrap returns the underlying error.
func (e *EncodeError) Unwrap() error {
	return e.Err
}
