package sensor

import "fmt"

// FrameErrorReason classifies a malformed frame.
type FrameErrorReason string

// Frame error reasons.
const (
	ReasonChecksum   FrameErrorReason = "checksum"
	ReasonFieldCount FrameErrorReason = "field-count"
	ReasonBadField   FrameErrorReason = "bad-field"
	ReasonOversize   FrameErrorReason = "oversize"
	ReasonEncoding   FrameErrorReason = "encoding"
)

// FrameError reports a frame which was discarded. The decoder keeps going
// after emitting it.
type FrameError struct {
	Sensor string
	Reason FrameErrorReason
	Raw    string
	// Dropped is the number of bytes discarded, terminator excluded.
	Dropped int
	Err     error
}

// Error implements error.
func (e *FrameError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("sensor %s: %s frame (%d bytes): %v", e.Sensor, e.Reason, e.Dropped, e.Err)
	}
	return fmt.Sprintf("sensor %s: %s frame (%d bytes)", e.Sensor, e.Reason, e.Dropped)
}

// Unwrap returns the underlying error.
func (e *FrameError) Unwrap() error {
	return e.Err
}
