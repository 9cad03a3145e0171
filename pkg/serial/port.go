package serial

import (
	"io"
	"time"

	bugst "go.bug.st/serial"
)

// Port is an opened serial device.
type Port interface {
	io.ReadWriteCloser
}

// Opener opens a device at path with the baud rate.
type Opener func(path string, baud int) (Port, error)

// DefaultReadTimeout bounds a single read so a silent device never
// blocks its reader indefinitely.
const DefaultReadTimeout = 200 * time.Millisecond

// OpenPort opens a real serial device in 8N1 mode with DefaultReadTimeout.
// A read that times out returns (0, nil).
func OpenPort(path string, baud int) (Port, error) {
	return OpenPortWithTimeout(path, baud, DefaultReadTimeout)
}

// OpenPortWithTimeout is OpenPort with an explicit read timeout.
func OpenPortWithTimeout(path string, baud int, timeout time.Duration) (Port, error) {
	mode := &bugst.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   bugst.NoParity,
		StopBits: bugst.OneStopBit,
	}
	port, err := bugst.Open(path, mode)
	if err != nil {
		return nil, err
	}
	if timeout > 0 {
		if err := port.SetReadTimeout(timeout); err != nil {
			port.Close()
			return nil, err
		}
	}
	return port, nil
}
