package serial

import (
	"sync"
	"time"
)

// State is the lifecycle state of a Channel.
type State int

// Channel states.
const (
	StateClosed State = iota
	StateOpening
	StateOpen
	StateError
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpening:
		return "opening"
	case StateOpen:
		return "open"
	case StateError:
		return "error"
	}
	return "unknown"
}

// Status is a snapshot of a Channel for health reporting.
type Status struct {
	Path      string
	Baud      int
	State     State
	LastError error
	ErrorAt   time.Time
	Opens     int
}

// Channel owns one serial device.
type Channel struct {
	Path string
	Baud int

	opener Opener

	lock      sync.RWMutex
	port      Port
	state     State
	lastErr   error
	errorAt   time.Time
	opens     int
	writeLock sync.Mutex
}

// NewChannel creates a closed Channel. A nil opener uses OpenPort.
func NewChannel(path string, baud int, opener Opener) *Channel {
	if opener == nil {
		opener = OpenPort
	}
	return &Channel{Path: path, Baud: baud, opener: opener}
}

// Open opens the device. An already open channel is left untouched.
func (c *Channel) Open() error {
	c.lock.Lock()
	if c.state == StateOpen {
		c.lock.Unlock()
		return nil
	}
	if c.port != nil {
		c.port.Close()
		c.port = nil
	}
	c.state = StateOpening
	c.lock.Unlock()

	port, err := c.opener(c.Path, c.Baud)

	c.lock.Lock()
	defer c.lock.Unlock()
	if err != nil {
		err = &OpenError{Path: c.Path, Baud: c.Baud, Err: err}
		c.setErrorLocked(err)
		return err
	}
	c.port, c.state = port, StateOpen
	c.opens++
	return nil
}

// Read reads from the device. (0, nil) means the read timed out.
func (c *Channel) Read(p []byte) (int, error) {
	port, err := c.openPort()
	if err != nil {
		return 0, err
	}
	n, err := port.Read(p)
	if err != nil {
		return n, c.fail(port, "read", err)
	}
	return n, nil
}

// Write writes all of p to the device.
func (c *Channel) Write(p []byte) error {
	port, err := c.openPort()
	if err != nil {
		return err
	}
	c.writeLock.Lock()
	n, err := port.Write(p)
	c.writeLock.Unlock()
	if err == nil && n < len(p) {
		err = ErrShortWrite
	}
	if err != nil {
		return c.fail(port, "write", err)
	}
	return nil
}

// Close closes the device and moves to StateClosed. A blocked Read returns.
func (c *Channel) Close() error {
	c.lock.Lock()
	port := c.port
	c.port, c.state = nil, StateClosed
	c.lock.Unlock()
	if port != nil {
		return port.Close()
	}
	return nil
}

// State returns the current state.
func (c *Channel) State() State {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.state
}

// Status returns a snapshot of the channel.
func (c *Channel) Status() Status {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return Status{
		Path:      c.Path,
		Baud:      c.Baud,
		State:     c.state,
		LastError: c.lastErr,
		ErrorAt:   c.errorAt,
		Opens:     c.opens,
	}
}

func (c *Channel) openPort() (Port, error) {
	c.lock.RLock()
	defer c.lock.RUnlock()
	if c.state != StateOpen || c.port == nil {
		return nil, &IOError{Path: c.Path, Op: "use", Err: ErrNotOpen}
	}
	return c.port, nil
}

// fail records an I/O error unless the port was replaced or closed meanwhile,
// in which case the error is a consequence of Close and state is kept.
func (c *Channel) fail(port Port, op string, err error) error {
	ioErr := &IOError{Path: c.Path, Op: op, Err: err}
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.port == port && c.state == StateOpen {
		c.setErrorLocked(ioErr)
	}
	return ioErr
}

func (c *Channel) setErrorLocked(err error) {
	c.state, c.lastErr, c.errorAt = StateError, err, time.Now()
}
