// Package serialtest provides in-memory serial ports for tests.
package serialtest

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/robotalks/gasbridge/pkg/serial"
)

// ErrClosed is returned by Read/Write after Close.
var ErrClosed = errors.New("port closed")

// Port is an in-memory serial.Port. Bytes injected with Inject are returned
// by Read in order; writes are captured.
type Port struct {
	// ReadTimeout is how long Read waits for data before returning (0, nil).
	// Zero blocks until data, failure or Close.
	ReadTimeout time.Duration

	readCh  chan []byte
	failCh  chan error
	closeCh chan struct{}
	writeCh chan struct{}

	lock     sync.Mutex
	pending  []byte
	written  bytes.Buffer
	writeErr error
	closed   bool
}

// NewPort creates a Port.
func NewPort() *Port {
	return &Port{
		ReadTimeout: 20 * time.Millisecond,
		readCh:      make(chan []byte, 256),
		failCh:      make(chan error, 1),
		closeCh:     make(chan struct{}),
		writeCh:     make(chan struct{}, 1),
	}
}

// Inject queues bytes to be read.
func (p *Port) Inject(b []byte) {
	if len(b) == 0 {
		return
	}
	p.readCh <- append([]byte(nil), b...)
}

// FailRead makes the next Read return err.
func (p *Port) FailRead(err error) {
	select {
	case p.failCh <- err:
	default:
	}
}

// FailWrites makes every Write return err until cleared with nil.
func (p *Port) FailWrites(err error) {
	p.lock.Lock()
	p.writeErr = err
	p.lock.Unlock()
}

// Written returns a copy of all bytes written so far.
func (p *Port) Written() []byte {
	p.lock.Lock()
	defer p.lock.Unlock()
	return append([]byte(nil), p.written.Bytes()...)
}

// WriteNotify is signaled after each successful Write.
func (p *Port) WriteNotify() <-chan struct{} {
	return p.writeCh
}

// IsClosed reports whether Close was called.
func (p *Port) IsClosed() bool {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.closed
}

// Read implements io.Reader.
func (p *Port) Read(b []byte) (int, error) {
	p.lock.Lock()
	if p.closed {
		p.lock.Unlock()
		return 0, ErrClosed
	}
	if len(p.pending) > 0 {
		n := copy(b, p.pending)
		p.pending = p.pending[n:]
		p.lock.Unlock()
		return n, nil
	}
	p.lock.Unlock()

	var timeout <-chan time.Time
	if p.ReadTimeout > 0 {
		timeout = time.After(p.ReadTimeout)
	}
	select {
	case err := <-p.failCh:
		return 0, err
	case <-p.closeCh:
		return 0, ErrClosed
	case chunk := <-p.readCh:
		n := copy(b, chunk)
		if n < len(chunk) {
			p.lock.Lock()
			p.pending = append(p.pending, chunk[n:]...)
			p.lock.Unlock()
		}
		return n, nil
	case <-timeout:
		return 0, nil
	}
}

// Write implements io.Writer.
func (p *Port) Write(b []byte) (int, error) {
	p.lock.Lock()
	if p.closed {
		p.lock.Unlock()
		return 0, ErrClosed
	}
	if err := p.writeErr; err != nil {
		p.lock.Unlock()
		return 0, err
	}
	p.written.Write(b)
	p.lock.Unlock()
	select {
	case p.writeCh <- struct{}{}:
	default:
	}
	return len(b), nil
}

// Close implements io.Closer.
func (p *Port) Close() error {
	p.lock.Lock()
	defer p.lock.Unlock()
	if !p.closed {
		p.closed = true
		close(p.closeCh)
	}
	return nil
}

var _ serial.Port = (*Port)(nil)
var _ io.ReadWriteCloser = (*Port)(nil)
