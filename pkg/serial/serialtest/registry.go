package serialtest

import (
	"sync"
	"time"

	"github.com/robotalks/gasbridge/pkg/serial"
)

// Registry hands out Ports by path and records every open.
type Registry struct {
	lock     sync.Mutex
	cond     *sync.Cond
	queued   map[string][]*Port
	opened   map[string][]*Port
	failures map[string]error
}

// NewRegistry creates a Registry.
func NewRegistry() *Registry {
	r := &Registry{
		queued:   make(map[string][]*Port),
		opened:   make(map[string][]*Port),
		failures: make(map[string]error),
	}
	r.cond = sync.NewCond(&r.lock)
	return r
}

// Queue registers the port handed out by the next open of path.
func (r *Registry) Queue(path string, port *Port) *Port {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.queued[path] = append(r.queued[path], port)
	return port
}

// FailOpen makes opens of path fail with err, nil clears it.
func (r *Registry) FailOpen(path string, err error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if err == nil {
		delete(r.failures, path)
	} else {
		r.failures[path] = err
	}
}

// Open implements serial.Opener. Without a queued port a new one is created.
func (r *Registry) Open(path string, baud int) (serial.Port, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if err := r.failures[path]; err != nil {
		return nil, err
	}
	var port *Port
	if q := r.queued[path]; len(q) > 0 {
		port, r.queued[path] = q[0], q[1:]
	} else {
		port = NewPort()
	}
	r.opened[path] = append(r.opened[path], port)
	r.cond.Broadcast()
	return port, nil
}

// Opener returns Open as a serial.Opener.
func (r *Registry) Opener() serial.Opener {
	return r.Open
}

// Opens returns how many times path was opened.
func (r *Registry) Opens(path string) int {
	r.lock.Lock()
	defer r.lock.Unlock()
	return len(r.opened[path])
}

// WaitOpen waits until path has been opened n times and returns the n-th
// port, or nil on timeout.
func (r *Registry) WaitOpen(path string, n int, timeout time.Duration) *Port {
	deadline := time.Now().Add(timeout)
	timer := time.AfterFunc(timeout, func() {
		r.lock.Lock()
		r.cond.Broadcast()
		r.lock.Unlock()
	})
	defer timer.Stop()
	r.lock.Lock()
	defer r.lock.Unlock()
	for len(r.opened[path]) < n {
		if !time.Now().Before(deadline) {
			return nil
		}
		r.cond.Wait()
	}
	return r.opened[path][n-1]
}
