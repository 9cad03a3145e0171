package bridge

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/robotalks/gasbridge/pkg/config"
)

// State is the state of a supervised channel.
type State int

// States of a supervised channel.
const (
	StateStarting State = iota
	StateOpen
	StateError
	StateReconnecting
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateOpen:
		return "open"
	case StateError:
		return "error"
	case StateReconnecting:
		return "reconnecting"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

var errServeStopped = errors.New("stopped unexpectedly")

// ChannelStatus is the supervised state of a channel.
type ChannelStatus struct {
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	Port      string    `json:"port"`
	State     string    `json:"state"`
	LastError string    `json:"last_error,omitempty"`
	Since     time.Time `json:"since"`
	Failures  int       `json:"failures"`
}

// supervisor keeps one channel open, reopening it with backoff after any
// failure. It never gives up until the context is done.
//
//	Starting -> Open | Error
//	Open -> Error
//	Error -> Reconnecting
//	Reconnecting -> Open | Error
//	any -> Stopped
type supervisor struct {
	name, role, port string
	backoff          config.BackoffConfig

	open  func() error
	serve func(context.Context) error
	close func() error

	onOpen       func()
	onTransition func(from, to State, err error)

	lock     sync.Mutex
	state    State
	lastErr  error
	since    time.Time
	failures int
}

func (s *supervisor) Name() string {
	return s.role + " " + s.name
}

// Run implements framework.Runnable.
func (s *supervisor) Run(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.backoff.Initial
	b.MaxInterval = s.backoff.Max
	b.MaxElapsedTime = 0
	b.Reset()

	s.transition(StateStarting, nil)
	for {
		err := s.open()
		if err == nil {
			b.Reset()
			s.transition(StateOpen, nil)
			if s.onOpen != nil {
				s.onOpen()
			}
			if err = s.serve(ctx); err == nil {
				err = errServeStopped
			}
		}
		if ctx.Err() != nil {
			return s.stop()
		}
		s.transition(StateError, err)

		timer := time.NewTimer(b.NextBackOff())
		select {
		case <-ctx.Done():
			timer.Stop()
			return s.stop()
		case <-timer.C:
		}
		s.transition(StateReconnecting, nil)
	}
}

func (s *supervisor) stop() error {
	s.close()
	s.transition(StateStopped, nil)
	return nil
}

func (s *supervisor) transition(to State, err error) {
	s.lock.Lock()
	from := s.state
	s.state, s.since = to, time.Now()
	if err != nil {
		s.lastErr = err
		s.failures++
	}
	s.lock.Unlock()
	if s.onTransition != nil {
		s.onTransition(from, to, err)
	}
}

// State returns the current state.
func (s *supervisor) State() State {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.state
}

// Status returns a snapshot.
func (s *supervisor) Status() ChannelStatus {
	s.lock.Lock()
	defer s.lock.Unlock()
	st := ChannelStatus{
		Name:     s.name,
		Role:     s.role,
		Port:     s.port,
		State:    s.state.String(),
		Since:    s.since,
		Failures: s.failures,
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}
