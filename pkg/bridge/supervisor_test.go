package bridge

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/gasbridge/pkg/config"
)

type transitions struct {
	lock sync.Mutex
	log  []State
}

func (tr *transitions) add(_, to State, _ error) {
	tr.lock.Lock()
	tr.log = append(tr.log, to)
	tr.lock.Unlock()
}

func (tr *transitions) get() []State {
	tr.lock.Lock()
	defer tr.lock.Unlock()
	return append([]State(nil), tr.log...)
}

func TestSupervisorReconnects(t *testing.T) {
	var tr transitions
	opens := 0
	served := make(chan struct{})
	s := &supervisor{
		name:    "A",
		role:    "sensor",
		backoff: config.BackoffConfig{Initial: time.Millisecond, Max: 5 * time.Millisecond},
		open: func() error {
			opens++
			if opens < 3 {
				return errors.New("no device")
			}
			return nil
		},
		serve: func(ctx context.Context) error {
			close(served)
			<-ctx.Done()
			return ctx.Err()
		},
		close:        func() error { return nil },
		onTransition: tr.add,
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	<-served
	require.Equal(t, StateOpen, s.State())
	cancel()
	require.NoError(t, <-done)

	require.Equal(t, []State{
		StateStarting,
		StateError, StateReconnecting,
		StateError, StateReconnecting,
		StateOpen,
		StateStopped,
	}, tr.get())
	st := s.Status()
	require.Equal(t, "stopped", st.State)
	require.Equal(t, 2, st.Failures)
	require.Equal(t, "no device", st.LastError)
}

func TestSupervisorServeEnds(t *testing.T) {
	var tr transitions
	serves := 0
	ctx, cancel := context.WithCancel(context.Background())
	s := &supervisor{
		name:    "link",
		role:    "link",
		backoff: config.BackoffConfig{Initial: time.Millisecond, Max: time.Millisecond},
		open:    func() error { return nil },
		serve: func(context.Context) error {
			serves++
			if serves == 2 {
				cancel()
				return context.Canceled
			}
			return nil
		},
		close:        func() error { return nil },
		onTransition: tr.add,
	}
	require.NoError(t, s.Run(ctx))
	require.Equal(t, []State{
		StateStarting, StateOpen, StateError, StateReconnecting, StateOpen, StateStopped,
	}, tr.get())
	require.Equal(t, errServeStopped.Error(), s.Status().LastError)
}

func TestBacklogDropsOldest(t *testing.T) {
	b := NewBacklog(2)
	for i := 0; i < 2; i++ {
		_, overflow := b.Push(reading(float32(i)))
		require.False(t, overflow)
	}
	dropped, overflow := b.Push(reading(2))
	require.True(t, overflow)
	require.Equal(t, float32(0), dropped.Value)
	require.Equal(t, 2, b.Len())
	require.Equal(t, uint64(1), b.Dropped())

	r, id, ok := b.Peek()
	require.True(t, ok)
	require.Equal(t, float32(1), r.Value)

	// head kept while being sent, next oldest goes instead
	dropped, overflow = b.Push(reading(3))
	require.True(t, overflow)
	require.Equal(t, float32(2), dropped.Value)
	require.Equal(t, uint64(2), b.Dropped())
	require.True(t, b.Pop(id))
	r, id, _ = b.Peek()
	require.Equal(t, float32(3), r.Value)
	require.True(t, b.Pop(id))
	require.Equal(t, 0, b.Len())

	select {
	case <-b.Notify():
	default:
		t.Fatal("not notified")
	}
}

func TestBacklogInflight(t *testing.T) {
	testCases := []struct {
		name    string
		size    int
		release bool
		dropped float32
		remain  []float32
	}{
		{"single slot keeps head", 1, false, 1, []float32{0}},
		{"single slot released", 1, true, 0, []float32{1}},
		{"released head droppable", 3, true, 0, []float32{1, 2, 3}},
		{"in flight head kept", 3, false, 1, []float32{0, 2, 3}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			b := NewBacklog(tc.size)
			for i := 0; i < tc.size; i++ {
				b.Push(reading(float32(i)))
			}
			_, id, ok := b.Peek()
			require.True(t, ok)
			if tc.release {
				b.Release(id)
			}
			dropped, overflow := b.Push(reading(float32(tc.size)))
			require.True(t, overflow)
			require.Equal(t, tc.dropped, dropped.Value)
			require.Equal(t, uint64(1), b.Dropped())

			var remain []float32
			for {
				r, id, ok := b.Peek()
				if !ok {
					break
				}
				remain = append(remain, r.Value)
				require.True(t, b.Pop(id))
			}
			require.Equal(t, tc.remain, remain)
		})
	}
}
