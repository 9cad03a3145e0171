package bridge

import (
	"sync"

	"github.com/robotalks/gasbridge/pkg/sensor"
)

// DefaultBacklogSize is used when the backlog size is not positive.
const DefaultBacklogSize = 512

type entry struct {
	id      uint64
	reading sensor.Reading
}

// Backlog is a bounded FIFO of readings waiting for the link. When full,
// the oldest reading is dropped, except the one being sent: a peeked head
// stays until it is popped or released.
type Backlog struct {
	size int

	lock     sync.Mutex
	items    []entry
	nextID   uint64
	inflight uint64
	dropped  uint64
	notify   chan struct{}
}

// NewBacklog creates a Backlog.
func NewBacklog(size int) *Backlog {
	if size <= 0 {
		size = DefaultBacklogSize
	}
	return &Backlog{size: size, notify: make(chan struct{}, 1)}
}

// Push appends a reading, returning the dropped one if the backlog was full.
func (b *Backlog) Push(r sensor.Reading) (dropped sensor.Reading, overflow bool) {
	b.lock.Lock()
	if len(b.items) >= b.size {
		overflow = true
		b.dropped++
		victim := 0
		if b.inflight != 0 && b.items[0].id == b.inflight {
			victim = 1
		}
		if victim >= len(b.items) {
			// only the in-flight reading is queued, the new one loses
			b.lock.Unlock()
			return r, true
		}
		dropped = b.items[victim].reading
		copy(b.items[victim:], b.items[victim+1:])
		b.items[len(b.items)-1] = entry{}
		b.items = b.items[:len(b.items)-1]
	}
	b.nextID++
	b.items = append(b.items, entry{id: b.nextID, reading: r})
	b.lock.Unlock()
	select {
	case b.notify <- struct{}{}:
	default:
	}
	return
}

// Peek returns the oldest reading and its id without removing it. The
// reading is marked in flight and won't be dropped on overflow until Pop
// or Release is called with the id.
func (b *Backlog) Peek() (sensor.Reading, uint64, bool) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if len(b.items) == 0 {
		return sensor.Reading{}, 0, false
	}
	b.inflight = b.items[0].id
	return b.items[0].reading, b.items[0].id, true
}

// Pop removes the oldest reading if it is still the one with id.
func (b *Backlog) Pop(id uint64) bool {
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.inflight == id {
		b.inflight = 0
	}
	if len(b.items) == 0 || b.items[0].id != id {
		return false
	}
	b.items[0] = entry{}
	b.items = b.items[1:]
	return true
}

// Release keeps the reading with id queued and makes it droppable again.
func (b *Backlog) Release(id uint64) {
	b.lock.Lock()
	if b.inflight == id {
		b.inflight = 0
	}
	b.lock.Unlock()
}

// Len returns the number of queued readings.
func (b *Backlog) Len() int {
	b.lock.Lock()
	defer b.lock.Unlock()
	return len(b.items)
}

// Dropped returns the number of readings dropped so far.
func (b *Backlog) Dropped() uint64 {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.dropped
}

// Notify is signaled after a Push.
func (b *Backlog) Notify() <-chan struct{} {
	return b.notify
}
