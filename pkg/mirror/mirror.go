// Package mirror forwards decoded samples to secondary downlinks, such as
// a LoRa radio or an MQTT broker on the ground. Mirrors are best effort:
// failures are counted and logged, never fatal.
package mirror

import (
	"context"
	"sync/atomic"

	"github.com/golang/glog"

	"github.com/robotalks/gasbridge/pkg/framework"
	"github.com/robotalks/gasbridge/pkg/sensor"
)

// DefaultQueueSize is the number of samples waiting to be mirrored.
const DefaultQueueSize = 64

// Mirror receives decoded samples.
type Mirror interface {
	Name() string
	Publish(s *sensor.Sample) error
	Close() error
}

// StatusPublisher is implemented by mirrors that also forward health.
type StatusPublisher interface {
	PublishStatus(status interface{}) error
}

// Stats are mirroring statistics.
type Stats struct {
	Published uint64 `json:"published"`
	Errors    uint64 `json:"errors"`
	Dropped   uint64 `json:"dropped"`
}

// Mux fans samples out to mirrors from its own goroutine, so a slow
// mirror never holds up a sensor.
type Mux struct {
	Mirrors []Mirror

	queue                    chan *sensor.Sample
	published, errs, dropped atomic.Uint64
}

// NewMux creates a Mux.
func NewMux(queueSize int, mirrors ...Mirror) *Mux {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Mux{Mirrors: mirrors, queue: make(chan *sensor.Sample, queueSize)}
}

// Publish queues a sample, dropping it if the queue is full.
func (m *Mux) Publish(s *sensor.Sample) {
	if len(m.Mirrors) == 0 {
		return
	}
	select {
	case m.queue <- s:
	default:
		m.dropped.Add(1)
	}
}

// PublishStatus forwards status to mirrors supporting it.
func (m *Mux) PublishStatus(status interface{}) {
	for _, mirror := range m.Mirrors {
		if p, ok := mirror.(StatusPublisher); ok {
			if err := p.PublishStatus(status); err != nil && glog.V(2) {
				glog.Infof("mirror %s: status: %v", mirror.Name(), err)
			}
		}
	}
}

// Run implements framework.Runnable.
func (m *Mux) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case s := <-m.queue:
			m.publish(s)
		}
	}
}

func (m *Mux) publish(s *sensor.Sample) {
	for _, mirror := range m.Mirrors {
		if err := mirror.Publish(s); err != nil {
			// only the first failure is a warning, the rest is verbose
			if m.errs.Add(1) == 1 || glog.V(2) {
				glog.Warningf("mirror %s: %v", mirror.Name(), err)
			}
			continue
		}
		m.published.Add(1)
	}
}

// Close closes all mirrors.
func (m *Mux) Close() error {
	var errs framework.AggregatedError
	for _, mirror := range m.Mirrors {
		errs.Add(mirror.Close())
	}
	return errs.Aggregate()
}

// Stats returns statistics.
func (m *Mux) Stats() Stats {
	return Stats{
		Published: m.published.Load(),
		Errors:    m.errs.Load(),
		Dropped:   m.dropped.Load(),
	}
}
