package bridge

import (
	"context"
	"strings"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/gasbridge/pkg/config"
	"github.com/robotalks/gasbridge/pkg/framework"
	"github.com/robotalks/gasbridge/pkg/recorder"
	"github.com/robotalks/gasbridge/pkg/sensor"
	"github.com/robotalks/gasbridge/pkg/serial"
)

const readBufferSize = 1024

// pump reads one sensor channel and feeds the rest of the bridge.
type pump struct {
	bridge   *Bridge
	name     string
	channels []string
	channel  *serial.Channel
	decoder  *sensor.Decoder
	sup      *supervisor
}

func newPump(b *Bridge, sc config.SensorConfig, ch *serial.Channel) *pump {
	dec := sensor.NewDecoder(sc.Name)
	dec.Now = b.now
	dec.RequireChecksum = sc.RequireChecksum
	return &pump{
		bridge:   b,
		name:     sc.Name,
		channels: sc.Channels,
		channel:  ch,
		decoder:  dec,
	}
}

// open opens the channel with a fresh decoder; a partial frame from before
// a disconnect must not be glued to new data.
func (p *pump) open() error {
	if err := p.channel.Open(); err != nil {
		return err
	}
	p.decoder.Reset()
	return nil
}

func (p *pump) serve(ctx context.Context) error {
	return framework.RunWithContextCloser(ctx, p.channel, func() error {
		buf := make([]byte, readBufferSize)
		for {
			n, err := p.channel.Read(buf)
			if n > 0 {
				for _, r := range p.decoder.Feed(buf[:n]) {
					p.handle(r)
				}
			}
			if err != nil {
				return err
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}
	})
}

func (p *pump) handle(r sensor.Result) {
	b := p.bridge
	at := b.now()
	if r.Sample != nil {
		at = r.Sample.Time
	}
	if r.Raw != "" {
		b.record(recorder.Raw(p.name, r.Raw, at))
	}
	if r.Err != nil {
		b.frameErrors.Add(1)
		b.record(recorder.Event(p.name, "frame error", r.Err, at).WithCount(uint64(r.Err.Dropped)))
		if glog.V(2) {
			glog.Infof("sensor %s: %v", p.name, r.Err)
		}
		return
	}
	s := r.Sample
	if drone := b.link.Facts.Drone(); drone != nil {
		s = s.WithDrone(*drone)
	}
	b.recorder.RecordSample(s)
	for _, reading := range s.Readings(p.channels) {
		b.record(recorder.Decoded(reading, s.Drone))
		if dropped, overflow := b.backlog.Push(reading); overflow {
			b.record(droppedEvent(dropped, at))
		}
	}
	b.mirrors.Publish(s)
	if glog.V(3) {
		glog.Infof("sensor %s: %s", p.name, strings.Join(s.Data.Fields(), ","))
	}
}

// droppedEvent records a reading pushed out of the full backlog.
func droppedEvent(r sensor.Reading, at time.Time) recorder.Record {
	rec := recorder.Event(SourceBacklog, "backlog overflow, reading dropped", nil, at).WithCount(1)
	rec.Reading = &recorder.ReadingInfo{Channel: r.Channel, Name: r.Name, Value: r.Value}
	return rec
}
