package bridge

import (
	"context"
	"errors"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/gasbridge/pkg/mavlink"
	"github.com/robotalks/gasbridge/pkg/recorder"
	"github.com/robotalks/gasbridge/pkg/serial"
	"github.com/robotalks/gasbridge/pkg/telemetry"
)

// transmit is the only sender on the link. Readings leave the backlog one
// frame each, in order, and only after the frame was written.
func (b *Bridge) transmit(ctx context.Context) error {
	ticker := time.NewTicker(b.cfg.Link.HeartbeatInterval)
	defer ticker.Stop()
	for {
		b.drain()
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			b.heartbeat()
		case <-b.backlog.Notify():
		case <-b.linkUp:
		}
	}
}

func (b *Bridge) drain() {
	for b.link.State() == serial.StateOpen {
		r, id, ok := b.backlog.Peek()
		if !ok {
			return
		}
		sent, err := b.link.Send(&mavlink.NamedValueFloat{
			TimeBootMs: b.bootMs(),
			Value:      r.Value,
			Name:       r.Name,
		})
		if err != nil {
			var encErr *mavlink.EncodeError
			if errors.As(err, &encErr) {
				// retrying won't help
				b.encodeErrors.Add(1)
				b.backlog.Pop(id)
				rec := recorder.Event(r.Sensor, "reading not encodable", err, b.now())
				rec.Reading = &recorder.ReadingInfo{Channel: r.Channel, Name: r.Name, Value: r.Value}
				b.record(rec)
				glog.Warningf("reading %s from %s dropped: %v", r.Name, r.Sensor, err)
				continue
			}
			b.backlog.Release(id)
			b.sendFailed(sent, err)
			return
		}
		b.backlog.Pop(id)
		b.record(recorder.Sent(r.Sensor, b.frameInfo(sent), &r, sent.Time))
	}
}

func (b *Bridge) heartbeat() {
	if b.link.State() != serial.StateOpen {
		return
	}
	sent, err := b.link.Send(&mavlink.Heartbeat{
		Type:           mavlink.MavTypeOnboardController,
		Autopilot:      mavlink.MavAutopilotInvalid,
		SystemStatus:   mavlink.MavStateStandby,
		MavlinkVersion: mavlink.MavlinkVersion,
	})
	if err != nil {
		b.sendFailed(sent, err)
		return
	}
	b.record(recorder.Sent(SourceLink, b.frameInfo(sent), nil, sent.Time))
}

// sendFailed leaves recovery to the link supervisor: a failed write puts
// the channel in error, which ends the link's reader.
func (b *Bridge) sendFailed(sent telemetry.Sent, err error) {
	b.sendFailures.Add(1)
	rec := recorder.Event(SourceLink, "send failed", err, b.now())
	if sent.Size > 0 {
		info := b.frameInfo(sent)
		rec.Frame = &info
	}
	b.record(rec)
	if glog.V(1) {
		glog.Infof("link send %s: %v", mavlink.Name(sent.MsgID), err)
	}
}

func (b *Bridge) frameInfo(sent telemetry.Sent) recorder.FrameInfo {
	return recorder.FrameInfo{
		Seq:         uint8(sent.Seq),
		MsgID:       sent.MsgID,
		Message:     mavlink.Name(sent.MsgID),
		SystemID:    b.link.SystemID,
		ComponentID: b.link.ComponentID,
	}
}

func (b *Bridge) bootMs() uint32 {
	return uint32(b.now().Sub(b.boot) / time.Millisecond)
}

// receive records what the flight controller sends.
func (b *Bridge) receive(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-b.link.Incoming():
		}
		for _, f := range b.link.Poll() {
			b.record(recorder.Received(SourceLink, recorder.FrameInfo{
				Seq:         uint8(f.Seq),
				MsgID:       f.MsgID,
				Message:     f.Name(),
				SystemID:    f.SystemID,
				ComponentID: f.ComponentID,
			}, f.Message, f.Time))
			if _, ok := f.Message.(*mavlink.GlobalPositionInt); ok && bool(glog.V(2)) {
				if loc := b.link.Facts.Drone(); loc != nil {
					glog.Infof("drone at %.7f,%.7f alt %.1fm", loc.Lat, loc.Lon, loc.Alt)
				}
			}
		}
	}
}
