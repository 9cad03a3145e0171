package bridge

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/gasbridge/pkg/mirror"
	"github.com/robotalks/gasbridge/pkg/recorder"
	"github.com/robotalks/gasbridge/pkg/telemetry"
)

// Health is a snapshot of the bridge.
type Health struct {
	Time           time.Time          `json:"time"`
	Channels       []ChannelStatus    `json:"channels"`
	Backlog        int                `json:"backlog"`
	BacklogDropped uint64             `json:"backlog_dropped"`
	FrameErrors    uint64             `json:"frame_errors"`
	EncodeErrors   uint64             `json:"encode_errors"`
	SendFailures   uint64             `json:"send_failures"`
	Link           telemetry.Counters `json:"link"`
	Facts          telemetry.Facts    `json:"facts"`
	Recorder       recorder.Stats     `json:"recorder"`
	Mirror         mirror.Stats       `json:"mirror"`
}

// Health returns the current health.
func (b *Bridge) Health() Health {
	h := Health{
		Time:           b.now(),
		Backlog:        b.backlog.Len(),
		BacklogDropped: b.backlog.Dropped(),
		FrameErrors:    b.frameErrors.Load(),
		EncodeErrors:   b.encodeErrors.Load(),
		SendFailures:   b.sendFailures.Load(),
		Link:           b.link.Counters(),
		Facts:          b.link.Facts.Load(),
		Recorder:       b.recorder.Stats(),
		Mirror:         b.mirrors.Stats(),
	}
	for _, s := range b.sups {
		h.Channels = append(h.Channels, s.Status())
	}
	return h
}

func (h Health) String() string {
	var sb strings.Builder
	for _, ch := range h.Channels {
		fmt.Fprintf(&sb, "%s %s=%s ", ch.Role, ch.Name, ch.State)
	}
	fmt.Fprintf(&sb, "backlog=%d dropped=%d frame_errors=%d encode_errors=%d sent=%d send_errors=%d unknown=%d recorder_overflow=%d",
		h.Backlog, h.BacklogDropped, h.FrameErrors, h.EncodeErrors,
		h.Link.Sent, h.Link.SendErrors, h.Link.Unknown, h.Recorder.Overflow)
	if h.Recorder.Failing {
		sb.WriteString(" recorder=failing")
	}
	return sb.String()
}

func (b *Bridge) reportStatus(ctx context.Context) error {
	ticker := time.NewTicker(b.cfg.StatusInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		h := b.Health()
		glog.Infof("status: %s", h)
		rec := recorder.Event(SourceBridge, "status", nil, h.Time)
		rec.Fields = h
		b.record(rec)
		b.mirrors.PublishStatus(h)
	}
}
