package recorder

import (
	"time"

	"github.com/robotalks/gasbridge/pkg/sensor"
)

// Kind is the type of a Record.
type Kind string

// Record kinds.
const (
	KindRaw      Kind = "raw"
	KindDecoded  Kind = "decoded"
	KindSent     Kind = "sent"
	KindReceived Kind = "received"
	KindEvent    Kind = "event"
)

// Kinds lists all kinds.
var Kinds = []Kind{KindRaw, KindDecoded, KindSent, KindReceived, KindEvent}

// ReadingInfo is the reading carried by decoded and sent records.
type ReadingInfo struct {
	Channel string  `json:"channel"`
	Name    string  `json:"name"`
	Value   float32 `json:"value"`
}

// FrameInfo describes a telemetry frame.
type FrameInfo struct {
	Seq         uint8  `json:"seq"`
	MsgID       uint32 `json:"msgid"`
	Message     string `json:"message"`
	SystemID    uint8  `json:"sysid,omitempty"`
	ComponentID uint8  `json:"compid,omitempty"`
}

// Record is a single line in the log. Records are written in the order
// they are submitted; across sources that is arrival order.
type Record struct {
	Kind    Kind             `json:"kind"`
	Time    time.Time        `json:"time"`
	Source  string           `json:"source,omitempty"`
	Raw     string           `json:"raw,omitempty"`
	Reading *ReadingInfo     `json:"reading,omitempty"`
	Frame   *FrameInfo       `json:"frame,omitempty"`
	Fields  interface{}      `json:"fields,omitempty"`
	Drone   *sensor.Location `json:"drone,omitempty"`
	Event   string           `json:"event,omitempty"`
	Error   string           `json:"error,omitempty"`
	Count   uint64           `json:"count,omitempty"`
}

// Raw creates a raw record of a received sensor line.
func Raw(source, line string, at time.Time) Record {
	return Record{Kind: KindRaw, Time: at, Source: source, Raw: line}
}

// Decoded creates a decoded record for a reading.
func Decoded(r sensor.Reading, drone *sensor.Location) Record {
	return Record{
		Kind:    KindDecoded,
		Time:    r.Time,
		Source:  r.Sensor,
		Reading: &ReadingInfo{Channel: r.Channel, Name: r.Name, Value: r.Value},
		Drone:   drone,
	}
}

// Sent creates a sent record. r is nil for frames not carrying a reading.
func Sent(source string, frame FrameInfo, r *sensor.Reading, at time.Time) Record {
	rec := Record{Kind: KindSent, Time: at, Source: source, Frame: &frame}
	if r != nil {
		rec.Reading = &ReadingInfo{Channel: r.Channel, Name: r.Name, Value: r.Value}
	}
	return rec
}

// Received creates a received record of an inbound message.
func Received(source string, frame FrameInfo, fields interface{}, at time.Time) Record {
	return Record{Kind: KindReceived, Time: at, Source: source, Frame: &frame, Fields: fields}
}

// Event creates an event record.
func Event(source, event string, err error, at time.Time) Record {
	rec := Record{Kind: KindEvent, Time: at, Source: source, Event: event}
	if err != nil {
		rec.Error = err.Error()
	}
	return rec
}

// WithCount sets Count.
func (r Record) WithCount(n uint64) Record {
	r.Count = n
	return r
}
