package telemetry

import (
	"sync/atomic"
	"time"

	"github.com/robotalks/gasbridge/pkg/mavlink"
	"github.com/robotalks/gasbridge/pkg/sensor"
)

// Position is the latest GLOBAL_POSITION_INT from the flight controller.
type Position struct {
	Lat         float64   `json:"lat"`
	Lon         float64   `json:"lon"`
	AltMSL      float64   `json:"alt_msl"`
	RelativeAlt float64   `json:"relative_alt"`
	Heading     float64   `json:"heading,omitempty"`
	BootMs      uint32    `json:"time_boot_ms"`
	Received    time.Time `json:"received"`
}

// Location converts to the location stamped on sensor samples, altitude
// being relative to home.
func (p *Position) Location() sensor.Location {
	return sensor.Location{Lat: p.Lat, Lon: p.Lon, Alt: p.RelativeAlt}
}

// HeartbeatInfo is the latest HEARTBEAT from the flight controller.
type HeartbeatInfo struct {
	SystemID     byte      `json:"sysid"`
	ComponentID  byte      `json:"compid"`
	Type         byte      `json:"type"`
	Autopilot    byte      `json:"autopilot"`
	BaseMode     byte      `json:"base_mode"`
	CustomMode   uint32    `json:"custom_mode"`
	SystemStatus byte      `json:"system_status"`
	Received     time.Time `json:"received"`
}

// Facts is a snapshot of what is known from the flight controller.
// A Facts value is never modified after being stored.
type Facts struct {
	Position   *Position      `json:"position,omitempty"`
	Heartbeat  *HeartbeatInfo `json:"heartbeat,omitempty"`
	SystemTime *time.Time     `json:"system_time,omitempty"`
	Updated    time.Time      `json:"updated"`
}

// FactsStore holds the latest Facts. There's a single writer, the link's
// receive path, and any number of readers.
type FactsStore struct {
	v atomic.Pointer[Facts]
}

// Load returns the current snapshot, zero if nothing is received yet.
func (s *FactsStore) Load() Facts {
	if f := s.v.Load(); f != nil {
		return *f
	}
	return Facts{}
}

// Drone returns the drone location if a position is known.
func (s *FactsStore) Drone() *sensor.Location {
	if f := s.v.Load(); f != nil && f.Position != nil {
		loc := f.Position.Location()
		return &loc
	}
	return nil
}

func (s *FactsStore) apply(msg mavlink.Message, frame *mavlink.Frame, at time.Time) bool {
	next := s.Load()
	switch m := msg.(type) {
	case *mavlink.GlobalPositionInt:
		next.Position = &Position{
			Lat:         float64(m.Lat) / 1e7,
			Lon:         float64(m.Lon) / 1e7,
			AltMSL:      float64(m.Alt) / 1000,
			RelativeAlt: float64(m.RelativeAlt) / 1000,
			BootMs:      m.TimeBootMs,
			Received:    at,
		}
		if m.Hdg != 0xffff {
			next.Position.Heading = float64(m.Hdg) / 100
		}
	case *mavlink.Heartbeat:
		next.Heartbeat = &HeartbeatInfo{
			SystemID:     frame.SystemID,
			ComponentID:  frame.ComponentID,
			Type:         m.Type,
			Autopilot:    m.Autopilot,
			BaseMode:     m.BaseMode,
			CustomMode:   m.CustomMode,
			SystemStatus: m.SystemStatus,
			Received:     at,
		}
	case *mavlink.SystemTime:
		if m.TimeUnixUsec == 0 {
			return false
		}
		t := time.UnixMicro(int64(m.TimeUnixUsec)).UTC()
		next.SystemTime = &t
	default:
		return false
	}
	next.Updated = at
	s.v.Store(&next)
	return true
}
