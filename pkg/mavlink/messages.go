package mavlink

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// Message IDs.
const (
	MsgIDHeartbeat         uint32 = 0
	MsgIDSystemTime        uint32 = 2
	MsgIDGlobalPositionInt uint32 = 33
	MsgIDNamedValueFloat   uint32 = 251
)

// Enum values used by HEARTBEAT.
const (
	MavTypeGeneric           byte = 0
	MavTypeQuadrotor         byte = 2
	MavTypeOnboardController byte = 18

	MavAutopilotGeneric   byte = 0
	MavAutopilotArduPilot byte = 3
	MavAutopilotInvalid   byte = 8

	MavStateUninit  byte = 0
	MavStateStandby byte = 3
	MavStateActive  byte = 4

	// MavlinkVersion is the value of Heartbeat.MavlinkVersion for v2.
	MavlinkVersion byte = 3
)

// NameLen is the size of the NAMED_VALUE_FLOAT name field.
const NameLen = 10

// Message is implemented by the messages known to this package.
type Message interface {
	MsgID() uint32
	marshal() ([]byte, error)
	unmarshal(payload []byte)
}

type messageInfo struct {
	name     string
	crcExtra byte
	size     int
	create   func() Message
}

var registry = map[uint32]messageInfo{
	MsgIDHeartbeat:         {"HEARTBEAT", 50, 9, func() Message { return &Heartbeat{} }},
	MsgIDSystemTime:        {"SYSTEM_TIME", 137, 12, func() Message { return &SystemTime{} }},
	MsgIDGlobalPositionInt: {"GLOBAL_POSITION_INT", 104, 28, func() Message { return &GlobalPositionInt{} }},
	MsgIDNamedValueFloat:   {"NAMED_VALUE_FLOAT", 170, 18, func() Message { return &NamedValueFloat{} }},
}

// Name returns the message name for an ID.
func Name(id uint32) string {
	if info, ok := registry[id]; ok {
		return info.name
	}
	return fmt.Sprintf("MSG_%d", id)
}

// Known reports whether the message ID can be decoded.
func Known(id uint32) bool {
	_, ok := registry[id]
	return ok
}

// Decode decodes the payload of a frame.
func Decode(f *Frame) (Message, error) {
	info, ok := registry[f.MsgID]
	if !ok {
		return nil, &UnknownMessageError{ID: f.MsgID}
	}
	payload := make([]byte, info.size)
	copy(payload, f.Payload)
	msg := info.create()
	msg.unmarshal(payload)
	return msg, nil
}

// Heartbeat is HEARTBEAT (#0).
type Heartbeat struct {
	CustomMode     uint32
	Type           byte
	Autopilot      byte
	BaseMode       byte
	SystemStatus   byte
	MavlinkVersion byte
}

// MsgID implements Message.
func (m *Heartbeat) MsgID() uint32 { return MsgIDHeartbeat }

func (m *Heartbeat) marshal() ([]byte, error) {
	p := make([]byte, 9)
	binary.LittleEndian.PutUint32(p, m.CustomMode)
	p[4], p[5], p[6], p[7], p[8] = m.Type, m.Autopilot, m.BaseMode, m.SystemStatus, m.MavlinkVersion
	return p, nil
}

func (m *Heartbeat) unmarshal(p []byte) {
	m.CustomMode = binary.LittleEndian.Uint32(p)
	m.Type, m.Autopilot, m.BaseMode, m.SystemStatus, m.MavlinkVersion = p[4], p[5], p[6], p[7], p[8]
}

// SystemTime is SYSTEM_TIME (#2).
type SystemTime struct {
	TimeUnixUsec uint64
	TimeBootMs   uint32
}

// MsgID implements Message.
func (m *SystemTime) MsgID() uint32 { return MsgIDSystemTime }

func (m *SystemTime) marshal() ([]byte, error) {
	p := make([]byte, 12)
	binary.LittleEndian.PutUint64(p, m.TimeUnixUsec)
	binary.LittleEndian.PutUint32(p[8:], m.TimeBootMs)
	return p, nil
}

func (m *SystemTime) unmarshal(p []byte) {
	m.TimeUnixUsec = binary.LittleEndian.Uint64(p)
	m.TimeBootMs = binary.LittleEndian.Uint32(p[8:])
}

// GlobalPositionInt is GLOBAL_POSITION_INT (#33).
type GlobalPositionInt struct {
	TimeBootMs  uint32
	Lat         int32 // degE7
	Lon         int32 // degE7
	Alt         int32 // mm, MSL
	RelativeAlt int32 // mm above home
	Vx, Vy, Vz  int16 // cm/s
	Hdg         uint16
}

// MsgID implements Message.
func (m *GlobalPositionInt) MsgID() uint32 { return MsgIDGlobalPositionInt }

func (m *GlobalPositionInt) marshal() ([]byte, error) {
	p := make([]byte, 28)
	le := binary.LittleEndian
	le.PutUint32(p, m.TimeBootMs)
	le.PutUint32(p[4:], uint32(m.Lat))
	le.PutUint32(p[8:], uint32(m.Lon))
	le.PutUint32(p[12:], uint32(m.Alt))
	le.PutUint32(p[16:], uint32(m.RelativeAlt))
	le.PutUint16(p[20:], uint16(m.Vx))
	le.PutUint16(p[22:], uint16(m.Vy))
	le.PutUint16(p[24:], uint16(m.Vz))
	le.PutUint16(p[26:], m.Hdg)
	return p, nil
}

func (m *GlobalPositionInt) unmarshal(p []byte) {
	le := binary.LittleEndian
	m.TimeBootMs = le.Uint32(p)
	m.Lat = int32(le.Uint32(p[4:]))
	m.Lon = int32(le.Uint32(p[8:]))
	m.Alt = int32(le.Uint32(p[12:]))
	m.RelativeAlt = int32(le.Uint32(p[16:]))
	m.Vx = int16(le.Uint16(p[20:]))
	m.Vy = int16(le.Uint16(p[22:]))
	m.Vz = int16(le.Uint16(p[24:]))
	m.Hdg = le.Uint16(p[26:])
}

// NamedValueFloat is NAMED_VALUE_FLOAT (#251).
type NamedValueFloat struct {
	TimeBootMs uint32
	Value      float32
	Name       string
}

// MsgID implements Message.
func (m *NamedValueFloat) MsgID() uint32 { return MsgIDNamedValueFloat }

func (m *NamedValueFloat) marshal() ([]byte, error) {
	if len(m.Name) > NameLen {
		return nil, &EncodeError{MsgID: MsgIDNamedValueFloat, Field: "name", Err: ErrNameTooLong}
	}
	p := make([]byte, 18)
	binary.LittleEndian.PutUint32(p, m.TimeBootMs)
	binary.LittleEndian.PutUint32(p[4:], math.Float32bits(m.Value))
	copy(p[8:], m.Name)
	return p, nil
}

func (m *NamedValueFloat) unmarshal(p []byte) {
	m.TimeBootMs = binary.LittleEndian.Uint32(p)
	m.Value = math.Float32frombits(binary.LittleEndian.Uint32(p[4:]))
	name := p[8:18]
	if n := bytes.IndexByte(name, 0); n >= 0 {
		name = name[:n]
	}
	m.Name = string(name)
}
