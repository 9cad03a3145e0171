package mavlink

import "encoding/binary"

const (
	// STX is the MAVLink v2 start-of-frame marker.
	STX byte = 0xfd
	// IncompatSigned marks a frame carrying a signature.
	IncompatSigned byte = 0x01

	headerLen    = 10
	checksumLen  = 2
	signatureLen = 13
	// MaxFrameLen is the longest possible frame, signature included.
	MaxFrameLen = headerLen + 255 + checksumLen + signatureLen
)

// Frame is a single MAVLink v2 frame.
type Frame struct {
	IncompatFlags byte
	CompatFlags   byte
	Seq           Seq
	SystemID      byte
	ComponentID   byte
	MsgID         uint32
	Payload       []byte
	Checksum      uint16
	Signature     []byte
}

// Signed reports whether the frame carries a signature.
func (f *Frame) Signed() bool {
	return f.IncompatFlags&IncompatSigned != 0
}

func (f *Frame) header() []byte {
	b := make([]byte, headerLen, headerLen+len(f.Payload)+checksumLen+signatureLen)
	b[0], b[1], b[2], b[3] = STX, byte(len(f.Payload)), f.IncompatFlags, f.CompatFlags
	b[4], b[5], b[6] = byte(f.Seq), f.SystemID, f.ComponentID
	b[7], b[8], b[9] = byte(f.MsgID), byte(f.MsgID>>8), byte(f.MsgID>>16)
	return b
}

// ComputeChecksum calculates the checksum of the frame. ok is false when the
// message is unknown and CRC_EXTRA isn't available.
func (f *Frame) ComputeChecksum() (crc uint16, ok bool) {
	info, ok := registry[f.MsgID]
	if !ok {
		return 0, false
	}
	b := append(f.header(), f.Payload...)
	crc = crcCalculate(crcInit, b[1:])
	return crcAccumulate(info.crcExtra, crc), true
}

// Bytes returns encoded bytes for sending. For known messages the checksum
// is recomputed, otherwise Checksum is used as-is.
func (f *Frame) Bytes() []byte {
	b := append(f.header(), f.Payload...)
	crc := f.Checksum
	if info, ok := registry[f.MsgID]; ok {
		crc = crcAccumulate(info.crcExtra, crcCalculate(crcInit, b[1:]))
	}
	b = binary.LittleEndian.AppendUint16(b, crc)
	if f.Signed() {
		sig := make([]byte, signatureLen)
		copy(sig, f.Signature)
		b = append(b, sig...)
	}
	return b
}

// Encode encodes msg into a complete frame.
func Encode(msg Message, sysID, compID byte, seq Seq) ([]byte, error) {
	payload, err := msg.marshal()
	if err != nil {
		return nil, err
	}
	f := &Frame{
		Seq:         seq,
		SystemID:    sysID,
		ComponentID: compID,
		MsgID:       msg.MsgID(),
		Payload:     truncatePayload(payload),
	}
	return f.Bytes(), nil
}

func truncatePayload(p []byte) []byte {
	n := len(p)
	for n > 1 && p[n-1] == 0 {
		n--
	}
	return p[:n]
}
