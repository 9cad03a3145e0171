package mavlink

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCRC(t *testing.T) {
	require.Equal(t, uint16(0x6f91), crcCalculate(crcInit, []byte("123456789")))
	require.Equal(t, crcInit, crcCalculate(crcInit, nil))
}

func TestSeqWraps(t *testing.T) {
	require.Equal(t, Seq(1), Seq(0).Next())
	require.Equal(t, Seq(0), Seq(255).Next())
	s := Seq(250)
	for i := 0; i < 256; i++ {
		s = s.Next()
	}
	require.Equal(t, Seq(250), s)
}

func TestEncodeHeader(t *testing.T) {
	hb := &Heartbeat{
		Type:           MavTypeOnboardController,
		Autopilot:      MavAutopilotInvalid,
		SystemStatus:   MavStateStandby,
		MavlinkVersion: MavlinkVersion,
	}
	b, err := Encode(hb, 1, 191, Seq(7))
	require.NoError(t, err)
	require.Equal(t, []byte{STX, 9, 0, 0, 7, 1, 191, 0, 0, 0}, b[:headerLen])
	require.Equal(t, []byte{0, 0, 0, 0, 18, 8, 0, 3, 3}, b[headerLen:headerLen+9])
	require.Len(t, b, headerLen+9+checksumLen)

	crc := crcAccumulate(50, crcCalculate(crcInit, b[1:headerLen+9]))
	require.Equal(t, []byte{byte(crc), byte(crc >> 8)}, b[headerLen+9:])
}

func TestEncodeTruncatesPayload(t *testing.T) {
	testCases := []struct {
		name   string
		msg    Message
		length int
	}{
		{"named value", &NamedValueFloat{TimeBootMs: 1, Value: 1.5, Name: "CH4A"}, 12},
		{"full name", &NamedValueFloat{TimeBootMs: 1, Value: 1.5, Name: "0123456789"}, 18},
		{"zero heartbeat", &Heartbeat{}, 1},
		{"position", &GlobalPositionInt{Lat: 1}, 5},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			b, err := Encode(tc.msg, 1, 1, 0)
			require.NoError(t, err)
			require.Equal(t, byte(tc.length), b[1])
			require.Len(t, b, headerLen+tc.length+checksumLen)
		})
	}
}

func TestEncodeNameTooLong(t *testing.T) {
	_, err := Encode(&NamedValueFloat{Name: "CH4_SENSOR_A"}, 1, 1, 0)
	var encErr *EncodeError
	require.True(t, errors.As(err, &encErr))
	require.Equal(t, "name", encErr.Field)
	require.ErrorIs(t, err, ErrNameTooLong)
}

func testMessages() []Message {
	return []Message{
		&Heartbeat{CustomMode: 4, Type: MavTypeQuadrotor, Autopilot: MavAutopilotArduPilot, BaseMode: 0x81, SystemStatus: MavStateActive, MavlinkVersion: MavlinkVersion},
		&SystemTime{TimeUnixUsec: 1710936854580000, TimeBootMs: 123456},
		&GlobalPositionInt{TimeBootMs: 99, Lat: 405954666, Lon: -1051388320, Alt: 1600000, RelativeAlt: 12500, Vx: -3, Vy: 4, Vz: 0, Hdg: 0},
		&NamedValueFloat{TimeBootMs: 5000, Value: 2.14587, Name: "CH4A"},
		&NamedValueFloat{Value: -1, Name: "C2H6B"},
	}
}

func encodeAll(t *testing.T, msgs []Message) []byte {
	var buf bytes.Buffer
	for i, m := range msgs {
		b, err := Encode(m, 1, 1, Seq(i))
		require.NoError(t, err)
		buf.Write(b)
	}
	return buf.Bytes()
}

func decodeAll(t *testing.T, results []Result) (msgs []Message, errs []error) {
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, r.Err)
			continue
		}
		m, err := Decode(r.Frame)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		msgs = append(msgs, m)
	}
	return
}

func TestParserRoundTrip(t *testing.T) {
	msgs := testMessages()
	stream := encodeAll(t, msgs)
	for _, chunk := range []int{1, 3, 7, 64, len(stream)} {
		t.Run(fmt.Sprintf("chunk=%d", chunk), func(t *testing.T) {
			var p Parser
			var results []Result
			for rest := stream; len(rest) > 0; {
				n := chunk
				if n > len(rest) {
					n = len(rest)
				}
				results = append(results, p.Feed(rest[:n])...)
				rest = rest[n:]
			}
			got, errs := decodeAll(t, results)
			require.Empty(t, errs)
			require.Equal(t, msgs, got)
			require.False(t, p.Receiving())
			for i, r := range results {
				require.Equal(t, Seq(i), r.Frame.Seq)
				require.Equal(t, byte(1), r.Frame.SystemID)
			}
		})
	}
}

func TestParserSkipsGarbage(t *testing.T) {
	msgs := testMessages()
	var stream []byte
	for i, m := range msgs {
		stream = append(stream, 0x00, 0x55, 0xaa)
		b, err := Encode(m, 1, 1, Seq(i))
		require.NoError(t, err)
		stream = append(stream, b...)
	}
	var p Parser
	got, errs := decodeAll(t, p.Feed(stream))
	require.Empty(t, errs)
	require.Equal(t, msgs, got)
}

func TestParserCorruptedByte(t *testing.T) {
	msgs := testMessages()
	target, err := Encode(msgs[3], 1, 1, 0)
	require.NoError(t, err)
	for pos := 0; pos < len(target); pos++ {
		corrupted := append([]byte(nil), target...)
		corrupted[pos] ^= 0x01

		var stream []byte
		stream = append(stream, encodeAll(t, msgs[:3])...)
		stream = append(stream, corrupted...)
		stream = append(stream, encodeAll(t, msgs[4:])...)

		var p Parser
		got, _ := decodeAll(t, p.Feed(stream))
		expected := append(append([]Message(nil), msgs[:3]...), msgs[4:]...)
		require.Equalf(t, expected, got, "corrupted at %d", pos)
	}
}

func TestParserReportsBadCRC(t *testing.T) {
	b, err := Encode(&NamedValueFloat{Name: "CH4A", Value: 3}, 1, 1, 0)
	require.NoError(t, err)
	b[len(b)-1] ^= 0xff
	var p Parser
	results := p.Feed(b)
	require.Len(t, results, 1)
	require.ErrorIs(t, results[0].Err, ErrBadCRC)
}

func TestParserUnsupportedFlags(t *testing.T) {
	var p Parser
	results := p.Feed([]byte{STX, 9, 0x02})
	require.Len(t, results, 1)
	require.ErrorIs(t, results[0].Err, ErrUnsupportedFlags)
	require.False(t, p.Receiving())
}

func TestParserUnknownMessage(t *testing.T) {
	f := &Frame{MsgID: 30, Payload: []byte{1, 2, 3}, Checksum: 0x1234}
	var p Parser
	results := p.Feed(f.Bytes())
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	require.Equal(t, uint32(30), results[0].Frame.MsgID)

	_, err := Decode(results[0].Frame)
	require.ErrorIs(t, err, ErrUnknownMessage)
	var unknown *UnknownMessageError
	require.True(t, errors.As(err, &unknown))
	require.Equal(t, uint32(30), unknown.ID)
}

func TestParserSignedFrame(t *testing.T) {
	sig := bytes.Repeat([]byte{0xee}, signatureLen)
	payload, err := (&SystemTime{TimeUnixUsec: 42}).marshal()
	require.NoError(t, err)
	f := &Frame{IncompatFlags: IncompatSigned, MsgID: MsgIDSystemTime, Payload: truncatePayload(payload), Signature: sig}
	b := f.Bytes()
	require.Len(t, b, headerLen+1+checksumLen+signatureLen)

	var p Parser
	results := p.Feed(append(b, encodeAll(t, testMessages()[:1])...))
	require.Len(t, results, 2)
	require.Equal(t, sig, results[0].Frame.Signature)
	m, err := Decode(results[0].Frame)
	require.NoError(t, err)
	require.Equal(t, &SystemTime{TimeUnixUsec: 42}, m)
}

func TestName(t *testing.T) {
	require.Equal(t, "NAMED_VALUE_FLOAT", Name(MsgIDNamedValueFloat))
	require.Equal(t, "MSG_77", Name(77))
	require.True(t, Known(MsgIDGlobalPositionInt))
	require.False(t, Known(77))
}
