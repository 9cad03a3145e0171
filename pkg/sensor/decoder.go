package sensor

import (
	"bytes"
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// DefaultMaxFrame bounds a buffered partial frame.
const DefaultMaxFrame = 1024

// Result is one item produced by the Decoder, either a Sample or an Err.
type Result struct {
	Sample *Sample
	Err    *FrameError
	// Raw is the frame line without terminator, empty for oversize drops.
	Raw string
}

// Decoder turns a byte stream into Samples.
//
// Frames are lines terminated by '\n' (a preceding '\r' is stripped). A
// line may end with "*HH", the XOR of all bytes before '*' in hex, which is
// then verified. Malformed lines are reported and skipped; the decoder
// resynchronizes at the next terminator.
type Decoder struct {
	Sensor   string
	MaxFrame int

	// RequireChecksum rejects lines without "*HH".
	RequireChecksum bool
	// Now returns the timestamp for completed frames.
	Now func() time.Time

	buf        []byte
	discarding bool
}

// NewDecoder creates a Decoder for the sensor.
func NewDecoder(sensor string) *Decoder {
	return &Decoder{Sensor: sensor, MaxFrame: DefaultMaxFrame, Now: time.Now}
}

// Reset drops buffered bytes so decoding restarts with the next chunk.
func (d *Decoder) Reset() {
	d.buf, d.discarding = d.buf[:0], false
}

// Buffered returns the number of bytes of an incomplete frame.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// Feed consumes a chunk and returns results in stream order.
func (d *Decoder) Feed(chunk []byte) (results []Result) {
	maxFrame := d.MaxFrame
	if maxFrame <= 0 {
		maxFrame = DefaultMaxFrame
	}
	for len(chunk) > 0 {
		pos := bytes.IndexByte(chunk, '\n')
		if d.discarding {
			if pos < 0 {
				return
			}
			chunk = chunk[pos+1:]
			d.discarding = false
			continue
		}
		if pos < 0 {
			d.buf = append(d.buf, chunk...)
			if len(d.buf) > maxFrame {
				results = append(results, Result{Err: &FrameError{
					Sensor:  d.Sensor,
					Reason:  ReasonOversize,
					Dropped: len(d.buf),
					Err:     fmt.Errorf("no terminator within %d bytes", maxFrame),
				}})
				d.buf, d.discarding = d.buf[:0], true
			}
			return
		}
		d.buf = append(d.buf, chunk[:pos]...)
		chunk = chunk[pos+1:]
		line := bytes.TrimRight(d.buf, "\r")
		if len(line) > maxFrame {
			results = append(results, Result{Err: &FrameError{
				Sensor:  d.Sensor,
				Reason:  ReasonOversize,
				Dropped: len(line),
				Err:     fmt.Errorf("frame longer than %d bytes", maxFrame),
			}})
		} else if len(bytes.TrimSpace(line)) > 0 {
			results = append(results, d.decodeLine(string(line)))
		}
		d.buf = d.buf[:0]
	}
	return
}

func (d *Decoder) decodeLine(line string) Result {
	fail := func(reason FrameErrorReason, err error) Result {
		return Result{Raw: line, Err: &FrameError{
			Sensor:  d.Sensor,
			Reason:  reason,
			Raw:     line,
			Dropped: len(line),
			Err:     err,
		}}
	}
	if !utf8.ValidString(line) {
		return fail(ReasonEncoding, fmt.Errorf("invalid UTF-8"))
	}
	body := line
	if n := len(line); n >= 3 && line[n-3] == '*' {
		body = line[:n-3]
		sum, err := hex.DecodeString(line[n-2:])
		if err != nil {
			return fail(ReasonChecksum, fmt.Errorf("invalid checksum digits %q", line[n-2:]))
		}
		if calc := Checksum([]byte(body)); calc != sum[0] {
			return fail(ReasonChecksum, fmt.Errorf("checksum %02X, expect %02X", calc, sum[0]))
		}
	} else if d.RequireChecksum {
		return fail(ReasonChecksum, fmt.Errorf("missing checksum"))
	}
	r := csv.NewReader(strings.NewReader(body))
	r.FieldsPerRecord = -1
	fields, err := r.Read()
	if err != nil {
		return fail(ReasonBadField, err)
	}
	if len(fields) != FieldCount {
		return fail(ReasonFieldCount, fmt.Errorf("expect %d fields, got %d", FieldCount, len(fields)))
	}
	data, err := ParseData(fields)
	if err != nil {
		return fail(ReasonBadField, err)
	}
	now := time.Now
	if d.Now != nil {
		now = d.Now
	}
	return Result{Raw: line, Sample: &Sample{
		Sensor: d.Sensor,
		Data:   data,
		Raw:    line,
		Time:   now(),
	}}
}
