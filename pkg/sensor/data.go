package sensor

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Data is one line of the gas analyser output.
//
//	03/20/2024 12:14:34.580,0,239.983,28.1712,39.2037,28.1712,2.14587,8936.47,
//	8.58853,0.988286,0.104494,11195,14599,558,35,40.5954666138,-105.1388320923
type Data struct {
	TimeStamp   string
	InletNumber uint32
	P           float32 // mbar
	T0          float32 // degC
	T5          float32 // degC
	TGas        float32 // degC
	CH4         float32 // ppm
	H2O         float32 // ppm
	C2H6        float32 // ppb
	R           float32
	C2C1        float32
	Battery     int32 // V
	PowerInput  int32 // mV
	Current     int32 // mA
	SOC         int32 // %
	Lat         float64
	Lon         float64
}

// FieldCount is the number of CSV fields in a frame.
const FieldCount = 17

// Header is the column names used by the analyser.
var Header = []string{
	"Time Stamp", "Inlet Number", "P (mbars)", "T0 (degC)", "T5 (degC)",
	"Tgas(degC)", "CH4 (ppm)", "H2O (ppm)", "C2H6 (ppb)", "R", "C2/C1",
	"Battery Charge (V)", "Power Input (mV)", "Current (mA)", "SOC (%)",
	"Latitude", "Longitude",
}

// Location is the drone position at the time a sample was decoded.
type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
	Alt float64 `json:"alt"`
}

// Sample is a decoded frame. It is never modified after creation.
type Sample struct {
	Sensor string
	Data   Data
	Raw    string
	// Time is taken when the frame completed. It carries both the wall
	// clock and Go's monotonic reading.
	Time  time.Time
	Drone *Location
}

// WithDrone returns a copy of the sample stamped with the drone location.
func (s *Sample) WithDrone(loc Location) *Sample {
	c := *s
	c.Drone = &loc
	return &c
}

// Reading is a single channel value taken from a Sample.
type Reading struct {
	Sensor  string
	Channel string
	// Name is the telemetry tag, Channel followed by Sensor.
	Name  string
	Value float32
	Time  time.Time
}

var channels = map[string]func(*Data) float32{
	"CH4":     func(d *Data) float32 { return d.CH4 },
	"C2H6":    func(d *Data) float32 { return d.C2H6 },
	"H2O":     func(d *Data) float32 { return d.H2O },
	"P":       func(d *Data) float32 { return d.P },
	"T0":      func(d *Data) float32 { return d.T0 },
	"T5":      func(d *Data) float32 { return d.T5 },
	"TGAS":    func(d *Data) float32 { return d.TGas },
	"R":       func(d *Data) float32 { return d.R },
	"C2C1":    func(d *Data) float32 { return d.C2C1 },
	"BATT":    func(d *Data) float32 { return float32(d.Battery) },
	"PWR":     func(d *Data) float32 { return float32(d.PowerInput) },
	"CURRENT": func(d *Data) float32 { return float32(d.Current) },
	"SOC":     func(d *Data) float32 { return float32(d.SOC) },
}

// DefaultChannels are the channels sent to the flight controller.
var DefaultChannels = []string{"CH4", "C2H6"}

// KnownChannel reports whether name is a channel Readings understands.
func KnownChannel(name string) bool {
	_, ok := channels[strings.ToUpper(name)]
	return ok
}

// Readings extracts one Reading per channel, in the given order.
// Unknown channels are skipped.
func (s *Sample) Readings(chs []string) []Reading {
	out := make([]Reading, 0, len(chs))
	for _, ch := range chs {
		ch = strings.ToUpper(ch)
		get, ok := channels[ch]
		if !ok {
			continue
		}
		out = append(out, Reading{
			Sensor:  s.Sensor,
			Channel: ch,
			Name:    ch + s.Sensor,
			Value:   get(&s.Data),
			Time:    s.Time,
		})
	}
	return out
}

// Fields returns the CSV fields of the data.
func (d *Data) Fields() []string {
	f32 := func(v float32) string { return strconv.FormatFloat(float64(v), 'g', -1, 32) }
	f64 := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	i32 := func(v int32) string { return strconv.FormatInt(int64(v), 10) }
	return []string{
		d.TimeStamp,
		strconv.FormatUint(uint64(d.InletNumber), 10),
		f32(d.P), f32(d.T0), f32(d.T5), f32(d.TGas),
		f32(d.CH4), f32(d.H2O), f32(d.C2H6), f32(d.R), f32(d.C2C1),
		i32(d.Battery), i32(d.PowerInput), i32(d.Current), i32(d.SOC),
		f64(d.Lat), f64(d.Lon),
	}
}

// FormatLine encodes data the way the analyser frames it, optionally
// followed by the *HH checksum, and terminated by CRLF.
func FormatLine(d Data, checksum bool) []byte {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Write(d.Fields())
	w.Flush()
	line := bytes.TrimRight(buf.Bytes(), "\r\n")
	if checksum {
		line = append(line, fmt.Sprintf("*%02X", Checksum(line))...)
	}
	return append(line, '\r', '\n')
}

// Checksum is the XOR of all bytes.
func Checksum(p []byte) byte {
	var sum byte
	for _, b := range p {
		sum ^= b
	}
	return sum
}

// ParseData parses the CSV fields of one frame.
func ParseData(fields []string) (Data, error) {
	var d Data
	if len(fields) != FieldCount {
		return d, fmt.Errorf("expect %d fields, got %d", FieldCount, len(fields))
	}
	p := fieldParser{fields: fields}
	d.TimeStamp = strings.TrimSpace(fields[0])
	d.InletNumber = uint32(p.uint(1))
	d.P = p.f32(2)
	d.T0 = p.f32(3)
	d.T5 = p.f32(4)
	d.TGas = p.f32(5)
	d.CH4 = p.f32(6)
	d.H2O = p.f32(7)
	d.C2H6 = p.f32(8)
	d.R = p.f32(9)
	d.C2C1 = p.f32(10)
	d.Battery = p.i32(11)
	d.PowerInput = p.i32(12)
	d.Current = p.i32(13)
	d.SOC = p.i32(14)
	d.Lat = p.f64(15)
	d.Lon = p.f64(16)
	return d, p.err
}

type fieldParser struct {
	fields []string
	err    error
}

func (p *fieldParser) value(i int) string {
	return strings.TrimSpace(p.fields[i])
}

func (p *fieldParser) fail(i int, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("field %q: %w", Header[i], err)
	}
}

func (p *fieldParser) uint(i int) uint64 {
	v, err := strconv.ParseUint(p.value(i), 10, 32)
	if err != nil {
		p.fail(i, err)
	}
	return v
}

func (p *fieldParser) i32(i int) int32 {
	v, err := strconv.ParseInt(p.value(i), 10, 32)
	if err != nil {
		p.fail(i, err)
	}
	return int32(v)
}

func (p *fieldParser) f32(i int) float32 {
	v, err := strconv.ParseFloat(p.value(i), 32)
	if err != nil {
		p.fail(i, err)
	}
	return float32(v)
}

func (p *fieldParser) f64(i int) float64 {
	v, err := strconv.ParseFloat(p.value(i), 64)
	if err != nil {
		p.fail(i, err)
	}
	return v
}
