package mirror

import (
	"github.com/robotalks/gasbridge/pkg/sensor"
	"github.com/robotalks/gasbridge/pkg/serial"
)

// LoRa writes samples to a serial LoRa radio as "<sensor>,<csv line>".
type LoRa struct {
	Channel  *serial.Channel
	Checksum bool
}

// NewLoRa creates a LoRa mirror. The channel is opened on first publish
// and reopened on the publish following a failure.
func NewLoRa(ch *serial.Channel) *LoRa {
	return &LoRa{Channel: ch}
}

// Name implements Mirror.
func (l *LoRa) Name() string {
	return "lora " + l.Channel.Path
}

// Publish implements Mirror.
func (l *LoRa) Publish(s *sensor.Sample) error {
	if l.Channel.State() != serial.StateOpen {
		if err := l.Channel.Open(); err != nil {
			return err
		}
	}
	return l.Channel.Write(Line(s, l.Checksum))
}

// Close implements Mirror.
func (l *LoRa) Close() error {
	return l.Channel.Close()
}

// Line formats a sample for the radio.
func Line(s *sensor.Sample, checksum bool) []byte {
	line := append([]byte(s.Sensor), ',')
	return append(line, sensor.FormatLine(s.Data, checksum)...)
}
