package sensor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSampleReadings(t *testing.T) {
	at := time.Now()
	s := &Sample{Sensor: "A", Data: testData(0), Time: at}
	s.Data.CH4, s.Data.C2H6 = 12.5, 3.2

	readings := s.Readings([]string{"CH4", "c2h6", "NOPE", "SOC"})
	require.Equal(t, []Reading{
		{Sensor: "A", Channel: "CH4", Name: "CH4A", Value: 12.5, Time: at},
		{Sensor: "A", Channel: "C2H6", Name: "C2H6A", Value: 3.2, Time: at},
		{Sensor: "A", Channel: "SOC", Name: "SOCA", Value: 35, Time: at},
	}, readings)
}

func TestKnownChannel(t *testing.T) {
	for _, ch := range DefaultChannels {
		require.True(t, KnownChannel(ch))
	}
	require.True(t, KnownChannel("tgas"))
	require.False(t, KnownChannel("CO2"))
}

func TestSampleWithDrone(t *testing.T) {
	s := &Sample{Sensor: "A", Data: testData(0)}
	stamped := s.WithDrone(Location{Lat: 40.1, Lon: -105.2, Alt: 12})
	require.Nil(t, s.Drone)
	require.Equal(t, &Location{Lat: 40.1, Lon: -105.2, Alt: 12}, stamped.Drone)
	require.Equal(t, s.Data, stamped.Data)
}

func TestParseDataFieldCount(t *testing.T) {
	_, err := ParseData([]string{"a"})
	require.Error(t, err)
}

func TestChecksum(t *testing.T) {
	require.Equal(t, byte(0), Checksum(nil))
	require.Equal(t, byte('A'^'B'), Checksum([]byte("AB")))
}
