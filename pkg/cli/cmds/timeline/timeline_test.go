package timeline

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/gasbridge/pkg/recorder"
	"github.com/robotalks/gasbridge/pkg/sensor"
)

func testRecords() []recorder.Record {
	at := time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)
	ch4 := sensor.Reading{Sensor: "A", Channel: "CH4", Name: "CH4A", Value: 12.5, Time: at.Add(time.Second)}
	return []recorder.Record{
		recorder.Event("bridge", "started", nil, at),
		recorder.Raw("A", "03/20/2024 12:14:00.580,...", at.Add(time.Second)),
		recorder.Decoded(ch4, &sensor.Location{Lat: 40.5, Lon: -105.1, Alt: 12}),
		recorder.Sent("A", recorder.FrameInfo{Seq: 3, MsgID: 251, Message: "NAMED_VALUE_FLOAT"}, &ch4, at.Add(2*time.Second)),
		recorder.Event("B", "sensor error", errors.New("no device"), at.Add(3*time.Second)),
		recorder.Event("backlog", "backlog overflow, reading dropped", nil, at.Add(4*time.Second)).WithCount(1),
		recorder.Event("recorder", "queue overflow, oldest records dropped", nil, at.Add(5*time.Second)).WithCount(7),
	}
}

func TestSummarize(t *testing.T) {
	recs := testRecords()
	s := Summarize(recs)
	require.Equal(t, 7, s.Records)
	require.Equal(t, recs[0].Time, s.From)
	require.Equal(t, recs[6].Time, s.To)
	require.Equal(t, 4, s.Kinds[recorder.KindEvent])
	require.Equal(t, 1, s.Kinds[recorder.KindDecoded])
	require.Equal(t, 3, s.Sources["A"])
	require.Equal(t, 1, s.Events["sensor error"])
	require.Equal(t, uint64(8), s.Lost)
	require.Equal(t, map[string]float32{"CH4A": 12.5}, s.Last)

	text := s.String()
	require.Contains(t, text, "7 records from 2024-03-20T12:00:00Z")
	require.Contains(t, text, "lost: 8")
	require.Contains(t, text, "CH4A")
}

func TestSummarizeEmpty(t *testing.T) {
	require.Equal(t, "0 records", Summarize(nil).String())
}

func TestFilterLast(t *testing.T) {
	recs := testRecords()
	events := Filter(recs, func(rec *recorder.Record) bool { return rec.Kind == recorder.KindEvent })
	require.Len(t, events, 4)
	require.Len(t, events.Last(2), 2)
	require.Equal(t, "recorder", events.Last(2)[1].Source)
	require.Len(t, events.Last(10), 4)
	require.Empty(t, events.Last(0))
	require.NotNil(t, Filter(nil, func(*recorder.Record) bool { return true }))
}

func TestLine(t *testing.T) {
	recs := testRecords()
	testCases := []struct {
		rec    recorder.Record
		expect string
	}{
		{recs[2], "2024-03-20 12:00:01.000 decoded  A      CH4A=12.5 @40.5000000,-105.1000000,12.0m"},
		{recs[3], "2024-03-20 12:00:02.000 sent     A      #3 NAMED_VALUE_FLOAT CH4A=12.5"},
		{recs[4], "2024-03-20 12:00:03.000 event    B      sensor error: no device"},
		{recs[5], "2024-03-20 12:00:04.000 event    backlog backlog overflow, reading dropped (1)"},
	}
	for _, tc := range testCases {
		require.Equal(t, tc.expect, Line(&tc.rec))
	}
}

func TestParseCount(t *testing.T) {
	n, err := parseCount(nil)
	require.NoError(t, err)
	require.Equal(t, DefaultCount, n)
	n, err = parseCount([]string{"5"})
	require.NoError(t, err)
	require.Equal(t, 5, n)
	_, err = parseCount([]string{"-1"})
	require.Error(t, err)
	_, err = parseCount([]string{"x"})
	require.Error(t, err)
}
