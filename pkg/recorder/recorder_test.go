package recorder

import (
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/gasbridge/pkg/sensor"
)

func readAll(t *testing.T, dir string) []Record {
	files, err := LogFiles(dir)
	require.NoError(t, err)
	recs, err := ReadFiles(files...)
	require.NoError(t, err)
	return recs
}

func events(recs []Record) (out []string) {
	for _, rec := range recs {
		if rec.Kind == KindEvent {
			out = append(out, rec.Event)
		} else {
			out = append(out, rec.Raw)
		}
	}
	return
}

func TestRecordAndReadBack(t *testing.T) {
	dir := t.TempDir()
	r := New(Options{Dir: dir})
	at := time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)
	reading := sensor.Reading{Sensor: "A", Channel: "CH4", Name: "CH4A", Value: 12.5, Time: at}
	r.Record(Raw("A", "line", at))
	r.Record(Decoded(reading, &sensor.Location{Lat: 1, Lon: 2, Alt: 3}))
	r.Record(Sent("link", FrameInfo{Seq: 7, MsgID: 251, Message: "NAMED_VALUE_FLOAT"}, &reading, at))
	r.Record(Received("link", FrameInfo{Seq: 1, MsgID: 0, Message: "HEARTBEAT", SystemID: 1, ComponentID: 1}, map[string]int{"type": 2}, at))
	r.Record(Event("B", "channel open", errors.New("boom"), time.Time{}))
	require.NoError(t, r.Close())

	recs := readAll(t, dir)
	require.Len(t, recs, 5)
	require.Equal(t, KindRaw, recs[0].Kind)
	require.Equal(t, "line", recs[0].Raw)
	require.True(t, at.Equal(recs[0].Time))

	require.Equal(t, KindDecoded, recs[1].Kind)
	require.Equal(t, &ReadingInfo{Channel: "CH4", Name: "CH4A", Value: 12.5}, recs[1].Reading)
	require.Equal(t, &sensor.Location{Lat: 1, Lon: 2, Alt: 3}, recs[1].Drone)

	require.Equal(t, KindSent, recs[2].Kind)
	require.Equal(t, uint8(7), recs[2].Frame.Seq)
	require.Equal(t, "CH4A", recs[2].Reading.Name)

	require.Equal(t, KindReceived, recs[3].Kind)
	require.Equal(t, map[string]interface{}{"type": float64(2)}, recs[3].Fields)

	require.Equal(t, KindEvent, recs[4].Kind)
	require.Equal(t, "boom", recs[4].Error)
	require.False(t, recs[4].Time.IsZero())

	require.Equal(t, uint64(5), r.Stats().Written)
	require.ErrorIs(t, r.Close(), ErrClosed)
}

func TestQueueOverflowDropsOldest(t *testing.T) {
	dir := t.TempDir()
	r := newRecorder(Options{Dir: dir, QueueSize: 3})
	for _, s := range []string{"a", "b", "c", "d", "e"} {
		r.Record(Raw("A", s, time.Now()))
	}
	require.Equal(t, uint64(2), r.Stats().Overflow)
	go r.run()
	require.NoError(t, r.Close())

	recs := readAll(t, dir)
	require.Equal(t, []string{"queue overflow, oldest records dropped", "c", "d", "e"}, events(recs))
	require.Equal(t, uint64(2), recs[0].Count)
}

func TestCloseDrainsQueue(t *testing.T) {
	dir := t.TempDir()
	r := New(Options{Dir: dir})
	for i := 0; i < 200; i++ {
		r.Record(Raw("A", strings.Repeat("x", i%7+1), time.Now()))
	}
	require.NoError(t, r.Close())
	require.Len(t, readAll(t, dir), 200)

	// ignored after close
	r.Record(Raw("A", "late", time.Now()))
	require.Len(t, readAll(t, dir), 200)
}

func TestRotateBySize(t *testing.T) {
	dir := t.TempDir()
	r := New(Options{Dir: dir, MaxFileBytes: 300})
	var expected []string
	for i := 0; i < 30; i++ {
		line := strings.Repeat(string(rune('a'+i%26)), 40)
		expected = append(expected, line)
		r.Record(Raw("A", line, time.Now()))
	}
	require.NoError(t, r.Close())

	files, err := LogFiles(dir)
	require.NoError(t, err)
	require.Greater(t, len(files), 10)
	for _, f := range files {
		info, err := os.Stat(f)
		require.NoError(t, err)
		require.LessOrEqual(t, info.Size(), int64(300))
	}
	require.Equal(t, expected, events(readAll(t, dir)))
}

func TestRotateByAge(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	r := newRecorder(Options{Dir: dir, MaxFileAge: time.Minute, Now: clock})
	r.Record(Raw("A", "a", now))
	r.write(r.queue[0].rec)
	first := r.out.path
	now = now.Add(2 * time.Minute)
	r.write(Raw("A", "b", now))
	require.NotEqual(t, first, r.out.path)
	r.out.close()

	files, err := LogFiles(dir)
	require.NoError(t, err)
	require.Len(t, files, 2)
	require.Contains(t, filepath.Base(files[0]), "gasbridge_20240320-120000_")
}

func waitStats(t *testing.T, r *Recorder, cond func(Stats) bool) {
	require.Eventually(t, func() bool { return cond(r.Stats()) }, 5*time.Second, 5*time.Millisecond)
}

func TestWriteFailureAndRecovery(t *testing.T) {
	base := t.TempDir()
	dir := filepath.Join(base, "logs")
	require.NoError(t, Preflight(dir))
	r := New(Options{Dir: dir, MaxFileBytes: 1, RetryInterval: 10 * time.Millisecond})

	r.Record(Raw("A", "a", time.Now()))
	waitStats(t, r, func(s Stats) bool { return s.Written == 1 })

	require.NoError(t, os.RemoveAll(dir))
	r.Record(Raw("A", "b", time.Now()))
	r.Record(Raw("A", "c", time.Now()))
	waitStats(t, r, func(s Stats) bool { return s.Failing && s.Pending == 2 })

	require.NoError(t, os.MkdirAll(dir, 0755))
	waitStats(t, r, func(s Stats) bool { return !s.Failing && s.Pending == 0 })
	r.Record(Raw("A", "d", time.Now()))
	require.NoError(t, r.Close())

	recs := readAll(t, dir)
	require.Equal(t, []string{"recorder recovered", "b", "c", "d"}, events(recs))
	require.Zero(t, recs[0].Count)
	require.NotEmpty(t, recs[0].Error)
}

func TestPendingLimit(t *testing.T) {
	base := t.TempDir()
	dir := filepath.Join(base, "logs")
	require.NoError(t, Preflight(dir))
	r := New(Options{Dir: dir, MaxFileBytes: 1, PendingLimit: 2, RetryInterval: 10 * time.Millisecond})
	require.NoError(t, os.RemoveAll(dir))

	for _, s := range []string{"a", "b", "c", "d", "e"} {
		r.Record(Raw("A", s, time.Now()))
	}
	waitStats(t, r, func(s Stats) bool { return s.PendingDropped == 3 && s.Pending == 2 })
	require.NoError(t, os.MkdirAll(dir, 0755))
	waitStats(t, r, func(s Stats) bool { return !s.Failing })
	require.NoError(t, r.Close())

	recs := readAll(t, dir)
	require.Equal(t, []string{"recorder recovered", "d", "e"}, events(recs))
	require.Equal(t, uint64(3), recs[0].Count)
}

func TestCloseReportsUnwritten(t *testing.T) {
	base := t.TempDir()
	dir := filepath.Join(base, "logs")
	r := New(Options{Dir: dir, RetryInterval: time.Hour})
	r.Record(Raw("A", "a", time.Now()))
	err := r.Close()
	var werr *WriteError
	require.True(t, errors.As(err, &werr))
}

func TestPreflight(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, Preflight(filepath.Join(base, "a", "b")))
	entries, err := os.ReadDir(filepath.Join(base, "a", "b"))
	require.NoError(t, err)
	require.Empty(t, entries)

	file := filepath.Join(base, "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))
	err = Preflight(filepath.Join(file, "logs"))
	var serr *StorageError
	require.True(t, errors.As(err, &serr))
	require.Equal(t, filepath.Join(file, "logs"), serr.Dir)
}

func TestSampleCSV(t *testing.T) {
	dir := t.TempDir()
	r := New(Options{Dir: dir, SampleCSV: true})
	data := sensor.Data{TimeStamp: "03/20/2024 12:14:13.580", CH4: 2.5, Lat: 40.5, Lon: -105.1}
	r.RecordSample(&sensor.Sample{Sensor: "A", Data: data})
	r.RecordSample((&sensor.Sample{Sensor: "A", Data: data}).WithDrone(sensor.Location{Lat: 40.6, Lon: -105.2, Alt: 12}))
	r.RecordSample(&sensor.Sample{Sensor: "B", Data: data})
	require.NoError(t, r.Close())

	files, err := filepath.Glob(filepath.Join(dir, "*_sensor_a.csv"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	f, err := os.Open(files[0])
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, CSVHeader, rows[0])
	require.Equal(t, "2.5", rows[1][6])
	require.Equal(t, "", rows[1][17])
	require.Equal(t, []string{"40.6", "-105.2", "12"}, rows[2][17:])

	files, err = filepath.Glob(filepath.Join(dir, "*_sensor_b.csv"))
	require.NoError(t, err)
	require.Len(t, files, 1)
}

func TestReaderTruncatedLine(t *testing.T) {
	input := `{"kind":"raw","time":"2024-03-20T12:00:00Z","raw":"a"}` + "\n" + `{"kind":"ra`
	rd := NewReader(strings.NewReader(input))
	rec, err := rd.Next()
	require.NoError(t, err)
	require.Equal(t, "a", rec.Raw)
	_, err = rd.Next()
	require.Equal(t, io.ErrUnexpectedEOF, err)

	rd = NewReader(strings.NewReader("{bad}\n" + input))
	_, err = rd.Next()
	require.Error(t, err)
	require.Contains(t, err.Error(), "line 1")
}

func TestSortLogFiles(t *testing.T) {
	files := []string{
		"/x/gasbridge_20240320-120000_10_10.jsonl",
		"/x/gasbridge_20240320-120000_10_2.jsonl",
		"/x/gasbridge_20240320-110000_99_3.jsonl",
		"/x/gasbridge_20240320-120000_9_1.jsonl",
	}
	SortLogFiles(files)
	require.Equal(t, []string{
		"/x/gasbridge_20240320-110000_99_3.jsonl",
		"/x/gasbridge_20240320-120000_9_1.jsonl",
		"/x/gasbridge_20240320-120000_10_2.jsonl",
		"/x/gasbridge_20240320-120000_10_10.jsonl",
	}, files)
}
