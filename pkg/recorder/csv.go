package recorder

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/robotalks/gasbridge/pkg/sensor"
)

// CSVHeader is the header row of sample CSV files.
var CSVHeader = append(append([]string(nil), sensor.Header...), "Drone Latitude", "Drone Longitude", "Drone Altitude (m)")

// CSVFileName returns the name of the sample CSV file of a sensor.
func CSVFileName(sensorName string, at time.Time) string {
	return fmt.Sprintf("%s_sensor_%s.csv", at.Format("2006-01-02_150405"), strings.ToLower(sensorName))
}

// CSVRow formats a sample as a CSV row matching CSVHeader.
func CSVRow(s *sensor.Sample) []string {
	row := s.Data.Fields()
	if s.Drone != nil {
		return append(row,
			strconv.FormatFloat(s.Drone.Lat, 'f', -1, 64),
			strconv.FormatFloat(s.Drone.Lon, 'f', -1, 64),
			strconv.FormatFloat(s.Drone.Alt, 'f', -1, 64))
	}
	return append(row, "", "", "")
}

type csvFile struct {
	file *os.File
	w    *csv.Writer
}

// csvWriters keeps one file per sensor, owned by the writer goroutine.
type csvWriters struct {
	dir   string
	now   func() time.Time
	files map[string]*csvFile
}

func newCSVWriters(dir string, now func() time.Time) *csvWriters {
	return &csvWriters{dir: dir, now: now, files: make(map[string]*csvFile)}
}

func (c *csvWriters) write(s *sensor.Sample) error {
	f, err := c.get(s.Sensor)
	if err != nil {
		return err
	}
	f.w.Write(CSVRow(s))
	f.w.Flush()
	if err := f.w.Error(); err != nil {
		f.file.Close()
		delete(c.files, s.Sensor)
		return &WriteError{Path: f.file.Name(), Err: err}
	}
	return nil
}

func (c *csvWriters) get(name string) (*csvFile, error) {
	if f := c.files[name]; f != nil {
		return f, nil
	}
	path := filepath.Join(c.dir, CSVFileName(name, c.now()))
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, &WriteError{Path: path, Err: err}
	}
	f := &csvFile{file: file, w: csv.NewWriter(file)}
	if info, err := file.Stat(); err == nil && info.Size() == 0 {
		f.w.Write(CSVHeader)
	}
	c.files[name] = f
	return f, nil
}

func (c *csvWriters) close() {
	for name, f := range c.files {
		f.w.Flush()
		f.file.Close()
		delete(c.files, name)
	}
}
