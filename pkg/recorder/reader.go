package recorder

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Reader reads records written by a Recorder.
type Reader struct {
	r    *bufio.Reader
	line int
}

// NewReader creates a Reader.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReaderSize(r, 64*1024)}
}

// Next returns the next record, io.EOF at the end. An incomplete last line,
// as left by a crash, is reported as io.ErrUnexpectedEOF.
func (r *Reader) Next() (*Record, error) {
	for {
		b, err := r.r.ReadBytes('\n')
		if err != nil && err != io.EOF {
			return nil, err
		}
		r.line++
		if line := bytes.TrimSpace(b); len(line) > 0 {
			var rec Record
			if jerr := json.Unmarshal(line, &rec); jerr != nil {
				if err == io.EOF {
					return nil, io.ErrUnexpectedEOF
				}
				return nil, fmt.Errorf("line %d: %w", r.line, jerr)
			}
			return &rec, nil
		}
		if err == io.EOF {
			return nil, io.EOF
		}
	}
}

// ReadAll reads all remaining records.
func (r *Reader) ReadAll() ([]Record, error) {
	var recs []Record
	for {
		rec, err := r.Next()
		if err == io.EOF {
			return recs, nil
		}
		if err != nil {
			return recs, err
		}
		recs = append(recs, *rec)
	}
}

// ReadFiles reads records from files in the given order. A truncated last
// line in a file is tolerated.
func ReadFiles(paths ...string) ([]Record, error) {
	var recs []Record
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return recs, err
		}
		got, err := NewReader(f).ReadAll()
		f.Close()
		recs = append(recs, got...)
		if err != nil && err != io.ErrUnexpectedEOF {
			return recs, fmt.Errorf("%s: %w", path, err)
		}
	}
	return recs, nil
}
