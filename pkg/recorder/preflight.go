package recorder

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Preflight makes sure dir exists and is writable.
func Preflight(dir string) error {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return &StorageError{Dir: dir, Err: err}
	}
	probe, err := os.CreateTemp(dir, ".gasbridge-probe-*")
	if err != nil {
		return &StorageError{Dir: dir, Err: err}
	}
	name := probe.Name()
	_, err = probe.Write([]byte("probe\n"))
	if cerr := probe.Close(); err == nil {
		err = cerr
	}
	if rerr := os.Remove(name); err == nil {
		err = rerr
	}
	if err != nil {
		return &StorageError{Dir: dir, Err: err}
	}
	return nil
}

// LogFiles returns the log files in dir in the order they were written.
func LogFiles(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "gasbridge_*.jsonl"))
	if err != nil {
		return nil, err
	}
	SortLogFiles(files)
	return files, nil
}

// SortLogFiles sorts log file names by start time, then process, then
// file number.
func SortLogFiles(files []string) {
	sort.SliceStable(files, func(i, j int) bool {
		a, b := logNameKey(files[i]), logNameKey(files[j])
		if a.stamp != b.stamp {
			return a.stamp < b.stamp
		}
		if a.pid != b.pid {
			return a.pid < b.pid
		}
		if a.serial != b.serial {
			return a.serial < b.serial
		}
		return files[i] < files[j]
	})
}

type logName struct {
	stamp       string
	pid, serial int
}

// logNameKey parses gasbridge_<stamp>_<pid>_<n>.jsonl.
func logNameKey(path string) (k logName) {
	name := strings.TrimSuffix(filepath.Base(path), ".jsonl")
	parts := strings.Split(name, "_")
	if len(parts) != 4 {
		k.stamp = name
		return
	}
	k.stamp = parts[1]
	k.pid, _ = strconv.Atoi(parts[2])
	k.serial, _ = strconv.Atoi(parts[3])
	return
}
