package recorder

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/gasbridge/pkg/sensor"
)

// Defaults of Options.
const (
	DefaultQueueSize     = 4096
	DefaultMaxFileBytes  = 16 << 20
	DefaultMaxFileAge    = time.Hour
	DefaultPendingLimit  = 10000
	DefaultRetryInterval = time.Second
)

// Options configures a Recorder.
type Options struct {
	Dir           string
	QueueSize     int
	MaxFileBytes  int64
	MaxFileAge    time.Duration
	PendingLimit  int
	RetryInterval time.Duration
	// SampleCSV enables the per-sensor CSV files.
	SampleCSV bool
	Now       func() time.Time
}

func (o Options) withDefaults() Options {
	if o.QueueSize <= 0 {
		o.QueueSize = DefaultQueueSize
	}
	if o.MaxFileBytes <= 0 {
		o.MaxFileBytes = DefaultMaxFileBytes
	}
	if o.MaxFileAge <= 0 {
		o.MaxFileAge = DefaultMaxFileAge
	}
	if o.PendingLimit <= 0 {
		o.PendingLimit = DefaultPendingLimit
	}
	if o.RetryInterval <= 0 {
		o.RetryInterval = DefaultRetryInterval
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Stats are the recorder statistics.
type Stats struct {
	Written        uint64 `json:"written"`
	Overflow       uint64 `json:"overflow"`
	PendingDropped uint64 `json:"pending_dropped"`
	Pending        int    `json:"pending"`
	Failing        bool   `json:"failing"`
	CSVErrors      uint64 `json:"csv_errors"`
	File           string `json:"file,omitempty"`
}

type item struct {
	rec    Record
	sample *sensor.Sample
}

// Recorder writes Records as JSON lines. Submitting never blocks: when the
// queue is full the oldest queued item is dropped and the loss is recorded
// as an event.
type Recorder struct {
	opts Options

	lock     sync.Mutex
	queue    []item
	overflow uint64 // not yet reported
	closed   bool
	notify   chan struct{}
	done     chan struct{}

	written        atomic.Uint64
	totalOverflow  atomic.Uint64
	pendingDropped atomic.Uint64
	csvErrors      atomic.Uint64
	status         atomic.Pointer[writerStatus]

	out *jsonlWriter
	csv *csvWriters
}

type writerStatus struct {
	file    string
	failing bool
	pending int
}

// New creates a Recorder and starts its writer. The directory is expected
// to have passed Preflight.
func New(opts Options) *Recorder {
	r := newRecorder(opts)
	go r.run()
	return r
}

func newRecorder(opts Options) *Recorder {
	opts = opts.withDefaults()
	r := &Recorder{
		opts:   opts,
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	r.out = &jsonlWriter{dir: opts.Dir, maxBytes: opts.MaxFileBytes, maxAge: opts.MaxFileAge, now: opts.Now}
	if opts.SampleCSV {
		r.csv = newCSVWriters(opts.Dir, opts.Now)
	}
	r.status.Store(&writerStatus{})
	return r
}

// Record submits a record.
func (r *Recorder) Record(rec Record) {
	if rec.Time.IsZero() {
		rec.Time = r.opts.Now()
	}
	r.enqueue(item{rec: rec})
}

// RecordSample submits a row for the sensor's CSV file. It's a no-op
// unless SampleCSV is enabled.
func (r *Recorder) RecordSample(s *sensor.Sample) {
	if r.csv == nil {
		return
	}
	r.enqueue(item{sample: s})
}

func (r *Recorder) enqueue(it item) {
	r.lock.Lock()
	if r.closed {
		r.lock.Unlock()
		return
	}
	if len(r.queue) >= r.opts.QueueSize {
		r.queue[0] = item{}
		r.queue = r.queue[1:]
		r.overflow++
		r.totalOverflow.Add(1)
	}
	r.queue = append(r.queue, it)
	r.lock.Unlock()
	select {
	case r.notify <- struct{}{}:
	default:
	}
}

// Close stops accepting records, writes what's queued or pending as far as
// possible and closes the files.
func (r *Recorder) Close() error {
	r.lock.Lock()
	if r.closed {
		r.lock.Unlock()
		<-r.done
		return ErrClosed
	}
	r.closed = true
	r.lock.Unlock()
	select {
	case r.notify <- struct{}{}:
	default:
	}
	<-r.done
	if n := len(r.out.pending); n > 0 {
		return &WriteError{Path: r.out.dir, Err: fmt.Errorf("%d records not written: %w", n, r.out.lastErr)}
	}
	return nil
}

// Stats returns current statistics.
func (r *Recorder) Stats() Stats {
	st := r.status.Load()
	return Stats{
		Written:        r.written.Load(),
		Overflow:       r.totalOverflow.Load(),
		PendingDropped: r.pendingDropped.Load(),
		Pending:        st.pending,
		Failing:        st.failing,
		CSVErrors:      r.csvErrors.Load(),
		File:           st.file,
	}
}

func (r *Recorder) take() (items []item, overflow uint64, closed bool) {
	r.lock.Lock()
	defer r.lock.Unlock()
	items, r.queue = r.queue, nil
	overflow, r.overflow = r.overflow, 0
	return items, overflow, r.closed
}

func (r *Recorder) run() {
	defer close(r.done)
	ticker := time.NewTicker(r.opts.RetryInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.notify:
		case <-ticker.C:
		}
		items, overflow, closed := r.take()
		if overflow > 0 {
			r.write(Event("recorder", "queue overflow, oldest records dropped", nil, r.opts.Now()).WithCount(overflow))
		}
		for _, it := range items {
			if it.sample != nil {
				if err := r.csv.write(it.sample); err != nil {
					r.csvErrors.Add(1)
					glog.Warningf("recorder: %v", err)
				}
				continue
			}
			r.write(it.rec)
		}
		r.retry(closed)
		r.publishStatus()
		if closed {
			r.out.close()
			if r.csv != nil {
				r.csv.close()
			}
			return
		}
	}
}

func (r *Recorder) write(rec Record) {
	w := r.out
	if w.failing() {
		r.keepPending(rec)
		return
	}
	if err := w.write(rec); err != nil {
		glog.Errorf("recorder: %v, keeping records in memory", err)
		r.keepPending(rec)
		return
	}
	r.written.Add(1)
}

func (r *Recorder) keepPending(rec Record) {
	w := r.out
	if len(w.pending) >= r.opts.PendingLimit {
		w.pending[0] = Record{}
		w.pending = w.pending[1:]
		w.dropped++
		r.pendingDropped.Add(1)
	}
	w.pending = append(w.pending, rec)
}

// retry writes pending records once the retry interval has passed since the
// last failure, or immediately when closing.
func (r *Recorder) retry(force bool) {
	w := r.out
	if !w.failing() {
		return
	}
	if !force && r.opts.Now().Sub(w.failedAt) < r.opts.RetryInterval {
		return
	}
	w.failedAt = r.opts.Now()
	recovered := Event("recorder", "recorder recovered", w.lastErr, r.opts.Now()).WithCount(w.dropped)
	if err := w.write(recovered); err != nil {
		glog.Errorf("recorder: still failing: %v (%d records pending, %d dropped)", err, len(w.pending), w.dropped)
		return
	}
	r.written.Add(1)
	for len(w.pending) > 0 {
		if err := w.write(w.pending[0]); err != nil {
			glog.Errorf("recorder: failed again: %v", err)
			return
		}
		r.written.Add(1)
		w.pending[0] = Record{}
		w.pending = w.pending[1:]
	}
	glog.Infof("recorder: recovered, writing to %s (%d records dropped)", w.path, w.dropped)
	w.pending, w.dropped, w.lastErr = nil, 0, nil
}

func (r *Recorder) publishStatus() {
	r.status.Store(&writerStatus{
		file:    r.out.path,
		failing: r.out.failing(),
		pending: len(r.out.pending),
	})
}

// jsonlWriter is owned by the writer goroutine.
type jsonlWriter struct {
	dir      string
	maxBytes int64
	maxAge   time.Duration
	now      func() time.Time

	file    *os.File
	path    string
	size    int64
	opened  time.Time
	serial  int
	lastErr error

	pending  []Record
	dropped  uint64
	failedAt time.Time
}

func (w *jsonlWriter) failing() bool {
	return w.lastErr != nil
}

func (w *jsonlWriter) write(rec Record) error {
	line, err := json.Marshal(rec)
	if err != nil {
		// e.g. NaN values, the loss is recorded in place of the record
		glog.Errorf("recorder: encode %s record: %v", rec.Kind, err)
		if line, err = json.Marshal(Event(rec.Source, "record not encodable: "+string(rec.Kind), err, rec.Time)); err != nil {
			return nil
		}
	}
	line = append(line, '\n')
	if w.file != nil && (w.size+int64(len(line)) > w.maxBytes || w.now().Sub(w.opened) >= w.maxAge) {
		w.close()
	}
	if w.file == nil {
		if err := w.open(); err != nil {
			return w.fail(err)
		}
	}
	n, err := w.file.Write(line)
	w.size += int64(n)
	if err != nil {
		return w.fail(&WriteError{Path: w.path, Err: err})
	}
	return nil
}

func (w *jsonlWriter) fail(err error) error {
	w.close()
	if w.lastErr == nil {
		w.failedAt = w.now()
	}
	w.lastErr = err
	return err
}

func (w *jsonlWriter) open() error {
	stamp := w.now().UTC().Format("20060102-150405")
	for attempt := 0; attempt < 100; attempt++ {
		w.serial++
		path := filepath.Join(w.dir, fmt.Sprintf("gasbridge_%s_%d_%d.jsonl", stamp, os.Getpid(), w.serial))
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return &WriteError{Path: path, Err: err}
		}
		w.file, w.path, w.size, w.opened = f, path, 0, w.now()
		if glog.V(2) {
			glog.Infof("recorder: writing %s", path)
		}
		return nil
	}
	return &WriteError{Path: w.dir, Err: fs.ErrExist}
}

func (w *jsonlWriter) close() {
	if w.file == nil {
		return
	}
	if err := w.file.Close(); err != nil {
		glog.Warningf("recorder: close %s: %v", w.path, err)
	}
	w.file = nil
}
