// Package timeline provides shell commands to query recorded logs.
package timeline

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/robotalks/gasbridge/pkg/recorder"
)

// DefaultCount is the number of records printed when no count is given.
const DefaultCount = 20

// Summary summarizes a log.
type Summary struct {
	Records int                   `json:"records"`
	From    time.Time             `json:"from"`
	To      time.Time             `json:"to"`
	Kinds   map[recorder.Kind]int `json:"kinds"`
	Sources map[string]int        `json:"sources"`
	Events  map[string]int        `json:"events"`
	Lost    uint64                `json:"lost"`
	Last    map[string]float32    `json:"last_values"`
}

// Summarize builds the summary of records.
func Summarize(recs []recorder.Record) *Summary {
	s := &Summary{
		Records: len(recs),
		Kinds:   make(map[recorder.Kind]int),
		Sources: make(map[string]int),
		Events:  make(map[string]int),
		Last:    make(map[string]float32),
	}
	for _, rec := range recs {
		if s.From.IsZero() || rec.Time.Before(s.From) {
			s.From = rec.Time
		}
		if rec.Time.After(s.To) {
			s.To = rec.Time
		}
		s.Kinds[rec.Kind]++
		if rec.Source != "" {
			s.Sources[rec.Source]++
		}
		switch rec.Kind {
		case recorder.KindEvent:
			s.Events[rec.Event]++
			if strings.Contains(rec.Event, "dropped") {
				s.Lost += rec.Count
			}
		case recorder.KindDecoded:
			if rec.Reading == nil {
				continue
			}
			s.Last[rec.Reading.Name] = rec.Reading.Value
		}
	}
	return s
}

func (s *Summary) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d records", s.Records)
	if s.Records > 0 {
		fmt.Fprintf(&sb, " from %s to %s (%s)", s.From.Format(time.RFC3339), s.To.Format(time.RFC3339), s.To.Sub(s.From).Round(time.Second))
	}
	for _, kind := range recorder.Kinds {
		if n := s.Kinds[kind]; n > 0 {
			fmt.Fprintf(&sb, "\n  %-8s %d", kind, n)
		}
	}
	writeCounts(&sb, "sources", s.Sources)
	writeCounts(&sb, "events", s.Events)
	if s.Lost > 0 {
		fmt.Fprintf(&sb, "\nlost: %d", s.Lost)
	}
	if len(s.Last) > 0 {
		sb.WriteString("\nlast values:")
		for _, name := range sortedKeys(s.Last) {
			fmt.Fprintf(&sb, "\n  %-10s %g", name, s.Last[name])
		}
	}
	return sb.String()
}

func writeCounts(sb *strings.Builder, title string, m map[string]int) {
	if len(m) == 0 {
		return
	}
	fmt.Fprintf(sb, "\n%s:", title)
	for _, k := range sortedKeys(m) {
		fmt.Fprintf(sb, "\n  %-24s %d", k, m[k])
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Records is a list of records printed one per line.
type Records []recorder.Record

// Filter returns the records matching fn.
func Filter(recs []recorder.Record, fn func(*recorder.Record) bool) Records {
	out := Records{}
	for n := range recs {
		if fn(&recs[n]) {
			out = append(out, recs[n])
		}
	}
	return out
}

// Last returns the last n records.
func (r Records) Last(n int) Records {
	if n >= 0 && len(r) > n {
		return r[len(r)-n:]
	}
	return r
}

func (r Records) String() string {
	lines := make([]string, len(r))
	for n := range r {
		lines[n] = Line(&r[n])
	}
	return strings.Join(lines, "\n")
}

// Line formats a record for display.
func Line(rec *recorder.Record) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %-8s %-6s", rec.Time.Format("2006-01-02 15:04:05.000"), rec.Kind, rec.Source)
	if f := rec.Frame; f != nil {
		fmt.Fprintf(&sb, " #%d %s", f.Seq, f.Message)
	}
	if r := rec.Reading; r != nil {
		fmt.Fprintf(&sb, " %s=%g", r.Name, r.Value)
	}
	if d := rec.Drone; d != nil {
		fmt.Fprintf(&sb, " @%.7f,%.7f,%.1fm", d.Lat, d.Lon, d.Alt)
	}
	if rec.Raw != "" {
		fmt.Fprintf(&sb, " %q", rec.Raw)
	}
	if rec.Event != "" {
		sb.WriteString(" " + rec.Event)
	}
	if rec.Count > 0 {
		fmt.Fprintf(&sb, " (%d)", rec.Count)
	}
	if rec.Error != "" {
		sb.WriteString(": " + rec.Error)
	}
	return sb.String()
}
