package diagnostic

import (
	"context"
	"sync"
)

// MarkerKey identifies a marker. Two diagnostics at the same place with the
// same text are the same marker.
type MarkerKey struct {
	File    string
	Line    int
	Column  int
	Message string
}

// Marker is a diagnostic as shown in the editor.
type Marker struct {
	MarkerKey
	Length   int
	Code     string
	Severity DiagnosticSeverity
}

func MarkerOf(d Diagnostic) Marker {
	return Marker{
		MarkerKey: MarkerKey{File: d.File, Line: d.Line, Column: d.Column, Message: d.Message},
		Length:    d.Length,
		Code:      d.Code,
		Severity:  d.Severity,
	}
}

// Sink receives marker changes. Calls for one file arrive in order; Flush is
// called once after every batch for that file with the version of the text
// the markers were computed from (0 when it is not a versioned buffer).
type Sink interface {
	Add(ctx context.Context, m Marker)
	Remove(ctx context.Context, m Marker)
	Flush(ctx context.Context, file string, version int32)
}

// Tracker remembers the markers shown for each file and turns each new set of
// diagnostics into the minimal add/remove calls on a Sink.
type Tracker struct {
	sink  Sink
	mu    sync.Mutex
	shown map[string]map[MarkerKey]Marker
}

func NewTracker(sink Sink) *Tracker {
	return &Tracker{
		sink:  sink,
		shown: make(map[string]map[MarkerKey]Marker),
	}
}

// Update replaces the markers of file with diags computed from version.
func (t *Tracker) Update(ctx context.Context, file string, version int32, diags []Diagnostic) {
	t.mu.Lock()
	defer t.mu.Unlock()

	prev := t.shown[file]
	next := make(map[MarkerKey]Marker, len(diags))
	for _, d := range diags {
		m := MarkerOf(d)
		m.File = file
		next[m.MarkerKey] = m
	}

	for key, m := range prev {
		if _, ok := next[key]; !ok {
			t.sink.Remove(ctx, m)
		}
	}
	for key, m := range next {
		if _, ok := prev[key]; !ok {
			t.sink.Add(ctx, m)
		}
	}

	if len(next) == 0 {
		delete(t.shown, file)
	} else {
		t.shown[file] = next
	}
	t.sink.Flush(ctx, file, version)
}

// Clear removes every marker of file.
func (t *Tracker) Clear(ctx context.Context, file string) {
	t.Update(ctx, file, 0, nil)
}

// Shown returns the markers currently shown for file.
func (t *Tracker) Shown(file string) []Marker {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Marker, 0, len(t.shown[file]))
	for _, m := range t.shown[file] {
		out = append(out, m)
	}
	return out
}
