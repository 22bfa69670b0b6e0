package submission

import (
	"encoding/json"
	"io"
	"sync"
	"time"
)

// DiagnosticEntry is one technical record kept for support. It may hold
// detail that must never reach the user.
type DiagnosticEntry struct {
	At     time.Time              `json:"at"`
	Level  string                 `json:"level"`
	Event  string                 `json:"event"`
	Fields map[string]interface{} `json:"fields,omitempty"`
}

// DiagnosticLog is a fixed-capacity ring of entries; the oldest entry is
// dropped once it is full.
type DiagnosticLog struct {
	mu      sync.RWMutex
	entries []DiagnosticEntry
	next    int
	full    bool
	clock   func() time.Time
}

func NewDiagnosticLog(capacity int) *DiagnosticLog {
	if capacity <= 0 {
		capacity = 50
	}
	return &DiagnosticLog{entries: make([]DiagnosticEntry, capacity), clock: time.Now}
}

func (d *DiagnosticLog) Record(level, event string, fields map[string]interface{}) {
	if d == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries[d.next] = DiagnosticEntry{At: d.clock(), Level: level, Event: event, Fields: fields}
	d.next = (d.next + 1) % len(d.entries)
	if d.next == 0 {
		d.full = true
	}
}

func (d *DiagnosticLog) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.full {
		return len(d.entries)
	}
	return d.next
}

// Entries returns a copy, oldest first.
func (d *DiagnosticLog) Entries() []DiagnosticEntry {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if !d.full {
		return append([]DiagnosticEntry(nil), d.entries[:d.next]...)
	}
	out := make([]DiagnosticEntry, 0, len(d.entries))
	out = append(out, d.entries[d.next:]...)
	return append(out, d.entries[:d.next]...)
}

// WriteTo dumps the entries as JSON lines.
func (d *DiagnosticLog) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	enc := json.NewEncoder(cw)
	for _, e := range d.Entries() {
		if err := enc.Encode(e); err != nil {
			return cw.n, err
		}
	}
	return cw.n, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
