package events

import (
	"sync"
	"time"
)

const DefaultMaxEvents = 500

// Log is a bounded, newest-first event log. Once full, each append evicts
// the oldest entry.
type Log struct {
	mu   sync.RWMutex
	buf  []Event // ring, len == capacity once full
	next int     // index the next append writes to
	size int
	seq  uint64
}

func NewLog(maxEvents int) *Log {
	if maxEvents <= 0 {
		maxEvents = DefaultMaxEvents
	}
	return &Log{buf: make([]Event, maxEvents)}
}

// Append stamps fields with the arrival time and stores a deep copy of them.
// It never fails; fields are not validated.
func (l *Log) Append(fields map[string]any) Event {
	cp := cloneFields(fields)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.seq++
	ev := Event{Seq: l.seq, Time: time.Now(), Fields: cp}
	l.buf[l.next] = ev
	l.next = (l.next + 1) % len(l.buf)
	if l.size < len(l.buf) {
		l.size++
	}
	return ev
}

// Snapshot returns up to limit events, newest first. A non-positive limit
// returns everything retained.
func (l *Log) Snapshot(limit int) []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	n := l.size
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Event, 0, n)
	idx := l.next
	for i := 0; i < n; i++ {
		idx = (idx - 1 + len(l.buf)) % len(l.buf)
		out = append(out, l.buf[idx])
	}
	return out
}

func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.size
}

func (l *Log) Cap() int {
	return len(l.buf)
}

// cloneFields copies nested maps and slices so stored events share nothing
// with the caller.
func cloneFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return cloneFields(x)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = cloneValue(e)
		}
		return out
	case []byte:
		return append([]byte(nil), x...)
	}
	return v
}
