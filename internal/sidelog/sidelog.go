// Package sidelog collects failures from best-effort side effects.
// Notification and activity writes never fail their triggering operation;
// what went wrong lands here instead so it stays observable.
package sidelog

import (
	"sync"
	"time"
)

type Entry struct {
	Op   string    `json:"op"`
	Err  string    `json:"error"`
	Time time.Time `json:"time"`
}

type Log struct {
	mu      sync.Mutex
	entries []Entry
}

func New() *Log {
	return &Log{}
}

func (l *Log) Record(op string, err error) {
	if l == nil || err == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, Entry{Op: op, Err: err.Error(), Time: time.Now().UTC()})
}

func (l *Log) Entries() []Entry {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *Log) Len() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
