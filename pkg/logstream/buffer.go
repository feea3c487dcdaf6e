// Package logstream holds the append-only operator log buffers. Connectors
// and strategy instances append entries; the GUI collaborator polls them and
// each entry is marked delivered exactly once.
package logstream

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Entry is one timestamped human-readable event.
type Entry struct {
	Time      time.Time `json:"time"`
	Message   string    `json:"message"`
	Delivered bool      `json:"-"`
}

// Buffer is a concurrency-safe append-only log buffer.
type Buffer struct {
	mu      sync.Mutex
	entries []Entry
}

// NewBuffer creates an empty buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// Append records a message and mirrors it to the process log.
func (b *Buffer) Append(msg string) {
	logrus.Info(msg)
	b.mu.Lock()
	b.entries = append(b.entries, Entry{Time: time.Now(), Message: msg})
	b.mu.Unlock()
}

// Collect returns all undelivered entries and marks them delivered, so
// consumers can poll idempotently.
func (b *Buffer) Collect() []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []Entry
	for i := range b.entries {
		if !b.entries[i].Delivered {
			b.entries[i].Delivered = true
			out = append(out, b.entries[i])
		}
	}
	return out
}

// Len returns the total number of entries ever appended.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}
