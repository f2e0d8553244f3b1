package client

import (
	"sync"

	"github.com/kerlexov/logcollector/pkg/models"
)

// memoryBuffer holds pending submissions, dropping the oldest when full
type memoryBuffer struct {
	entries []models.Submission
	maxSize int
	dropped uint64
	mu      sync.Mutex
}

func newMemoryBuffer(maxSize int) *memoryBuffer {
	return &memoryBuffer{
		entries: make([]models.Submission, 0, maxSize),
		maxSize: maxSize,
	}
}

// Add appends entry and reports whether an older entry was evicted
func (b *memoryBuffer) Add(entry models.Submission) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	evicted := false
	if len(b.entries) >= b.maxSize {
		copy(b.entries, b.entries[1:])
		b.entries = b.entries[:len(b.entries)-1]
		b.dropped++
		evicted = true
	}

	b.entries = append(b.entries, entry)
	return evicted
}

// Drain removes and returns every pending entry in insertion order
func (b *memoryBuffer) Drain() []models.Submission {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.entries) == 0 {
		return nil
	}

	entries := make([]models.Submission, len(b.entries))
	copy(entries, b.entries)
	b.entries = b.entries[:0]

	return entries
}

func (b *memoryBuffer) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

func (b *memoryBuffer) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// Requeue puts entries back ahead of anything added since they were drained
func (b *memoryBuffer) Requeue(entries []models.Submission) {
	b.mu.Lock()
	defer b.mu.Unlock()

	merged := make([]models.Submission, 0, len(entries)+len(b.entries))
	merged = append(merged, entries...)
	merged = append(merged, b.entries...)

	if overflow := len(merged) - b.maxSize; overflow > 0 {
		merged = merged[overflow:]
		b.dropped += uint64(overflow)
	}

	b.entries = merged
}
