package jobs

import "sync"

// LogBuffer is an append-only, line-granular log shared between the process
// reader goroutine and any number of pollers. Lines are delivered to readers
// in append order and a cursor-based read never repeats a delivered line.
type LogBuffer struct {
	mu    sync.RWMutex
	lines []string
}

// NewLogBuffer returns an empty buffer.
func NewLogBuffer() *LogBuffer {
	return &LogBuffer{}
}

// Append adds one line to the end of the buffer.
func (b *LogBuffer) Append(line string) {
	b.mu.Lock()
	b.lines = append(b.lines, line)
	b.mu.Unlock()
}

// Since returns all lines at or after cursor plus the cursor for the next
// read. Cursors are line indexes; a negative or stale cursor is clamped.
func (b *LogBuffer) Since(cursor int) ([]string, int) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if cursor < 0 {
		cursor = 0
	}
	if cursor >= len(b.lines) {
		return nil, len(b.lines)
	}
	out := make([]string, len(b.lines)-cursor)
	copy(out, b.lines[cursor:])
	return out, len(b.lines)
}

// Len reports the number of lines appended so far.
func (b *LogBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.lines)
}

// Tail returns up to n of the most recent lines.
func (b *LogBuffer) Tail(n int) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if n <= 0 || len(b.lines) == 0 {
		return nil
	}
	start := len(b.lines) - n
	if start < 0 {
		start = 0
	}
	out := make([]string, len(b.lines)-start)
	copy(out, b.lines[start:])
	return out
}
