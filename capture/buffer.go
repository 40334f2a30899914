// Package capture collects what a wrapped tool writes to its output channels
// during one request so it can be returned in the response.
package capture

import (
	"bytes"
	"sync"
)

// Buffer is an in-memory sink shared by a tool's stdout and stderr.
// Writes from multiple goroutines spawned by the tool are serialized.
type Buffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

// New creates an empty Buffer
func New() *Buffer {
	return &Buffer{}
}

// Write appends p to the buffer
func (b *Buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

// WriteString appends s to the buffer
func (b *Buffer) WriteString(s string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.WriteString(s)
}

// Drain returns everything written since the last Drain or Reset and empties the buffer
func (b *Buffer) Drain() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.buf.String()
	b.buf.Reset()
	return out
}

// Reset discards the buffered output
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Reset()
}

// Len returns the number of buffered bytes
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Len()
}
