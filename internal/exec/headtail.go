package exec

import "sync"

// DefaultBufferBytes is the default retention for a HeadTailBuffer.
const DefaultBufferBytes = 256 * 1024

// HeadTailBuffer retains the first and last portions of a byte stream,
// dropping the middle once the cap is exceeded. Long-running commands keep
// their startup output and their most recent output.
type HeadTailBuffer struct {
	mu       sync.Mutex
	maxBytes int
	head     []byte
	tail     []byte
	total    int64
	dropped  bool
}

// NewHeadTailBuffer creates a buffer retaining at most maxBytes, split
// evenly between head and tail.
func NewHeadTailBuffer(maxBytes int) *HeadTailBuffer {
	if maxBytes < 2 {
		maxBytes = 2
	}
	return &HeadTailBuffer{maxBytes: maxBytes}
}

// Push appends data to the buffer.
func (b *HeadTailBuffer) Push(data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.total += int64(len(data))
	halfCap := b.maxBytes / 2

	if want := halfCap - len(b.head); want > 0 {
		n := min(want, len(data))
		b.head = append(b.head, data[:n]...)
		data = data[n:]
	}
	if len(data) == 0 {
		return
	}

	b.dropped = true
	b.tail = append(b.tail, data...)
	if excess := len(b.tail) - halfCap; excess > 0 {
		b.tail = append(b.tail[:0], b.tail[excess:]...)
	}
}

// Snapshot returns the retained bytes, with an elision marker where the
// middle was dropped.
func (b *HeadTailBuffer) Snapshot() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.dropped {
		return append([]byte(nil), b.head...)
	}
	out := make([]byte, 0, len(b.head)+len(b.tail)+32)
	out = append(out, b.head...)
	out = append(out, []byte("\n[...output elided...]\n")...)
	out = append(out, b.tail...)
	return out
}

// TotalWritten returns the total number of bytes pushed, including dropped
// bytes.
func (b *HeadTailBuffer) TotalWritten() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.total
}
