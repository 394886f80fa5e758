package sandbox

import "sync"

// DefaultMaxOutput is the output capture limit when none is configured.
const DefaultMaxOutput = 64 * 1024

// ringBuffer keeps the last size bytes written to it, so commands like
// `yes` cannot exhaust memory. Writes come from both the stdout and
// stderr copy goroutines.
type ringBuffer struct {
	mu      sync.Mutex
	buf     []byte
	head    int // next write position
	full    bool
	dropped int64
}

func newRingBuffer(size int) *ringBuffer {
	if size <= 0 {
		size = DefaultMaxOutput
	}
	return &ringBuffer{buf: make([]byte, size)}
}

// Write implements io.Writer. When full it overwrites the oldest bytes.
func (rb *ringBuffer) Write(p []byte) (int, error) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	n := len(p)
	size := len(rb.buf)
	if n >= size {
		rb.dropped += int64(rb.len() + n - size)
		copy(rb.buf, p[n-size:])
		rb.head = 0
		rb.full = true
		return n, nil
	}

	if over := rb.len() + n - size; over > 0 {
		rb.dropped += int64(over)
	}
	first := copy(rb.buf[rb.head:], p)
	copy(rb.buf, p[first:])
	if rb.head+n >= size {
		rb.full = true
	}
	rb.head = (rb.head + n) % size
	return n, nil
}

func (rb *ringBuffer) len() int {
	if rb.full {
		return len(rb.buf)
	}
	return rb.head
}

// String returns the retained bytes in write order.
func (rb *ringBuffer) String() string {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if !rb.full {
		return string(rb.buf[:rb.head])
	}
	return string(rb.buf[rb.head:]) + string(rb.buf[:rb.head])
}

// Dropped returns how many of the earliest bytes were discarded.
func (rb *ringBuffer) Dropped() int64 {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.dropped
}
