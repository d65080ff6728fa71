package repack

// Buffer is a growth-only byte buffer reused across frames.
// It is not safe for concurrent use; each buffer belongs to the thread that
// drives the conversion.
type Buffer struct {
	buf    []byte
	allocs int
}

// Ensure returns a slice of exactly n bytes, reallocating only when n
// exceeds the current capacity. Contents are not preserved on growth.
func (b *Buffer) Ensure(n int) []byte {
	if n < 0 {
		n = 0
	}
	if n > cap(b.buf) {
		b.buf = make([]byte, n)
		b.allocs++
	}
	b.buf = b.buf[:n]
	return b.buf
}

// Bytes returns the slice handed out by the last Ensure.
func (b *Buffer) Bytes() []byte {
	return b.buf
}

// Cap returns the current capacity.
func (b *Buffer) Cap() int {
	return cap(b.buf)
}

// Allocations returns how many times the buffer has allocated storage.
func (b *Buffer) Allocations() int {
	return b.allocs
}

// Reset drops the storage. The next Ensure allocates again.
func (b *Buffer) Reset() {
	b.buf = nil
}
