// Package ring implements a fixed-capacity byte ring used to hold the most
// recent stretch of captured audio.
//
// A Ring is not safe for concurrent use. The owner serialises access; in
// streamcap that is capture.Session, which guards the ring together with its
// running flag under one mutex.
package ring

// Ring is a FIFO of bytes with a capacity fixed at construction.
//
// When an append does not fit, the tail of the incoming chunk is dropped.
// Bytes already buffered are never overwritten to make room.
type Ring struct {
	data []byte
	head int // index of the oldest unread byte
	size int // number of unread bytes
}

// New allocates a ring holding up to capacity bytes. A negative capacity is
// treated as zero.
func New(capacity int) *Ring {
	if capacity < 0 {
		capacity = 0
	}
	return &Ring{data: make([]byte, capacity)}
}

// Cap returns the fixed capacity in bytes.
func (r *Ring) Cap() int { return len(r.data) }

// Len returns the number of buffered bytes.
func (r *Ring) Len() int { return r.size }

// Free returns the number of bytes that can be appended before the ring is full.
func (r *Ring) Free() int { return len(r.data) - r.size }

// Append copies as much of p as fits into free space and reports how many
// bytes were written and how many were dropped from the end of p.
func (r *Ring) Append(p []byte) (written, dropped int) {
	if len(p) == 0 {
		return 0, 0
	}

	n := len(p)
	if free := r.Free(); n > free {
		n = free
	}
	dropped = len(p) - n
	if n == 0 {
		return 0, dropped
	}

	tail := (r.head + r.size) % len(r.data)
	first := copy(r.data[tail:], p[:n])
	if first < n {
		copy(r.data, p[first:n])
	}
	r.size += n

	return n, dropped
}

// Consume moves up to limit of the oldest bytes onto the end of dst and returns
// the extended slice along with the number of bytes moved. dst is returned
// unchanged when nothing is available.
func (r *Ring) Consume(dst []byte, limit int) ([]byte, int) {
	dst, n := r.Peek(dst, limit)
	r.advance(n)
	return dst, n
}

// Peek behaves like Consume but leaves the bytes in the ring.
func (r *Ring) Peek(dst []byte, limit int) ([]byte, int) {
	n := r.clamp(limit)
	if n == 0 {
		return dst, 0
	}

	start := len(dst)
	dst = grow(dst, n)
	first := copy(dst[start:], r.data[r.head:min(r.head+n, len(r.data))])
	if first < n {
		copy(dst[start+first:], r.data[:n-first])
	}

	return dst, n
}

// Discard drops up to n of the oldest bytes and returns how many were removed.
func (r *Ring) Discard(n int) int {
	n = r.clamp(n)
	r.advance(n)
	return n
}

// Clear empties the ring. Storage is retained.
func (r *Ring) Clear() {
	r.head = 0
	r.size = 0
}

func (r *Ring) clamp(n int) int {
	if n <= 0 {
		return 0
	}
	if n > r.size {
		return r.size
	}
	return n
}

func (r *Ring) advance(n int) {
	if n == 0 {
		return
	}
	r.size -= n
	if r.size == 0 {
		// Rewind so the next burst of appends is contiguous.
		r.head = 0
		return
	}
	r.head = (r.head + n) % len(r.data)
}

// grow extends dst by n bytes, reallocating only when capacity runs out.
func grow(dst []byte, n int) []byte {
	if need := len(dst) + n; need > cap(dst) {
		next := make([]byte, len(dst), max(need, 2*cap(dst)))
		copy(next, dst)
		dst = next
	}
	return dst[:len(dst)+n]
}
