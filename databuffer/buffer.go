// Package databuffer implements the per-electrode ring-buffered sample
// cache (the "Published Step Registry"'s backing store) and the registry
// that exposes named step handles to the pipeline engine.
package databuffer

import "sync"

// CacheSize is the default ring buffer capacity: 40000*30 samples
// (§3 Data Model).
const CacheSize = 40000 * 30

// RingBuffer is a flat, shifting sample cache — not a fixed-slot ring.
// On overflow it retains the most recent CacheSize/2 - incoming samples
// (if positive) before appending, so a long run of appends settles back
// to roughly half capacity rather than thrashing at the boundary; when a
// single append is itself larger than half capacity the buffer resets to
// just that append's tail (§9 Design Notes — kept verbatim, including the
// surprising full-reset case; see DESIGN.md).
type RingBuffer struct {
	mu        sync.Mutex
	cacheSize int
	data      []float32
}

// NewRingBuffer constructs a RingBuffer with the standard CacheSize.
func NewRingBuffer() *RingBuffer {
	return NewRingBufferSize(CacheSize)
}

// NewRingBufferSize constructs a RingBuffer with a caller-specified
// capacity, used by tests to exercise the overflow/reset behavior at a
// tractable scale.
func NewRingBufferSize(cacheSize int) *RingBuffer {
	return &RingBuffer{cacheSize: cacheSize}
}

// Append adds incoming samples to the buffer, applying the retention
// policy described above. It returns the buffer's new length.
func (r *RingBuffer) Append(incoming []float32) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	existingLen := len(r.data)
	incomingLen := len(incoming)

	if existingLen+incomingLen > r.cacheSize {
		numToKeep := r.cacheSize/2 - incomingLen
		if numToKeep < 0 {
			numToKeep = 0
		}
		if numToKeep > existingLen {
			numToKeep = existingLen
		}
		kept := make([]float32, numToKeep)
		copy(kept, r.data[existingLen-numToKeep:])
		r.data = append(kept, incoming...)
	} else {
		r.data = append(r.data, incoming...)
	}

	// A single append larger than cacheSize can still overflow even after
	// the above (numToKeep clamps to 0 but incoming alone may exceed
	// cacheSize); preserve the invariant 0 <= len <= cacheSize by keeping
	// only the newest cacheSize samples.
	if len(r.data) > r.cacheSize {
		r.data = append([]float32(nil), r.data[len(r.data)-r.cacheSize:]...)
	}

	return len(r.data)
}

// Clear empties the buffer, used when the device reports was_reset.
func (r *RingBuffer) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data = nil
}

// Cache returns a copy of the buffer's full current contents, used to seed
// a pipeline's first step on its first run.
func (r *RingBuffer) Cache() []float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]float32, len(r.data))
	copy(out, r.data)
	return out
}

// Len returns the buffer's current occupied length.
func (r *RingBuffer) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.data)
}
