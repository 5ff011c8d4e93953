package databuffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func samplesOfLen(n int, start float32) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = start + float32(i)
	}
	return out
}

func TestRingBufferAppendWithoutOverflow(t *testing.T) {
	b := NewRingBufferSize(100)
	assert.Equal(t, 70, b.Append(samplesOfLen(70, 0)))
	assert.Equal(t, 70, b.Len())
}

func TestRingBufferAppendOverflowResetsWhenIncomingExceedsHalfCapacity(t *testing.T) {
	// CACHE_SIZE=100; append 70 then 70. The second append's incoming
	// length (70) exceeds CACHE_SIZE/2 (50), so num_to_keep clamps to 0
	// and the buffer resets to just the second append's 70 samples — the
	// "surprising" full-reset branch the original flags as a possible
	// bug (§9 Design Notes, DESIGN.md Open Question decision #4), kept
	// verbatim rather than "fixed" to match a naive 50/50 split.
	b := NewRingBufferSize(100)
	b.Append(samplesOfLen(70, 0))
	n := b.Append(samplesOfLen(70, 1000))
	assert.Equal(t, 70, n)
	tail := b.Cache()
	assert.Equal(t, float32(1000), tail[0])
}

func TestRingBufferAppendLargerThanCacheClipsToNewest(t *testing.T) {
	b := NewRingBufferSize(100)
	b.Append(samplesOfLen(70, 0))
	n := b.Append(samplesOfLen(200, 5000))
	assert.Equal(t, 100, n)
	cache := b.Cache()
	assert.Len(t, cache, 100)
	// Holds the newest 100 of the 200 incoming samples.
	assert.Equal(t, float32(5100), cache[0])
	assert.Equal(t, float32(5199), cache[99])
}

func TestRingBufferClear(t *testing.T) {
	b := NewRingBufferSize(10)
	b.Append(samplesOfLen(5, 0))
	b.Clear()
	assert.Equal(t, 0, b.Len())
	assert.Empty(t, b.Cache())
}

func TestRingBufferInvariantBounds(t *testing.T) {
	b := NewRingBufferSize(50)
	for i := 0; i < 20; i++ {
		n := b.Append(samplesOfLen(7, float32(i*7)))
		assert.GreaterOrEqual(t, n, 0)
		assert.LessOrEqual(t, n, 50)
	}
}
