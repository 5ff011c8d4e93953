package dsp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCombFreqZeroIsIdentity(t *testing.T) {
	c := NewComb("c", CombConfig{SamplesPerSec: 1000, Freq: 0, QFactor: 1})
	samples := []float32{1, 2, 3, 4, 5}
	out, err := c.DoStep(samples)
	require.NoError(t, err)
	assert.Equal(t, samples, out)
}

func TestCombBuffersUntilFullPeriod(t *testing.T) {
	c := NewComb("c", CombConfig{SamplesPerSec: 1000, Freq: 100, QFactor: 10})
	require.Equal(t, 10, c.n)

	out, err := c.DoStep([]float32{1, 2, 3})
	require.NoError(t, err)
	assert.Nil(t, out, "fewer samples than one period should not emit yet")
}

func TestCombEmitsWholePeriods(t *testing.T) {
	c := NewComb("c", CombConfig{SamplesPerSec: 1000, Freq: 100, QFactor: 10})
	samples := make([]float32, 25)
	for i := range samples {
		samples[i] = float32(i)
	}
	out, err := c.DoStep(samples)
	require.NoError(t, err)
	assert.Len(t, out, 20)
}

func TestCombNilInputReturnsNil(t *testing.T) {
	c := NewComb("c", CombConfig{SamplesPerSec: 1000, Freq: 100, QFactor: 10})
	out, err := c.DoStep(nil)
	require.NoError(t, err)
	assert.Nil(t, out)
}
