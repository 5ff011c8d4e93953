package dsp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpectrogramEmitsOneWindowPerPeriod(t *testing.T) {
	s := NewSpectrogram("s", SpectrogramConfig{SamplesPerSec: 100, CalculationPeriod: 1, MaxFreq: 10})
	samples := make([]float32, 100)
	for i := range samples {
		samples[i] = float32(i % 7)
	}
	out, err := s.DoStep(samples)
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, s.numFrequencies, len(out.([]float32)))
}

func TestSpectrogramBuffersPartialPeriod(t *testing.T) {
	s := NewSpectrogram("s", SpectrogramConfig{SamplesPerSec: 100, CalculationPeriod: 1, MaxFreq: 10})
	out, err := s.DoStep(make([]float32, 10))
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestSpectrogramNilInputReturnsNil(t *testing.T) {
	s := NewSpectrogram("s", SpectrogramConfig{SamplesPerSec: 100, CalculationPeriod: 1, MaxFreq: 10})
	out, err := s.DoStep(nil)
	require.NoError(t, err)
	assert.Nil(t, out)
}
