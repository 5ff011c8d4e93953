package iirdesign

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestButterworthLowpassAttenuatesHighFrequency(t *testing.T) {
	fs := 1000.0
	sections := Butterworth(4, 50, fs, Lowpass)
	require.NotEmpty(t, sections)

	lowFreqGain := sineResponseGain(sections, 5, fs)
	highFreqGain := sineResponseGain(sections, 400, fs)

	assert.Greater(t, lowFreqGain, 0.9)
	assert.Less(t, highFreqGain, 0.3)
}

func TestButterworthHighpassAttenuatesLowFrequency(t *testing.T) {
	fs := 1000.0
	sections := Butterworth(4, 50, fs, Highpass)
	require.NotEmpty(t, sections)

	lowFreqGain := sineResponseGain(sections, 5, fs)
	highFreqGain := sineResponseGain(sections, 400, fs)

	assert.Less(t, lowFreqGain, 0.3)
	assert.Greater(t, highFreqGain, 0.7)
}

func TestChebyshevIPassbandNearUnityGain(t *testing.T) {
	fs := 1000.0
	sections := ChebyshevI(4, 1, 100, fs, Lowpass)
	require.NotEmpty(t, sections)

	gain := sineResponseGain(sections, 5, fs)
	assert.InDelta(t, 1.0, gain, 0.3)
}

func TestDesignFallsBackForUnsupportedTypes(t *testing.T) {
	var warned string
	sections := Design("cheby2", 4, 50, 1, 1000, Lowpass, func(msg string) { warned = msg })
	assert.NotEmpty(t, warned)
	assert.NotEmpty(t, sections)
}

func TestFilterStatePersistsAcrossCalls(t *testing.T) {
	sections := Butterworth(2, 50, 1000, Lowpass)
	samples := make([]float32, 100)
	for i := range samples {
		samples[i] = float32(math.Sin(2 * math.Pi * 5 * float64(i) / 1000))
	}

	wholeOut, _ := Filter(sections, samples, nil)

	var state [][2]float64
	var splitOut []float32
	half := len(samples) / 2
	out1, state1 := Filter(sections, samples[:half], state)
	out2, state2 := Filter(sections, samples[half:], state1)
	_ = state2
	splitOut = append(splitOut, out1...)
	splitOut = append(splitOut, out2...)

	require.Len(t, splitOut, len(wholeOut))
	for i := range wholeOut {
		assert.InDelta(t, wholeOut[i], splitOut[i], 1e-4)
	}
}

// sineResponseGain estimates the steady-state gain of sections at freqHz
// by filtering a long sine burst and measuring the RMS ratio.
func sineResponseGain(sections []SOS, freqHz, fs float64) float64 {
	n := 2000
	in := make([]float32, n)
	for i := range in {
		in[i] = float32(math.Sin(2 * math.Pi * freqHz * float64(i) / fs))
	}
	out, _ := Filter(sections, in, nil)

	tail := n / 2
	var inRMS, outRMS float64
	for i := tail; i < n; i++ {
		inRMS += float64(in[i]) * float64(in[i])
		outRMS += float64(out[i]) * float64(out[i])
	}
	return math.Sqrt(outRMS / inRMS)
}
