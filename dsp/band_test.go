package dsp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBandDisabledSidesPassThrough(t *testing.T) {
	b := NewBand("b", BandConfig{SamplesPerSec: 1000}, nil)
	in := []float32{1, -2, 3}
	out, err := b.DoStep(in)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestBandLowpassAttenuatesHighFrequency(t *testing.T) {
	fs := 1000.0
	b := NewBand("b", BandConfig{
		SamplesPerSec: fs,
		Low:           BandSideConfig{Order: 4, CutoffHz: 50, FType: "butter"},
	}, nil)

	n := 2000
	in := make([]float32, n)
	for i := range in {
		in[i] = float32(math.Sin(2 * math.Pi * 400 * float64(i) / fs))
	}
	out, err := b.DoStep(in)
	require.NoError(t, err)

	var inRMS, outRMS float64
	for i := n / 2; i < n; i++ {
		inRMS += float64(in[i]) * float64(in[i])
		outRMS += float64(out.([]float32)[i]) * float64(out.([]float32)[i])
	}
	assert.Less(t, math.Sqrt(outRMS/inRMS), 0.3)
}

func TestBandNilInputReturnsNil(t *testing.T) {
	b := NewBand("b", BandConfig{SamplesPerSec: 1000, Low: BandSideConfig{Order: 2, CutoffHz: 50, FType: "butter"}}, nil)
	out, err := b.DoStep(nil)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestBandUnsupportedFTypeFallsBack(t *testing.T) {
	b := NewBand("b", BandConfig{SamplesPerSec: 1000, Low: BandSideConfig{Order: 2, CutoffHz: 50, FType: "elliptic"}}, nil)
	require.NotNil(t, b.lowSections)
}
