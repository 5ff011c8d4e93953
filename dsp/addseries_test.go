package dsp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddSeriesCombinesTrailingSamples(t *testing.T) {
	other := &ValueSeries{Result: []float32{10, 20, 30}}
	a := NewAddSeries("a", AddSeriesConfig{ThisSeriesFactor: 1, OtherSeriesFactor: 1}, other)

	out, err := a.DoStep([]float32{1, 2})
	assert.NoError(t, err)
	// Aligned on trailing samples: this=[1,2], other trailing 2 of [10,20,30]=[20,30]
	assert.Equal(t, []float32{21, 32}, out)
}

func TestAddSeriesAppliesFactors(t *testing.T) {
	other := &ValueSeries{Result: []float32{1, 1}}
	a := NewAddSeries("a", AddSeriesConfig{ThisSeriesFactor: 2, OtherSeriesFactor: -1}, other)

	out, err := a.DoStep([]float32{5, 5})
	assert.NoError(t, err)
	assert.Equal(t, []float32{9, 9}, out)
}

func TestAddSeriesNilInputReturnsNil(t *testing.T) {
	other := &ValueSeries{Result: []float32{1}}
	a := NewAddSeries("a", AddSeriesConfig{ThisSeriesFactor: 1, OtherSeriesFactor: 1}, other)
	out, err := a.DoStep(nil)
	assert.NoError(t, err)
	assert.Nil(t, out)
}

func TestAddSeriesEmptyOtherReturnsNil(t *testing.T) {
	other := &ValueSeries{Result: nil}
	a := NewAddSeries("a", AddSeriesConfig{ThisSeriesFactor: 1, OtherSeriesFactor: 1}, other)
	out, err := a.DoStep([]float32{1, 2})
	assert.NoError(t, err)
	assert.Nil(t, out)
}
