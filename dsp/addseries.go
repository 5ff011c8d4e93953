package dsp

import "ephys.tools/engine/databuffer"

// OtherSeries is the subset of the other published step an AddSeries step
// needs: its current-tick result as last computed, or (for a cache-backed
// source) its full cache (add_another_series_filter.py's `DataBuffer`
// special case).
type OtherSeries interface {
	LastResult() []float32
}

// CacheSeries adapts a databuffer.RingBuffer-backed published step to
// OtherSeries by returning its full retained cache every tick, matching
// the original's special case for DataBuffer-typed other-series sources.
type CacheSeries struct {
	Buffer *databuffer.RingBuffer
}

func (c CacheSeries) LastResult() []float32 { return c.Buffer.Cache() }

// ValueSeries adapts a plain, non-cache-backed step to OtherSeries by
// reporting whatever result the caller last recorded for it (the pipeline
// orchestration updates Result after every tick).
type ValueSeries struct {
	Result []float32
}

func (v *ValueSeries) LastResult() []float32 { return v.Result }

// AddSeriesConfig configures an AddSeries step.
type AddSeriesConfig struct {
	ThisSeriesFactor  float64
	OtherSeriesFactor float64
}

// AddSeries combines this tick's input with another published step's most
// recent result, aligned on their trailing (newest) samples when lengths
// differ (§4.5, grounded on add_another_series_filter.py).
type AddSeries struct {
	id     string
	config AddSeriesConfig
	other  OtherSeries
}

// NewAddSeries constructs an AddSeries step reading from other.
func NewAddSeries(id string, config AddSeriesConfig, other OtherSeries) *AddSeries {
	return &AddSeries{id: id, config: config, other: other}
}

func (a *AddSeries) ID() string { return a.id }

func (a *AddSeries) DoStep(input any) (any, error) {
	samples, ok := input.([]float32)
	if !ok || len(samples) == 0 {
		return nil, nil
	}

	otherSamples := a.other.LastResult()
	numToInclude := len(samples)
	if len(otherSamples) < numToInclude {
		numToInclude = len(otherSamples)
	}
	if numToInclude == 0 {
		return nil, nil
	}

	thisTail := samples[len(samples)-numToInclude:]
	otherTail := otherSamples[len(otherSamples)-numToInclude:]

	out := make([]float32, numToInclude)
	thisFactor := float32(a.config.ThisSeriesFactor)
	otherFactor := float32(a.config.OtherSeriesFactor)
	for i := range out {
		out[i] = thisTail[i]*thisFactor + otherTail[i]*otherFactor
	}
	return out, nil
}
