package dsp

import "math"

// ResampleConfig configures a Resample step. Equal in/out rates disable
// the filter (pass-through), matching resampling_filter.py.
type ResampleConfig struct {
	InSampleRate  int
	OutSampleRate int
}

// Resample changes a stream's sample rate by processing fixed-size
// in/out batches sized from the rates' reduced ratio (grounded on
// resampling_filter.py's batching/leftover framing). Each batch is
// resampled by linear interpolation rather than scipy's polyphase
// FIR (`resample_poly`) — no corpus library implements polyphase FIR
// resampling; see DESIGN.md.
type Resample struct {
	id string

	off          bool
	inBatchSize  int
	outBatchSize int

	leftover []float32
}

// NewResample constructs a Resample step from config.
func NewResample(id string, config ResampleConfig) *Resample {
	r := &Resample{id: id}
	if config.InSampleRate == config.OutSampleRate {
		r.off = true
		return r
	}

	g := gcd(config.InSampleRate, config.OutSampleRate)
	r.inBatchSize = (config.InSampleRate / g) * 100
	r.outBatchSize = (config.OutSampleRate / g) * 100
	return r
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func (r *Resample) ID() string { return r.id }

func (r *Resample) DoStep(input any) (any, error) {
	if r.off {
		samples, _ := input.([]float32)
		if len(samples) == 0 {
			return nil, nil
		}
		return samples, nil
	}

	samples, ok := input.([]float32)
	if !ok || len(samples) == 0 {
		return nil, nil
	}

	buf := append(append([]float32(nil), r.leftover...), samples...)
	numBatches := len(buf) / r.inBatchSize
	if numBatches == 0 {
		r.leftover = buf
		return nil, nil
	}

	out := make([]float32, numBatches*r.outBatchSize)
	toInSample := 0
	for i := 0; i < numBatches; i++ {
		fromInSample := i * r.inBatchSize
		toInSample = fromInSample + r.inBatchSize
		fromOutSample := i * r.outBatchSize
		toOutSample := fromOutSample + r.outBatchSize

		linearResample(buf[fromInSample:toInSample], out[fromOutSample:toOutSample])
	}

	r.leftover = append([]float32(nil), buf[toInSample:]...)
	return out, nil
}

// linearResample resamples in onto the length of out via linear
// interpolation across in's index space.
func linearResample(in, out []float32) {
	if len(out) == 0 {
		return
	}
	if len(in) == 1 {
		for i := range out {
			out[i] = in[0]
		}
		return
	}

	scale := float64(len(in)-1) / float64(len(out)-1)
	if len(out) == 1 {
		scale = 0
	}
	for i := range out {
		pos := float64(i) * scale
		lo := int(math.Floor(pos))
		if lo >= len(in)-1 {
			out[i] = in[len(in)-1]
			continue
		}
		frac := pos - float64(lo)
		out[i] = float32((1-frac)*float64(in[lo]) + frac*float64(in[lo+1]))
	}
}
