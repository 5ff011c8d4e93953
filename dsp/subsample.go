package dsp

import "math"

// SubsampleConfig configures a Subsample step.
type SubsampleConfig struct {
	SamplesPerSec   float64
	MaxSubsamples   int
	WindowLengthSec float64
}

// Subsample emits [min1, max1, min2, max2, ...] pairs over a fractional
// subsample window, periodically including a "leap" sample to account for
// a non-integer subsample rate (grounded on subsampling_filter.py).
type Subsample struct {
	id string

	subsampleRate float64

	leftoverFraction float64
	leftover         []float32
}

// NewSubsample constructs a Subsample step from config.
func NewSubsample(id string, config SubsampleConfig) *Subsample {
	numSamplesInWindow := config.SamplesPerSec * config.WindowLengthSec
	return &Subsample{
		id:            id,
		subsampleRate: 2 * numSamplesInWindow / float64(config.MaxSubsamples),
	}
}

func (s *Subsample) ID() string { return s.id }

func (s *Subsample) DoStep(input any) (any, error) {
	samples, ok := input.([]float32)
	if !ok || len(samples) == 0 {
		return nil, nil
	}

	buf := append(append([]float32(nil), s.leftover...), samples...)
	numSamples := len(buf)
	availableForSubsampling := float64(numSamples) - s.leftoverFraction
	numSubsamples := int(math.Floor(availableForSubsampling / s.subsampleRate))

	if numSubsamples <= 0 {
		s.leftover = buf
		return nil, nil
	}

	out := make([]float32, numSubsamples*2)
	fromSample := 0
	toSample := 0
	fraction := s.leftoverFraction

	for i := 0; i < numSubsamples; i++ {
		shouldInclude := fraction + s.subsampleRate
		actualIncluded := int(math.Floor(shouldInclude))
		toSample = fromSample + actualIncluded

		window := buf[fromSample:toSample]
		min, max := window[0], window[0]
		for _, v := range window[1:] {
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
		}
		out[2*i] = min
		out[2*i+1] = max

		fromSample = toSample
		fraction = shouldInclude - float64(actualIncluded)
	}

	s.leftoverFraction = fraction
	s.leftover = append([]float32(nil), buf[toSample:]...)
	return out, nil
}
