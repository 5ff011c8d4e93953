package dsp

import "math"

// CombConfig configures a Comb step. A zero Freq disables the filter
// (pass-through), matching comb_filter.py.
type CombConfig struct {
	SamplesPerSec float64
	Freq          float64
	QFactor       float64
}

// Comb is a notch comb filter rejecting Freq and its harmonics, driven by
// the recursive difference equation y[n] = b0*x[n] + bN*x[n-N] -
// aN*y[n-N] where N = round(samplesPerSec/freq) (grounded on
// comb_filter.py; the b0/bN/aN coefficients are a hand-rolled notch-comb
// design, since no library in the corpus implements scipy.signal.iircomb
// — see DESIGN.md).
type Comb struct {
	id string

	b0, bN, aN float64
	n          int

	leftoverIn []float32
	prevIn     []float32
	prevOut    []float32
}

// NewComb constructs a Comb step from config.
func NewComb(id string, config CombConfig) *Comb {
	c := &Comb{id: id}
	if config.Freq == 0 {
		return c
	}

	bandwidth := config.Freq / config.QFactor
	beta := math.Tan(math.Pi * bandwidth / config.SamplesPerSec)
	g := 1 / (1 + beta)

	c.b0 = g
	c.bN = -g
	c.aN = -(2*g - 1)
	c.n = int(math.Round(config.SamplesPerSec / config.Freq))
	c.prevIn = make([]float32, c.n)
	c.prevOut = make([]float32, c.n)
	return c
}

func (c *Comb) ID() string { return c.id }

func (c *Comb) DoStep(input any) (any, error) {
	samples, ok := input.([]float32)
	if !ok || len(samples) == 0 {
		return nil, nil
	}
	if c.n == 0 {
		return samples, nil
	}

	buf := append(append([]float32(nil), c.leftoverIn...), samples...)
	numBatches := len(buf) / c.n
	if numBatches == 0 {
		c.leftoverIn = buf
		return nil, nil
	}

	result := make([]float32, numBatches*c.n)
	toSample := 0
	for i := 0; i < numBatches; i++ {
		fromSample := i * c.n
		toSample = fromSample + c.n
		batch := buf[fromSample:toSample]
		out := result[fromSample:toSample]
		for j := 0; j < c.n; j++ {
			out[j] = float32(c.b0*float64(batch[j]) + c.bN*float64(c.prevIn[j]) - c.aN*float64(c.prevOut[j]))
		}
		c.prevIn = append([]float32(nil), batch...)
		c.prevOut = append([]float32(nil), out...)
	}

	c.leftoverIn = append([]float32(nil), buf[toSample:]...)
	return result, nil
}
