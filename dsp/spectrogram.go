package dsp

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// SpectrogramConfig configures a Spectrogram step.
type SpectrogramConfig struct {
	SamplesPerSec     float64
	CalculationPeriod float64
	MaxFreq           int
}

// Spectrogram computes the forward-normalized magnitude spectrum of each
// fixed-length window, truncated to MaxFreq and scaled by 1/sqrt(bandwidth)
// (grounded on spectrogram_filter.py; real FFT via
// gonum.org/v1/gonum/dsp/fourier since no pack library wraps FFTW/cgo for
// this — see DESIGN.md).
type Spectrogram struct {
	id string

	samplesPerPeriod int
	numFrequencies   int
	sqrtBandwidth    float64

	fft      *fourier.FFT
	leftover []float32
}

// NewSpectrogram constructs a Spectrogram step from config.
func NewSpectrogram(id string, config SpectrogramConfig) *Spectrogram {
	samplesPerPeriod := int(math.Round(config.SamplesPerSec * config.CalculationPeriod))
	return &Spectrogram{
		id:               id,
		samplesPerPeriod: samplesPerPeriod,
		numFrequencies:   int(math.Floor(float64(config.MaxFreq)*config.CalculationPeriod)) + 1,
		sqrtBandwidth:    math.Sqrt(1 / config.CalculationPeriod),
		fft:              fourier.NewFFT(samplesPerPeriod),
	}
}

func (s *Spectrogram) ID() string { return s.id }

func (s *Spectrogram) DoStep(input any) (any, error) {
	samples, ok := input.([]float32)
	if !ok || len(samples) == 0 {
		return nil, nil
	}

	buf := append(append([]float32(nil), s.leftover...), samples...)
	numPeriods := len(buf) / s.samplesPerPeriod
	if numPeriods == 0 {
		s.leftover = buf
		return nil, nil
	}

	out := make([]float32, s.numFrequencies*numPeriods)
	window := make([]float64, s.samplesPerPeriod)
	toSample := 0

	for i := 0; i < numPeriods; i++ {
		fromSample := i * s.samplesPerPeriod
		toSample = fromSample + s.samplesPerPeriod
		for j, v := range buf[fromSample:toSample] {
			window[j] = float64(v)
		}

		coeffs := s.fft.Coefficients(nil, window)
		n := float64(s.samplesPerPeriod)

		resultFrom := i * s.numFrequencies
		for k := 0; k < s.numFrequencies && k < len(coeffs); k++ {
			mag := cmplxAbs(coeffs[k]) / n
			out[resultFrom+k] = float32(mag / s.sqrtBandwidth)
		}
	}

	s.leftover = append([]float32(nil), buf[toSample:]...)
	return out, nil
}

func cmplxAbs(c complex128) float64 {
	return math.Hypot(real(c), imag(c))
}
