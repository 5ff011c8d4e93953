// Package iirdesign designs digital IIR filters as cascaded second-order
// sections (SOS), the way scipy.signal.iirfilter(..., output='sos') does
// for band_filter.py. No pack or ecosystem library implements analog
// filter-prototype design plus the bilinear transform, so the analog
// prototypes and the transform itself are hand-rolled here; see
// DESIGN.md.
package iirdesign

import "math"

// SOS is one second-order section: H(z) = (B0 + B1 z^-1 + B2 z^-2) /
// (1 + A1 z^-1 + A2 z^-2).
type SOS struct {
	B0, B1, B2 float64
	A1, A2     float64
}

// BType selects a lowpass or highpass design.
type BType int

const (
	Lowpass BType = iota
	Highpass
)

// prewarp converts a digital cutoff frequency to its analog equivalent
// for the bilinear transform (tan prewarping).
func prewarp(cutoffHz, fs float64) float64 {
	return 2 * fs * math.Tan(math.Pi*cutoffHz/fs)
}

// lowpassToTarget frequency-transforms unity-cutoff analog lowpass
// prototype poles to the target band type at the prewarped analog
// cutoff wc. All-pole prototypes (Butterworth, Chebyshev-I) have no
// finite zeros; a highpass transform places n zeros at s=0.
func lowpassToTarget(protoPoles []complex128, wc float64, btype BType) (zeros, poles []complex128) {
	poles = make([]complex128, len(protoPoles))
	switch btype {
	case Lowpass:
		for i, p := range protoPoles {
			poles[i] = p * complex(wc, 0)
		}
		zeros = nil
	case Highpass:
		for i, p := range protoPoles {
			poles[i] = complex(wc, 0) / p
		}
		zeros = make([]complex128, len(protoPoles))
	}
	return zeros, poles
}

// bilinear applies the bilinear transform (s -> z) to an analog zpk
// filter, matching scipy.signal.bilinear_zpk's formula exactly.
func bilinear(zeros, poles []complex128, gain float64, fs float64) (zd, pd []complex128, kd float64) {
	fs2 := complex(2*fs, 0)

	pd = make([]complex128, len(poles))
	denomProd := complex(1, 0)
	for i, p := range poles {
		pd[i] = (fs2 + p) / (fs2 - p)
		denomProd *= fs2 - p
	}

	zd = make([]complex128, 0, len(poles))
	numProd := complex(1, 0)
	for _, z := range zeros {
		zd = append(zd, (fs2+z)/(fs2-z))
		numProd *= fs2 - z
	}
	// Finite zeros exhausted; remaining degree maps to zeros at z=-1.
	for len(zd) < len(poles) {
		zd = append(zd, complex(-1, 0))
	}

	kd = gain * real(numProd/denomProd)
	return zd, pd, kd
}

// zpkToSOS pairs conjugate zero/pole pairs (and any unpaired real roots)
// into second-order sections, distributing the overall gain onto the
// first section's numerator.
func zpkToSOS(zeros, poles []complex128, gain float64) []SOS {
	zeros = padReal(zeros, len(poles))

	var sections []SOS
	usedZ := make([]bool, len(zeros))
	usedP := make([]bool, len(poles))

	for i := 0; i < len(poles); i++ {
		if usedP[i] {
			continue
		}
		p1 := poles[i]
		usedP[i] = true

		havePair := false
		if imag(p1) != 0 {
			for j := i + 1; j < len(poles); j++ {
				if !usedP[j] && nearConj(poles[j], p1) {
					usedP[j] = true
					havePair = true
					break
				}
			}
		}

		z1, z2 := complex(0, 0), complex(0, 0)
		haveZ1, haveZ2 := false, false
		for j := 0; j < len(zeros); j++ {
			if usedZ[j] {
				continue
			}
			if !haveZ1 {
				z1 = zeros[j]
				usedZ[j] = true
				haveZ1 = true
				continue
			}
			if havePair && nearConj(zeros[j], z1) {
				z2 = zeros[j]
				usedZ[j] = true
				haveZ2 = true
				break
			}
		}

		var a1, a2 float64
		if havePair {
			a1 = -2 * real(p1)
			a2 = real(p1)*real(p1) + imag(p1)*imag(p1)
		} else {
			a1 = -real(p1)
			a2 = 0
		}

		var b0, b1, b2 float64
		switch {
		case haveZ1 && haveZ2:
			b0 = 1
			b1 = -real(z1 + z2)
			b2 = real(z1 * z2)
		case haveZ1:
			b0 = 1
			b1 = -real(z1)
			b2 = 0
		default:
			b0 = 1
			b1 = 0
			b2 = 0
		}

		sections = append(sections, SOS{B0: b0, B1: b1, B2: b2, A1: a1, A2: a2})
	}

	if len(sections) > 0 {
		sections[0].B0 *= gain
		sections[0].B1 *= gain
		sections[0].B2 *= gain
	}
	return sections
}

func padReal(zeros []complex128, n int) []complex128 {
	out := append([]complex128(nil), zeros...)
	for len(out) < n {
		out = append(out, complex(0, 0))
	}
	return out
}

func nearConj(a, b complex128) bool {
	const eps = 1e-6
	return math.Abs(real(a)-real(b)) < eps && math.Abs(imag(a)+imag(b)) < eps
}

// Filter applies a cascade of SOS sections to samples using the given
// per-section state (2 values per section: z1, z2), in Direct Form II
// Transposed, returning the filtered output and the updated state for
// the next call — matching scipy.signal.sosfilt's zi/zf contract used by
// band_filter.py.
func Filter(sections []SOS, samples []float32, state [][2]float64) ([]float32, [][2]float64) {
	out := make([]float32, len(samples))
	copy(out, samples)

	if state == nil {
		state = make([][2]float64, len(sections))
	}

	for si, sec := range sections {
		z1, z2 := state[si][0], state[si][1]
		for i, x := range out {
			xf := float64(x)
			y := sec.B0*xf + z1
			z1 = sec.B1*xf - sec.A1*y + z2
			z2 = sec.B2*xf - sec.A2*y
			out[i] = float32(y)
		}
		state[si] = [2]float64{z1, z2}
	}

	return out, state
}
