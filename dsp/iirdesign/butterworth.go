package iirdesign

import "math"

// butterworthPrototype returns the n left-half-plane poles of a unity
// cutoff analog Butterworth lowpass prototype.
func butterworthPrototype(n int) []complex128 {
	poles := make([]complex128, n)
	for k := 0; k < n; k++ {
		theta := math.Pi*(2*float64(k)+1)/(2*float64(n)) + math.Pi/2
		poles[k] = complex(math.Cos(theta), math.Sin(theta))
	}
	return poles
}

// Butterworth designs an order-n Butterworth filter with -3dB cutoff at
// cutoffHz, sampled at fs, as cascaded SOS sections (grounded on
// band_filter.py's iirfilter(..., ftype='butter')).
func Butterworth(order int, cutoffHz, fs float64, btype BType) []SOS {
	proto := butterworthPrototype(order)
	wc := prewarp(cutoffHz, fs)
	zeros, poles := lowpassToTarget(proto, wc, btype)
	// The prototype poles lie on the unit circle, so the lowpass gain
	// that gives unity at DC is wc^order; the highpass gain is 1.
	gain := 1.0
	if btype == Lowpass {
		gain = math.Pow(wc, float64(order))
	}
	zd, pd, kd := bilinear(zeros, poles, gain, fs)
	return zpkToSOS(zd, pd, kd)
}
