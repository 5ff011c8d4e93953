package iirdesign

import "math"

// chebyshev1Prototype returns the n left-half-plane poles of a unity
// cutoff analog Chebyshev type I lowpass prototype with rp dB of
// passband ripple.
func chebyshev1Prototype(n int, rp float64) []complex128 {
	epsilon := math.Sqrt(math.Pow(10, rp/10) - 1)
	mu := math.Asinh(1/epsilon) / float64(n)

	poles := make([]complex128, n)
	for k := 0; k < n; k++ {
		theta := math.Pi * (2*float64(k) + 1) / (2 * float64(n))
		poles[k] = complex(-math.Sinh(mu)*math.Sin(theta), math.Cosh(mu)*math.Cos(theta))
	}
	return poles
}

// ChebyshevI designs an order-n Chebyshev type I filter with rp dB
// passband ripple and cutoff at cutoffHz, sampled at fs (grounded on
// band_filter.py's iirfilter(..., ftype='cheby1')). The ripple edge is
// treated as the prototype's unity-frequency point, an approximation of
// scipy's exact passband-edge normalization — see DESIGN.md.
func ChebyshevI(order int, rp, cutoffHz, fs float64, btype BType) []SOS {
	proto := chebyshev1Prototype(order, rp)
	wc := prewarp(cutoffHz, fs)
	zeros, poles := lowpassToTarget(proto, wc, btype)

	// Chebyshev-I's DC gain isn't unity like Butterworth's; normalize so
	// the passband gain is 1 (odd order: 1 at s=0; even order: 1/sqrt(1+eps^2)).
	gain := 1.0
	if order%2 == 0 {
		epsilon := math.Sqrt(math.Pow(10, rp/10) - 1)
		gain = 1 / math.Sqrt(1+epsilon*epsilon)
	}
	// An all-pole lowpass needs the product of the negated poles as its
	// gain for the level above to hold at s=0.
	if btype == Lowpass {
		prod := complex(1, 0)
		for _, p := range poles {
			prod *= -p
		}
		gain *= real(prod)
	}

	zd, pd, kd := bilinear(zeros, poles, gain, fs)
	return zpkToSOS(zd, pd, kd)
}

// Design dispatches on ftype, matching the set of designs band_filter.py
// can request via iirfilter's ftype argument. Chebyshev-II and elliptic
// designs require a stopband-ripple-aware prototype (zeros in the analog
// passband) that no corpus library provides; Design falls back to the
// Butterworth prototype at the same order/cutoff and calls warn with a
// description of the substitution, rather than silently misrepresenting
// the requested filter type (§4.5 Open Question decision).
func Design(ftype string, order int, cutoffHz, rp, fs float64, btype BType, warn func(string)) []SOS {
	switch ftype {
	case "cheby1":
		return ChebyshevI(order, rp, cutoffHz, fs, btype)
	case "cheby2", "ellip", "elliptic":
		if warn != nil {
			warn("iirdesign: " + ftype + " is not implemented; falling back to a Butterworth design of the same order and cutoff")
		}
		return Butterworth(order, cutoffHz, fs, btype)
	default:
		return Butterworth(order, cutoffHz, fs, btype)
	}
}
