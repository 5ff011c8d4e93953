package stim

// StepSizes are the fixed current step sizes, in amps, addressable by a
// step_size_index in [0,10), matching the RHS2116-style amplifier's fixed
// current DAC range: 10 nA through 10 uA.
var StepSizes = [10]float64{
	10e-9, 20e-9, 50e-9, 100e-9, 200e-9, 500e-9,
	1e-6, 2e-6, 5e-6, 10e-6,
}

// BiasSizes mirrors StepSizes for the DC bias DAC; the original device
// shares the same fixed ladder for both current amplitude and bias.
var BiasSizes = StepSizes
