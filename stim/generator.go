package stim

import "fmt"

// PulseType names a stimulator implementation, surfaced to the device
// controller so command-dispatch messages can select one.
type PulseType string

const (
	PulseBiphasic PulseType = "biphasic"
	PulseWaveform PulseType = "waveform"
)

// ChipWords is one chip's command word stream for one emit cycle. Every
// entry's length must be a multiple of 4, and across a
// Generator.EmitNextCommands call
// every chip's entry must have the same length (§4.6: chips step in
// synchronized 4-word blocks).
type ChipWords map[int][]uint32

// Generator is the common contract every stimulation command generator
// satisfies, mirroring the original's pulse_type/update_config/
// emit_next_commands/is_done/stop lifecycle.
type Generator interface {
	PulseType() PulseType

	// OnStimulationStarting resets internal state for a fresh run.
	OnStimulationStarting() error

	// EmitNextCommands returns the next command-word chunk per chip. It may
	// be called repeatedly until IsDone returns true.
	EmitNextCommands() (ChipWords, error)

	// IsDone reports whether the generator has no further commands to
	// emit for the current run.
	IsDone() bool

	// StopStimulation requests early termination; the next EmitNextCommands
	// call (if any) should wind down safely (e.g. charge recovery).
	StopStimulation()

	// OnStimulationDone releases any per-run resources (e.g. open files).
	OnStimulationDone() error
}

// PadToMultipleOf4 pads a chip's word stream with benign read-chip-id
// commands until its length is a multiple of 4.
func PadToMultipleOf4(words []uint32) []uint32 {
	for len(words)%4 != 0 {
		words = append(words, ReadChipID())
	}
	return words
}

// PadToLength pads a chip's word stream with benign commands up to n words.
// It returns an error if words is already longer than n.
func PadToLength(words []uint32, n int) ([]uint32, error) {
	if len(words) > n {
		return nil, fmt.Errorf("stim: command stream of length %d exceeds pad target %d", len(words), n)
	}
	for len(words) < n {
		words = append(words, ReadChipID())
	}
	return words, nil
}

// alignChipWords pads every chip's stream to the length of the longest one,
// then to the next multiple of 4, so all participating chips present
// identical word counts per the multi-chip lock-step requirement.
func alignChipWords(chips ChipWords) ChipWords {
	max := 0
	for _, w := range chips {
		if len(w) > max {
			max = len(w)
		}
	}
	for max%4 != 0 {
		max++
	}
	out := make(ChipWords, len(chips))
	for chip, w := range chips {
		padded, err := PadToLength(w, max)
		if err != nil {
			padded = PadToMultipleOf4(w)
		}
		out[chip] = padded
	}
	return out
}
