package stim

import (
	"math"

	"ephys.tools/engine"
)

// BiphasicConfig parametrizes one biphasic pulse-train run: a cathodic
// (or anodic) phase, an optional interphase gap, the mirror-polarity phase,
// and a post-pulse charge-recovery teardown.
type BiphasicConfig struct {
	Phase1Current      float64 // amps, signed
	Phase2Current      float64 // amps, signed
	Phase1Duration      float64 // seconds
	Phase2Duration      float64 // seconds
	InterphaseDuration float64 // seconds, 0 disables the interphase gap
	MaxFreq            float64 // Hz, command-clock rate
	StepSizeIndex      int
	Electrodes         []engine.Electrode

	// InverseElectrodes is carried for wire-format completeness but is
	// never populated by any caller in the source this was ported from;
	// biphasic command emission does not consult it. See DESIGN.md.
	InverseElectrodes []engine.Electrode
}

// Biphasic generates the one-shot command sequence for a biphasic pulse
// train, per electrode group, across all chips the electrodes span.
type Biphasic struct {
	cfg  BiphasicConfig
	done bool
	sent bool
}

// NewBiphasic constructs a Biphasic generator from a config. EmitNextCommands
// produces the entire sequence on its first call and reports IsDone
// thereafter — a biphasic run has no streaming/lookahead component.
func NewBiphasic(cfg BiphasicConfig) *Biphasic {
	return &Biphasic{cfg: cfg}
}

func (b *Biphasic) PulseType() PulseType { return PulseBiphasic }

func (b *Biphasic) OnStimulationStarting() error {
	b.done = false
	b.sent = false
	return nil
}

func (b *Biphasic) IsDone() bool { return b.done }

func (b *Biphasic) StopStimulation() { b.done = true }

func (b *Biphasic) OnStimulationDone() error { return nil }

func (b *Biphasic) EmitNextCommands() (ChipWords, error) {
	if b.sent {
		b.done = true
		return ChipWords{}, nil
	}
	b.sent = true
	b.done = true

	chips := make(ChipWords)
	byChip := groupByChip(b.cfg.Electrodes)

	// Step 1: phase-1 current writes.
	numSetup := 0
	for chip, electrodes := range byChip {
		var words []uint32
		for _, e := range electrodes {
			w, err := CurrentWrite(e.Local(), b.cfg.Phase1Current, b.cfg.StepSizeIndex, false)
			if err != nil {
				return nil, err
			}
			words = append(words, w)
		}
		if len(electrodes) > numSetup {
			numSetup = len(electrodes)
		}
		chips[chip] = words
	}

	// Step 2: pad every chip's setup block to a common pad_to_steps length.
	padToSteps := numSetup + ((4-(numSetup+2)%4)%4)
	for chip := range chips {
		padded, err := PadToLength(chips[chip], padToSteps)
		if err != nil {
			padded = PadToMultipleOf4(chips[chip])
		}
		chips[chip] = padded
	}

	// Step 3: trigger phase 1 — polarity mask, then STIM_ON.
	polarity1 := maskByChip(byChip, func(e engine.Electrode) bool { return b.cfg.Phase1Current >= 0 })
	allFlags := maskByChip(byChip, func(engine.Electrode) bool { return true })
	for chip := range chips {
		chips[chip] = append(chips[chip], WriteRegister(RegPolarity, polarity1[chip], false))
		chips[chip] = append(chips[chip], WriteRegister(RegStimOn, allFlags[chip], true))
	}

	// Step 4: preload phase-2 currents.
	for chip, electrodes := range byChip {
		for _, e := range electrodes {
			w, err := CurrentWrite(e.Local(), b.cfg.Phase2Current, b.cfg.StepSizeIndex, false)
			if err != nil {
				return nil, err
			}
			chips[chip] = append(chips[chip], w)
		}
	}

	// Step 5: pad out phase 1's duration.
	pad5 := int(math.Floor(b.cfg.Phase1Duration*4*b.cfg.MaxFreq)) - numSetup - 2
	for chip := range chips {
		chips[chip] = appendBenign(chips[chip], pad5)
	}

	// Step 6: optional interphase gap.
	if b.cfg.InterphaseDuration > 0 {
		for chip := range chips {
			chips[chip] = append(chips[chip], ReadChipID())
			chips[chip] = append(chips[chip], WriteRegister(RegStimOn, 0, true))
			chips[chip] = appendBenign(chips[chip], int(math.Floor(b.cfg.InterphaseDuration*4*b.cfg.MaxFreq)))
		}
	}

	// Step 7: trigger phase 2.
	polarity2 := maskByChip(byChip, func(e engine.Electrode) bool { return b.cfg.Phase2Current >= 0 })
	for chip := range chips {
		chips[chip] = append(chips[chip], WriteRegister(RegPolarity, polarity2[chip], false))
		chips[chip] = append(chips[chip], WriteRegister(RegStimOn, allFlags[chip], true))
	}

	// Step 8: pad out phase 2's duration, then disable.
	pad8 := int(math.Floor(b.cfg.Phase2Duration*4*b.cfg.MaxFreq)) - 1
	for chip := range chips {
		chips[chip] = appendBenign(chips[chip], pad8)
		chips[chip] = append(chips[chip], WriteRegister(RegStimOn, 0, true))
	}

	// Step 9: charge recovery.
	for chip := range chips {
		chips[chip] = append(chips[chip], WriteRegister(RegChargeRecoverySwitch, allFlags[chip], false))
		chips[chip] = appendBenign(chips[chip], 11)
		chips[chip] = append(chips[chip], WriteRegister(RegChargeRecoverySwitch, 0, true))
	}

	return alignChipWords(chips), nil
}

func appendBenign(words []uint32, n int) []uint32 {
	for i := 0; i < n; i++ {
		words = append(words, ReadChipID())
	}
	return words
}

func groupByChip(electrodes []engine.Electrode) map[int][]engine.Electrode {
	out := make(map[int][]engine.Electrode)
	for _, e := range electrodes {
		out[e.Chip()] = append(out[e.Chip()], e)
	}
	return out
}

func maskByChip(byChip map[int][]engine.Electrode, include func(engine.Electrode) bool) map[int]uint32 {
	out := make(map[int]uint32, len(byChip))
	for chip, electrodes := range byChip {
		var mask uint32
		for _, e := range electrodes {
			if include(e) {
				mask |= ElectrodeBit(e.Local())
			}
		}
		out[chip] = mask
	}
	return out
}
