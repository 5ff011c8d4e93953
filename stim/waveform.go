package stim

import (
	"fmt"
	"math"
	"time"

	"ephys.tools/engine"
)

// EmitAheadSec is the rolling lookahead the waveform stimulator keeps ready
// on the device: each EmitNextCommands call tops up frames so the device
// always has at least this many seconds of upcoming samples queued.
const EmitAheadSec = 3.0

// WaveformFile binds one 8-bit mono PCM source to the electrodes it drives.
type WaveformFile struct {
	Reader      *wavReader
	Electrodes  []engine.Electrode
	LoopForever bool

	framePos int64
	finished bool
}

// WaveformConfig parametrizes the waveform-file stimulator.
type WaveformConfig struct {
	Files         []*WaveformFile
	MaxFreq       float64
	StepSizeIndex int

	// Now defaults to time.Now; tests override it for determinism.
	Now func() time.Time
}

// Waveform streams 8-bit mono PCM samples from one or more files out as
// per-electrode current-write commands, maintaining a rolling lookahead.
type Waveform struct {
	cfg  WaveformConfig
	t0   time.Time
	done bool
}

// NewWaveform constructs a Waveform generator.
func NewWaveform(cfg WaveformConfig) *Waveform {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Waveform{cfg: cfg}
}

func (w *Waveform) PulseType() PulseType { return PulseWaveform }

func (w *Waveform) OnStimulationStarting() error {
	w.t0 = w.cfg.Now()
	w.done = false
	for _, f := range w.cfg.Files {
		f.framePos = 0
		f.finished = false
	}
	return nil
}

func (w *Waveform) IsDone() bool { return w.done }

func (w *Waveform) StopStimulation() { w.done = true }

func (w *Waveform) OnStimulationDone() error { return nil }

func (w *Waveform) EmitNextCommands() (ChipWords, error) {
	if w.done {
		return ChipWords{}, nil
	}

	elapsed := w.cfg.Now().Sub(w.t0).Seconds()
	shouldBeAtFrames := int64(math.Round((elapsed + EmitAheadSec) * w.cfg.MaxFreq))

	chips := make(ChipWords)
	anyFinished := false

	for {
		target := shouldBeAtFrames
		progressed := false
		for _, f := range w.cfg.Files {
			if f.finished || f.framePos >= target {
				continue
			}
			progressed = true
			mask := make(map[int]uint32)
			for _, e := range f.Electrodes {
				sample, err := f.Reader.ReadFrame(f.framePos % f.Reader.NumFrames())
				if err != nil {
					return nil, fmt.Errorf("stim: reading waveform frame: %w", err)
				}
				value := int(sample) - 128
				word, err := currentWriteRaw(e.Local(), value)
				if err != nil {
					return nil, err
				}
				chips[e.Chip()] = append(chips[e.Chip()], word)
				if value >= 0 {
					mask[e.Chip()] |= ElectrodeBit(e.Local())
				}
			}
			for chip, m := range mask {
				chips[chip] = PadToMultipleOf4(chips[chip])
				chips[chip] = append(chips[chip], WriteRegister(RegPolarity, m, true))
			}
			f.framePos++
			if !f.LoopForever && f.framePos >= f.Reader.NumFrames() {
				f.finished = true
				anyFinished = true
			}
		}
		if !progressed {
			break
		}
		if anyFinished {
			break
		}
	}

	if anyFinished {
		w.done = true
		appendChargeRecovery(chips, w.cfg.Files)
	}

	return alignChipWords(chips), nil
}

// currentWriteRaw encodes a current-write command from an already-quantized
// signed magnitude (used by the waveform stimulator, whose 8-bit PCM
// samples are themselves the DAC step count).
func currentWriteRaw(local int, value int) (uint32, error) {
	if value > 0xFF || value < -0xFF {
		return 0, fmt.Errorf("stim: waveform sample magnitude %d out of range", value)
	}
	base := uint32(RegCurrentPosBase)
	mag := uint32(value)
	if value < 0 {
		base = RegCurrentNegBase
		mag = uint32(-value)
	}
	return WriteRegister(base+uint32(local), (uint32(0x80)<<8)|mag, false), nil
}

func appendChargeRecovery(chips ChipWords, files []*WaveformFile) {
	byChip := make(map[int][]engine.Electrode)
	for _, f := range files {
		for _, e := range f.Electrodes {
			byChip[e.Chip()] = append(byChip[e.Chip()], e)
		}
	}
	for chip, electrodes := range byChip {
		var mask uint32
		for _, e := range electrodes {
			mask |= ElectrodeBit(e.Local())
		}
		chips[chip] = append(chips[chip], WriteRegister(RegStimOn, 0, true))
		chips[chip] = append(chips[chip], WriteRegister(RegChargeRecoverySwitch, mask, false))
		chips[chip] = appendBenign(chips[chip], 11)
		chips[chip] = append(chips[chip], WriteRegister(RegChargeRecoverySwitch, 0, true))
	}
}
