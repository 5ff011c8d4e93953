package dsp

import (
	"log/slog"
	"strings"

	"ephys.tools/engine/dsp/iirdesign"
)

// BandSideConfig configures one side (low-pass or high-pass) of a Band
// step. FType of "" or "none" disables that side.
type BandSideConfig struct {
	Order    int
	CutoffHz float64
	Rp       float64
	Rs       float64
	FType    string
}

func (c BandSideConfig) enabled() bool {
	return c.FType != "" && !strings.EqualFold(c.FType, "none")
}

// BandConfig configures a Band step: independent low-pass and high-pass
// sides combined in series (grounded on band_filter.py).
type BandConfig struct {
	SamplesPerSec float64
	Low           BandSideConfig
	High          BandSideConfig
}

// Band is a cascaded SOS IIR band filter: an optional low-pass stage
// followed by an optional high-pass stage, each carrying its own filter
// state across ticks so a stream can be processed in arbitrarily sized
// chunks without discontinuities (grounded on band_filter.py's
// zi/zf-carrying sosfilt usage).
type Band struct {
	id string

	lowSections  []iirdesign.SOS
	lowState     [][2]float64
	highSections []iirdesign.SOS
	highState    [][2]float64
}

// NewBand constructs a Band step from config. log receives a warning if
// either side requests an unimplemented filter type (cheby2/elliptic).
func NewBand(id string, config BandConfig, log *slog.Logger) *Band {
	b := &Band{id: id}
	warn := func(msg string) {
		if log != nil {
			log.Warn(msg, "step", id)
		}
	}

	if config.Low.enabled() {
		b.lowSections = iirdesign.Design(config.Low.FType, config.Low.Order, config.Low.CutoffHz,
			config.Low.Rp, config.SamplesPerSec, iirdesign.Lowpass, warn)
	}
	if config.High.enabled() {
		b.highSections = iirdesign.Design(config.High.FType, config.High.Order, config.High.CutoffHz,
			config.High.Rp, config.SamplesPerSec, iirdesign.Highpass, warn)
	}
	return b
}

func (b *Band) ID() string { return b.id }

func (b *Band) DoStep(input any) (any, error) {
	samples, ok := input.([]float32)
	if !ok || len(samples) == 0 {
		return nil, nil
	}

	out := samples
	if b.lowSections != nil {
		out, b.lowState = iirdesign.Filter(b.lowSections, out, b.lowState)
	}
	if b.highSections != nil {
		out, b.highState = iirdesign.Filter(b.highSections, out, b.highState)
	}
	return out, nil
}
