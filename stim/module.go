package stim

import (
	"context"
	"encoding/json"
)

// Module is the Stim module's engine-tick bridge: a tick counter mirroring
// modules/stim/main.py's StimModule, plus a call into the device
// controller's stim tick every engine tick (the controller itself is
// injected as a plain function to avoid an import cycle between stim and
// device).
type Module struct {
	ctx  context.Context
	tick func(ctx context.Context) error

	stepNum int
}

// NewModule constructs a Stim module. tick is normally
// (*device.Controller).StimTick; it may be nil for a module that only
// counts steps.
func NewModule(ctx context.Context, tick func(ctx context.Context) error) *Module {
	return &Module{ctx: ctx, tick: tick}
}

func (m *Module) Name() string { return "Stim" }

// HandleCommand is a no-op: the Stim module takes no configuration.
func (m *Module) HandleCommand(_ json.RawMessage) error { return nil }

func (m *Module) DoStep() (any, error) {
	if m.tick != nil {
		if err := m.tick(m.ctx); err != nil {
			return nil, err
		}
	}
	m.stepNum++
	return m.stepNum, nil
}
