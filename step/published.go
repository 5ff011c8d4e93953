package step

import "ephys.tools/engine/databuffer"

// PublishedStep is a pipeline's first Step when its source is a named
// entry in the published-step registry (a raw per-electrode ac/dc
// stream; the registry holds no "electrodes" aggregate, which the engine
// exposes through sched.Engine.Aggregate instead): DoStep returns the current
// tick's increment, and Seed returns the buffer's full retained history
// so a pipeline's first run starts from realistic context (§4.4).
type PublishedStep struct {
	Name     string
	registry *databuffer.Registry
}

// NewPublishedStep constructs a PublishedStep reading from name in reg.
func NewPublishedStep(name string, reg *databuffer.Registry) *PublishedStep {
	return &PublishedStep{Name: name, registry: reg}
}

func (p *PublishedStep) ID() string { return p.Name }

// DoStep ignores input — a PublishedStep is always a pipeline's source —
// and returns this tick's increment, or nil if nothing was appended.
func (p *PublishedStep) DoStep(_ any) (any, error) {
	inc := p.registry.TickIncrement(p.Name)
	if len(inc) == 0 {
		return nil, nil
	}
	return inc, nil
}

// Seed returns the published step's full retained cache, for the
// pipeline's very first run.
func (p *PublishedStep) Seed() any {
	buf, ok := p.registry.Buffer(p.Name)
	if !ok {
		return nil
	}
	return buf.Cache()
}
