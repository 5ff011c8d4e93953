package step

import "fmt"

// Pipeline is an ordered chain of Steps producing one output per tick. A
// Step never observes the result of a later Step in its own pipeline;
// nil/empty results short-circuit to a nil result for every downstream
// Step without invoking them (§3 Invariants, §4.4).
type Pipeline struct {
	ID       string
	steps    []Step
	firstRun bool
}

// NewPipeline constructs a Pipeline from an ordered list of Steps.
func NewPipeline(id string, steps []Step) *Pipeline {
	return &Pipeline{ID: id, steps: steps, firstRun: true}
}

// Steps returns the pipeline's steps in order.
func (p *Pipeline) Steps() []Step {
	return p.steps
}

// Run executes every Step in order for one tick and returns the final
// Step's result.
func (p *Pipeline) Run() (any, error) {
	if len(p.steps) == 0 {
		return nil, nil
	}

	var result any
	short := false

	for i, s := range p.steps {
		if short {
			continue
		}
		var err error
		if i == 0 && p.firstRun {
			if seeder, ok := s.(Seeder); ok {
				result = seeder.Seed()
			} else {
				result, err = s.DoStep(nil)
			}
		} else {
			var in any
			if i > 0 {
				in = result
			}
			if i > 0 && IsEmpty(in) {
				result = nil
				short = true
				continue
			}
			result, err = s.DoStep(in)
		}
		if err != nil {
			return nil, fmt.Errorf("step: pipeline %s step %d (%s): %w", p.ID, i, s.ID(), err)
		}
	}

	p.firstRun = false
	return result, nil
}

// Finalize releases every Step's resources, in order, continuing past
// errors and returning the first one encountered.
func (p *Pipeline) Finalize() error {
	var firstErr error
	for _, s := range p.steps {
		if f, ok := s.(Finalizer); ok {
			if err := f.Finalize(); err != nil && firstErr == nil {
				firstErr = fmt.Errorf("step: finalizing %s: %w", s.ID(), err)
			}
		}
	}
	return firstErr
}
