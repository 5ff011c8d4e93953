// Package step defines the Step/Pipeline abstraction the engine tick loop
// drives: an ordered chain of configured DSP or sink units, each consuming
// the previous unit's result.
package step

// Step is one configured unit inside a Pipeline. DoStep consumes the
// previous Step's result (nil for the first Step) and produces this Step's
// result, updating any internal state. When a Step's result is nil/empty,
// the Pipeline does not call the Steps after it for that run.
type Step interface {
	ID() string
	DoStep(input any) (any, error)
}

// Seeder is implemented by a first-position Step that is itself a
// published, ring-buffered data source (§4.4): on a pipeline's very first
// run, its full cached window seeds the pipeline instead of just the
// current tick's increment, so downstream stateful filters start from
// realistic history rather than an empty stream.
type Seeder interface {
	Seed() any
}

// Finalizer is implemented by a Step that holds a resource needing
// explicit release (notably the archival writer) when its owning Pipeline
// is deleted.
type Finalizer interface {
	Finalize() error
}

// IsEmpty reports whether a Step's result should be treated as
// null/empty for short-circuiting purposes: a nil value, or a
// zero-length []float32.
func IsEmpty(result any) bool {
	if result == nil {
		return true
	}
	if samples, ok := result.([]float32); ok {
		return len(samples) == 0
	}
	return false
}
