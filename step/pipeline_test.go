package step

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fnStep struct {
	id string
	fn func(input any) (any, error)
}

func (s *fnStep) ID() string                    { return s.id }
func (s *fnStep) DoStep(input any) (any, error) { return s.fn(input) }

type seedStep struct {
	fnStep
	seed any
}

func (s *seedStep) Seed() any { return s.seed }

type finalizeStep struct {
	fnStep
	finalized *bool
}

func (s *finalizeStep) Finalize() error {
	*s.finalized = true
	return nil
}

func TestPipelineFirstRunUsesSeederNotDoStep(t *testing.T) {
	called := false
	source := &seedStep{
		fnStep: fnStep{id: "source", fn: func(input any) (any, error) {
			called = true
			return []float32{1, 2}, nil
		}},
		seed: []float32{9, 9, 9},
	}
	double := &fnStep{id: "double", fn: func(input any) (any, error) {
		samples := input.([]float32)
		out := make([]float32, len(samples))
		for i, v := range samples {
			out[i] = v * 2
		}
		return out, nil
	}}

	p := NewPipeline("p", []Step{source, double})
	result, err := p.Run()
	require.NoError(t, err)
	assert.False(t, called, "DoStep must not be called on the source's first run when it is a Seeder")
	assert.Equal(t, []float32{18, 18, 18}, result)
}

func TestPipelineSubsequentRunsUseDoStep(t *testing.T) {
	calls := 0
	source := &seedStep{
		fnStep: fnStep{id: "source", fn: func(input any) (any, error) {
			calls++
			return []float32{1}, nil
		}},
		seed: []float32{0},
	}
	p := NewPipeline("p", []Step{source})

	_, err := p.Run()
	require.NoError(t, err)
	assert.Equal(t, 0, calls)

	_, err = p.Run()
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestPipelineEmptyResultShortCircuitsDownstream(t *testing.T) {
	downstreamCalled := false
	source := &fnStep{id: "source", fn: func(input any) (any, error) {
		return []float32{}, nil
	}}
	downstream := &fnStep{id: "downstream", fn: func(input any) (any, error) {
		downstreamCalled = true
		return []float32{1}, nil
	}}

	p := NewPipeline("p", []Step{source, downstream})
	result, err := p.Run()
	require.NoError(t, err)
	assert.False(t, downstreamCalled)
	assert.Nil(t, result)
}

func TestPipelineNilResultShortCircuitsDownstream(t *testing.T) {
	downstreamCalled := false
	source := &fnStep{id: "source", fn: func(input any) (any, error) {
		return nil, nil
	}}
	downstream := &fnStep{id: "downstream", fn: func(input any) (any, error) {
		downstreamCalled = true
		return []float32{1}, nil
	}}

	p := NewPipeline("p", []Step{source, downstream})
	_, err := p.Run()
	require.NoError(t, err)
	assert.False(t, downstreamCalled)
}

func TestPipelinePropagatesStepError(t *testing.T) {
	boom := errors.New("boom")
	source := &fnStep{id: "source", fn: func(input any) (any, error) {
		return nil, boom
	}}
	p := NewPipeline("p", []Step{source})
	_, err := p.Run()
	assert.ErrorIs(t, err, boom)
}

func TestPipelineFinalizeInvokesFinalizers(t *testing.T) {
	finalized := false
	f := &finalizeStep{
		fnStep:    fnStep{id: "sink", fn: func(input any) (any, error) { return nil, nil }},
		finalized: &finalized,
	}
	p := NewPipeline("p", []Step{f})
	require.NoError(t, p.Finalize())
	assert.True(t, finalized)
}

func TestPipelineEmptySliceReturnsNil(t *testing.T) {
	p := NewPipeline("p", nil)
	result, err := p.Run()
	require.NoError(t, err)
	assert.Nil(t, result)
}
