package step

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ephys.tools/engine"
	"ephys.tools/engine/databuffer"
)

func TestPublishedStepSeedReturnsFullCache(t *testing.T) {
	reg := databuffer.NewRegistry()
	electrode := engine.NewElectrode(0, 1)
	reg.RegisterElectrode(electrode)
	require.NoError(t, reg.Append(electrode.ACName(), []float32{1, 2, 3}))

	ps := NewPublishedStep(electrode.ACName(), reg)
	assert.Equal(t, []float32{1, 2, 3}, ps.Seed())
}

func TestPublishedStepDoStepReturnsTickIncrementOnly(t *testing.T) {
	reg := databuffer.NewRegistry()
	electrode := engine.NewElectrode(0, 2)
	reg.RegisterElectrode(electrode)
	require.NoError(t, reg.Append(electrode.ACName(), []float32{1, 2, 3}))
	reg.ResetTick()
	require.NoError(t, reg.Append(electrode.ACName(), []float32{4}))

	ps := NewPublishedStep(electrode.ACName(), reg)
	result, err := ps.DoStep(nil)
	require.NoError(t, err)
	assert.Equal(t, []float32{4}, result)
}

func TestPublishedStepDoStepReturnsNilWhenNothingAppendedThisTick(t *testing.T) {
	reg := databuffer.NewRegistry()
	electrode := engine.NewElectrode(0, 3)
	reg.RegisterElectrode(electrode)
	require.NoError(t, reg.Append(electrode.ACName(), []float32{1}))
	reg.ResetTick()

	ps := NewPublishedStep(electrode.ACName(), reg)
	result, err := ps.DoStep(nil)
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestPublishedStepInPipelineSeedsThenIncrements(t *testing.T) {
	reg := databuffer.NewRegistry()
	electrode := engine.NewElectrode(0, 4)
	reg.RegisterElectrode(electrode)
	require.NoError(t, reg.Append(electrode.ACName(), []float32{1, 2}))

	ps := NewPublishedStep(electrode.ACName(), reg)
	p := NewPipeline("p", []Step{ps})

	first, err := p.Run()
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, first)

	reg.ResetTick()
	require.NoError(t, reg.Append(electrode.ACName(), []float32{3}))
	second, err := p.Run()
	require.NoError(t, err)
	assert.Equal(t, []float32{3}, second)
}

func TestPublishedStepSeedMissingBufferReturnsNil(t *testing.T) {
	reg := databuffer.NewRegistry()
	ps := NewPublishedStep("nonexistent", reg)
	assert.Nil(t, ps.Seed())
}
