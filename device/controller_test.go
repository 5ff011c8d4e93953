package device

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ephys.tools/engine/stim"
)

func TestControllerConnectAndInitialize(t *testing.T) {
	transport := NewFakeTransport(FakeTransportConfig{})
	ctrl := NewController(transport, Config{InitCommands: []string{"cmd1", "cmd2"}})

	require.NoError(t, ctrl.Connect(context.Background()))
	state, _, _ := ctrl.State()
	assert.Equal(t, ConnectedUninit, state)

	var steps []InitProgress
	require.NoError(t, ctrl.Initialize(context.Background(), func(p InitProgress) {
		steps = append(steps, p)
	}))
	state, _, _ = ctrl.State()
	assert.Equal(t, StateInitialized, state)
	assert.Len(t, steps, 2)
}

func TestControllerInitializeFailureSetsInitFailed(t *testing.T) {
	calls := 0
	transport := NewFakeTransport(FakeTransportConfig{
		RunCommand: func(ctx context.Context, cmd string) (string, error) {
			calls++
			if calls == 2 {
				return "", assertError{}
			}
			return "ok", nil
		},
	})
	ctrl := NewController(transport, Config{InitCommands: []string{"a", "b", "c"}})
	err := ctrl.Initialize(context.Background(), nil)
	require.Error(t, err)
	state, _, _ := ctrl.State()
	assert.Equal(t, StateInitFailed, state)
}

type assertError struct{}

func (assertError) Error() string { return "boom" }

func TestControllerStimTickWritesChipsAndClearsFlag(t *testing.T) {
	transport := NewFakeTransport(FakeTransportConfig{})
	ctrl := NewController(transport, Config{
		ChipPaths: map[int]string{0: "/dev/chip0fifo"},
	})
	ctrl.setState(StateInitialized)

	gen := stubGenerator{words: stim.ChipWords{0: {1, 2, 3, 4}}, done: true}
	require.NoError(t, ctrl.StartStimulation(&gen))

	require.NoError(t, ctrl.StimTick(context.Background()))
	assert.Equal(t, []uint32{1, 2, 3, 4}, transport.Written["/dev/chip0fifo"])

	_, _, stimulating := ctrl.State()
	assert.False(t, stimulating)
}

type stubGenerator struct {
	words stim.ChipWords
	done  bool
}

func (s *stubGenerator) PulseType() stim.PulseType       { return stim.PulseBiphasic }
func (s *stubGenerator) OnStimulationStarting() error    { return nil }
func (s *stubGenerator) EmitNextCommands() (stim.ChipWords, error) { return s.words, nil }
func (s *stubGenerator) IsDone() bool                    { return s.done }
func (s *stubGenerator) StopStimulation()                {}
func (s *stubGenerator) OnStimulationDone() error         { return nil }
