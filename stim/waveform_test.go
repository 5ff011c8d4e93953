package stim

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ephys.tools/engine"
)

func TestWaveformEmitsCurrentWritesAndLoops(t *testing.T) {
	raw := buildWav8(t, 1000, []uint8{128, 255, 0})
	wr, err := openWav(bytes.NewReader(raw))
	require.NoError(t, err)

	now := time.Unix(0, 0)
	file := &WaveformFile{
		Reader:      wr,
		Electrodes:  []engine.Electrode{0},
		LoopForever: true,
	}
	gen := NewWaveform(WaveformConfig{
		Files:   []*WaveformFile{file},
		MaxFreq: 1000,
		Now:     func() time.Time { return now },
	})
	require.NoError(t, gen.OnStimulationStarting())

	chips, err := gen.EmitNextCommands()
	require.NoError(t, err)
	require.Contains(t, chips, 0)
	assert.Equal(t, 0, len(chips[0])%4)
	assert.False(t, gen.IsDone())
}

func TestWaveformStopsWhenShortestFileEnds(t *testing.T) {
	raw := buildWav8(t, 1000, []uint8{128, 255})
	wr, err := openWav(bytes.NewReader(raw))
	require.NoError(t, err)

	now := time.Unix(0, 0)
	file := &WaveformFile{
		Reader:      wr,
		Electrodes:  []engine.Electrode{0},
		LoopForever: false,
	}
	gen := NewWaveform(WaveformConfig{
		Files:   []*WaveformFile{file},
		MaxFreq: 1000,
		Now:     func() time.Time { return now },
	})
	require.NoError(t, gen.OnStimulationStarting())

	now = now.Add(10 * time.Second)
	_, err = gen.EmitNextCommands()
	require.NoError(t, err)
	assert.True(t, gen.IsDone())
}
