package stim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteRegister(t *testing.T) {
	assert.Equal(t, uint32(0x80000000|44<<16|5), WriteRegister(44, 5, false))
	assert.Equal(t, uint32(0x80000000|0x20000000|44<<16|5), WriteRegister(44, 5, true))
}

func TestReadRegister(t *testing.T) {
	assert.Equal(t, uint32(0xC0000000|42<<16), ReadRegister(42))
}

func TestElectrodeBit(t *testing.T) {
	assert.Equal(t, uint32(1), ElectrodeBit(0))
	assert.Equal(t, uint32(2), ElectrodeBit(1))
	assert.Equal(t, uint32(1<<15), ElectrodeBit(15))
}

func TestCurrentWritePositiveOneMicroamp(t *testing.T) {
	// 1uA at step index 6 (StepSizes[6] == 1uA) quantizes to magnitude 1,
	// landing on the positive-current base register for electrode 0.
	word, err := CurrentWrite(0, 1e-6, 6, false)
	require.NoError(t, err)
	assert.Equal(t, WriteRegister(RegCurrentPosBase, 0x8001, false), word)
}

func TestCurrentWriteNegative(t *testing.T) {
	word, err := CurrentWrite(1, -1e-6, 6, false)
	require.NoError(t, err)
	assert.Equal(t, WriteRegister(RegCurrentNegBase+1, 0x8001, false), word)
}

func TestCurrentMagnitudeOutOfRangeStepIndex(t *testing.T) {
	_, err := CurrentMagnitude(1e-6, 99)
	assert.Error(t, err)
}
