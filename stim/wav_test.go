package stim

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildWav8 constructs a minimal 8-bit mono PCM RIFF/WAVE buffer for tests.
func buildWav8(t *testing.T, sampleRate uint32, samples []uint8) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString("RIFF")
	dataSize := len(samples)
	riffSize := uint32(4 + 8 + 16 + 8 + dataSize)
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, riffSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint32(16)))
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint16(1))) // PCM
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint16(1))) // mono
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, sampleRate))
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, sampleRate)) // byte rate
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint16(1)))  // block align
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint16(8)))  // bits per sample

	buf.WriteString("data")
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint32(dataSize)))
	buf.Write(samples)

	return buf.Bytes()
}

func TestOpenWavReadsFrames(t *testing.T) {
	raw := buildWav8(t, 44100, []uint8{128, 200, 0, 255})
	wr, err := openWav(bytes.NewReader(raw))
	require.NoError(t, err)

	assert.EqualValues(t, 4, wr.NumFrames())

	sample, err := wr.ReadFrame(1)
	require.NoError(t, err)
	assert.EqualValues(t, 200, sample)

	sample, err = wr.ReadFrame(3)
	require.NoError(t, err)
	assert.EqualValues(t, 255, sample)
}

func TestOpenWavRejectsStereo(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("RIFF")
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint32(36)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint32(16)))
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint16(1)))
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint16(2))) // stereo
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint32(44100)))
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint32(44100)))
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint16(1)))
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint16(8)))
	buf.WriteString("data")
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint32(0)))

	_, err := openWav(bytes.NewReader(buf.Bytes()))
	assert.Error(t, err)
}
