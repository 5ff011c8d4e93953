package archive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDatasetAppendAndReadAllRoundTrip(t *testing.T) {
	dir := t.TempDir()
	ds, err := OpenDataset(dir, "0_ac")
	require.NoError(t, err)

	chunk1 := make([]float32, 1000)
	for i := range chunk1 {
		chunk1[i] = float32(i)
	}
	chunk2 := make([]float32, 500)
	for i := range chunk2 {
		chunk2[i] = float32(-i)
	}

	require.NoError(t, ds.AppendChunk(chunk1))
	require.NoError(t, ds.AppendChunk(chunk2))
	assert.Equal(t, 1500, ds.Len())
	require.NoError(t, ds.Close())

	reopened, err := OpenDataset(dir, "0_ac")
	require.NoError(t, err)
	assert.Equal(t, 1500, reopened.Len())

	all, err := reopened.ReadAll()
	require.NoError(t, err)
	require.Len(t, all, 1500)
	assert.Equal(t, chunk1, all[:1000])
	assert.Equal(t, chunk2, all[1000:])
}

func TestDatasetAppendEmptyIsNoop(t *testing.T) {
	dir := t.TempDir()
	ds, err := OpenDataset(dir, "0_ac")
	require.NoError(t, err)
	require.NoError(t, ds.AppendChunk(nil))
	assert.Equal(t, 0, ds.Len())
}

func TestDatasetCountSurvivesReopenWithoutReadingChunks(t *testing.T) {
	// §8 scenario 6: a large sample count, finalized then reopened,
	// reports the exact prior length without needing to decompress
	// anything to answer Len().
	dir := t.TempDir()
	ds, err := OpenDataset(dir, "0_ac")
	require.NoError(t, err)

	total := 0
	for i := 0; i < 5; i++ {
		chunk := make([]float32, 60000)
		require.NoError(t, ds.AppendChunk(chunk))
		total += len(chunk)
	}
	require.NoError(t, ds.Close())

	reopened, err := OpenDataset(dir, "0_ac")
	require.NoError(t, err)
	assert.Equal(t, total, reopened.Len())
	assert.Equal(t, 300000, reopened.Len())
}
