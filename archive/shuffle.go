package archive

import (
	"encoding/binary"
	"math"
)

// shuffleFloat32 applies the HDF5-style byte-plane shuffle filter to a
// float32 slice: instead of storing each sample's 4 bytes contiguously,
// it stores all samples' byte-0 first, then all byte-1, and so on. This
// groups the highly-correlated high-order bytes of neighboring
// electrophysiology samples together, improving gzip's compression ratio
// on the kind of slowly-varying signals this archive stores (grounded on
// nwb_file_writer.py's `shuffle=True` HDF5 dataset option).
func shuffleFloat32(samples []float32) []byte {
	n := len(samples)
	raw := make([]byte, n*4)
	for i, v := range samples {
		binary.LittleEndian.PutUint32(raw[i*4:], math.Float32bits(v))
	}

	out := make([]byte, n*4)
	for b := 0; b < 4; b++ {
		for i := 0; i < n; i++ {
			out[b*n+i] = raw[i*4+b]
		}
	}
	return out
}

// unshuffleFloat32 reverses shuffleFloat32.
func unshuffleFloat32(data []byte, n int) []float32 {
	raw := make([]byte, n*4)
	for b := 0; b < 4; b++ {
		for i := 0; i < n; i++ {
			raw[i*4+b] = data[b*n+i]
		}
	}

	out := make([]float32, n)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return out
}
