// Package archive implements the chunked, compressed, extendible
// per-electrode sample archive (§4.7), grounded on
// original_source/engine/sources_and_sinks/nwb_file_writer.py. Each
// electrode series is its own append-only file of shuffle-filtered,
// gzip-compressed chunks — a custom format standing in for the
// original's HDF5-backed `ElectricalSeries` datasets, since no HDF5
// binding exists anywhere in the retrieved pack or its ecosystem
// neighbors (see DESIGN.md).
package archive

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
)

// CompressionLevel mirrors nwb_file_writer.py's `compression_opts=4`.
const CompressionLevel = 4

// countFile holds a dataset's persisted sample count, so a reopened
// archive reports the exact length written before the process exited
// (§8 scenario 6).
type countFile struct {
	Count int `json:"count"`
}

// Dataset is one electrode series' append-only chunk file.
type Dataset struct {
	path      string
	countPath string
	file      *os.File
	count     int
}

// OpenDataset opens (creating if absent) the chunk file and count
// sidecar for name under dir.
func OpenDataset(dir, name string) (*Dataset, error) {
	path := filepath.Join(dir, name+".chunks")
	countPath := filepath.Join(dir, name+".count")

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("archive: open dataset %q: %w", name, err)
	}

	d := &Dataset{path: path, countPath: countPath, file: f}

	if data, err := os.ReadFile(countPath); err == nil {
		var cf countFile
		if jsonErr := json.Unmarshal(data, &cf); jsonErr == nil {
			d.count = cf.Count
		}
	} else if !os.IsNotExist(err) {
		f.Close()
		return nil, fmt.Errorf("archive: read count for %q: %w", name, err)
	}

	return d, nil
}

// Len returns the dataset's total sample count, including samples
// written in prior process lifetimes.
func (d *Dataset) Len() int {
	return d.count
}

// AppendChunk shuffle-filters, gzip-compresses, and appends samples as
// one length-prefixed chunk record, then durably persists the updated
// sample count.
func (d *Dataset) AppendChunk(samples []float32) error {
	if len(samples) == 0 {
		return nil
	}

	var compressed bytes.Buffer
	gw, err := gzip.NewWriterLevel(&compressed, CompressionLevel)
	if err != nil {
		return fmt.Errorf("archive: gzip writer: %w", err)
	}
	if _, err := gw.Write(shuffleFloat32(samples)); err != nil {
		return fmt.Errorf("archive: compress chunk: %w", err)
	}
	if err := gw.Close(); err != nil {
		return fmt.Errorf("archive: flush chunk: %w", err)
	}

	var header [8]byte
	binary.LittleEndian.PutUint32(header[0:4], uint32(len(samples)))
	binary.LittleEndian.PutUint32(header[4:8], uint32(compressed.Len()))

	if _, err := d.file.Write(header[:]); err != nil {
		return fmt.Errorf("archive: write chunk header: %w", err)
	}
	if _, err := d.file.Write(compressed.Bytes()); err != nil {
		return fmt.Errorf("archive: write chunk body: %w", err)
	}

	d.count += len(samples)
	return d.persistCount()
}

func (d *Dataset) persistCount() error {
	data, err := json.Marshal(countFile{Count: d.count})
	if err != nil {
		return err
	}
	tmp := d.countPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("archive: write count: %w", err)
	}
	return os.Rename(tmp, d.countPath)
}

// ReadAll decompresses and concatenates every chunk written to the
// dataset, in order. It opens the underlying file independently of the
// writer, so it is safe to call after Close.
func (d *Dataset) ReadAll() ([]float32, error) {
	f, err := os.Open(d.path)
	if err != nil {
		return nil, fmt.Errorf("archive: open dataset for read: %w", err)
	}
	defer f.Close()

	out := make([]float32, 0, d.count)
	var header [8]byte
	for {
		_, err := io.ReadFull(f, header[:])
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("archive: read chunk header: %w", err)
		}
		numSamples := int(binary.LittleEndian.Uint32(header[0:4]))
		compressedLen := int(binary.LittleEndian.Uint32(header[4:8]))

		compressed := make([]byte, compressedLen)
		if _, err := io.ReadFull(f, compressed); err != nil {
			return nil, fmt.Errorf("archive: read chunk body: %w", err)
		}

		gr, err := gzip.NewReader(bytes.NewReader(compressed))
		if err != nil {
			return nil, fmt.Errorf("archive: gzip reader: %w", err)
		}
		raw, err := io.ReadAll(gr)
		gr.Close()
		if err != nil {
			return nil, fmt.Errorf("archive: decompress chunk: %w", err)
		}

		out = append(out, unshuffleFloat32(raw, numSamples)...)
	}
	return out, nil
}

// Close releases the dataset's file handle.
func (d *Dataset) Close() error {
	return d.file.Close()
}
