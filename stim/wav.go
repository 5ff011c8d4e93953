package stim

import (
	"encoding/binary"
	"fmt"
	"io"
)

// wavReader is a minimal 8-bit mono PCM RIFF/WAVE reader: just enough to
// drive the waveform stimulator, which only ever plays unsigned 8-bit mono
// samples. It is not a general WAV decoder.
type wavReader struct {
	r          io.ReadSeeker
	dataOffset int64
	dataLen    int64
	sampleRate uint32
	pos        int64
}

func openWav(r io.ReadSeeker) (*wavReader, error) {
	var riffHeader [12]byte
	if _, err := io.ReadFull(r, riffHeader[:]); err != nil {
		return nil, fmt.Errorf("stim: reading RIFF header: %w", err)
	}
	if string(riffHeader[0:4]) != "RIFF" || string(riffHeader[8:12]) != "WAVE" {
		return nil, fmt.Errorf("stim: not a RIFF/WAVE file")
	}

	wr := &wavReader{r: r}
	var numChannels, bitsPerSample uint16
	for {
		var chunkHeader [8]byte
		if _, err := io.ReadFull(r, chunkHeader[:]); err != nil {
			return nil, fmt.Errorf("stim: reading chunk header: %w", err)
		}
		id := string(chunkHeader[0:4])
		size := int64(binary.LittleEndian.Uint32(chunkHeader[4:8]))

		switch id {
		case "fmt ":
			var fmtBody [16]byte
			if _, err := io.ReadFull(r, fmtBody[:]); err != nil {
				return nil, fmt.Errorf("stim: reading fmt chunk: %w", err)
			}
			numChannels = binary.LittleEndian.Uint16(fmtBody[2:4])
			wr.sampleRate = binary.LittleEndian.Uint32(fmtBody[4:8])
			bitsPerSample = binary.LittleEndian.Uint16(fmtBody[14:16])
			if extra := size - 16; extra > 0 {
				if _, err := r.Seek(extra, io.SeekCurrent); err != nil {
					return nil, err
				}
			}
		case "data":
			pos, err := r.Seek(0, io.SeekCurrent)
			if err != nil {
				return nil, err
			}
			wr.dataOffset = pos
			wr.dataLen = size
			if numChannels != 1 || bitsPerSample != 8 {
				return nil, fmt.Errorf("stim: only 8-bit mono PCM wav files are supported, got %d channels at %d bits", numChannels, bitsPerSample)
			}
			return wr, nil
		default:
			if _, err := r.Seek(size, io.SeekCurrent); err != nil {
				return nil, fmt.Errorf("stim: skipping chunk %q: %w", id, err)
			}
		}
	}
}

// NumFrames returns the total number of 8-bit samples in the data chunk.
func (w *wavReader) NumFrames() int64 { return w.dataLen }

// ReadFrame reads the unsigned 8-bit sample at frame index i, seeking the
// underlying reader to that frame; every read is by absolute index.
func (w *wavReader) ReadFrame(i int64) (uint8, error) {
	if i < 0 || i >= w.dataLen {
		return 0, io.EOF
	}
	if _, err := w.r.Seek(w.dataOffset+i, io.SeekStart); err != nil {
		return 0, err
	}
	var b [1]byte
	if _, err := io.ReadFull(w.r, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}
