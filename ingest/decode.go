// Package ingest implements the UDP sample ingestor: per-port sockets, an
// epoll readiness loop, batch decoding, a bounded handoff queue, and the
// parent-liveness watchdog.
package ingest

import (
	"encoding/binary"

	"ephys.tools/engine"
)

// BufferSize bounds the number of samples decoded for a single channel
// from a single packet, so one oversized or misaligned packet cannot do
// unbounded work.
const BufferSize = 50000

// Decoded holds one packet's worth of decoded per-electrode AC/DC samples.
type Decoded struct {
	AC map[engine.Electrode][]float32
	DC map[engine.Electrode][]float32
}

// newDecoded allocates an empty Decoded ready for appends.
func newDecoded() Decoded {
	return Decoded{AC: make(map[engine.Electrode][]float32), DC: make(map[engine.Electrode][]float32)}
}

// DecodePacket decodes one UDP packet from portIndex into per-electrode
// AC/DC samples, recovering batch alignment by locating the first word
// whose channel-id bits mark the start of a batch (§4.1).
//
// channelsPerPort is the number of channel samples per batch (normally
// engine.ChannelsPerChip); dwordsPerBatch is the total batch width
// including command-response words (normally engine.DefaultDwordsPerBatch).
func DecodePacket(packet []byte, portIndex, channelsPerPort, dwordsPerBatch int) Decoded {
	out := newDecoded()

	nwords := len(packet) / 4
	if nwords == 0 {
		return out
	}
	words := make([]engine.Word, nwords)
	for i := range words {
		words[i] = engine.Word(binary.LittleEndian.Uint32(packet[i*4 : i*4+4]))
	}

	firstChannelOffset := -1
	for i, w := range words {
		if w.IsChannelZero() {
			firstChannelOffset = i
			break
		}
	}
	if firstChannelOffset < 0 {
		return out
	}

	numBatches := nwords / dwordsPerBatch
	for b := 0; b < numBatches; b++ {
		for i := 0; i < channelsPerPort; i++ {
			col := (firstChannelOffset + i) % dwordsPerBatch
			idx := b*dwordsPerBatch + col
			if idx >= nwords {
				continue
			}
			w := words[idx]
			electrode := engine.NewElectrode(portIndex, i)

			if len(out.AC[electrode]) < BufferSize {
				out.AC[electrode] = append(out.AC[electrode], w.AC())
			}
			if len(out.DC[electrode]) < BufferSize {
				out.DC[electrode] = append(out.DC[electrode], w.DC())
			}
		}
	}
	return out
}

// Merge appends other's samples onto d, respecting BufferSize per
// electrode — used to combine every packet decoded within one batch push.
func (d Decoded) Merge(other Decoded) Decoded {
	for e, samples := range other.AC {
		room := BufferSize - len(d.AC[e])
		if room <= 0 {
			continue
		}
		if len(samples) > room {
			samples = samples[:room]
		}
		d.AC[e] = append(d.AC[e], samples...)
	}
	for e, samples := range other.DC {
		room := BufferSize - len(d.DC[e])
		if room <= 0 {
			continue
		}
		if len(samples) > room {
			samples = samples[:room]
		}
		d.DC[e] = append(d.DC[e], samples...)
	}
	return d
}
