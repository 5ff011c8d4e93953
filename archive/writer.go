package archive

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"ephys.tools/engine"
)

// BufferSize is the per-electrode append-buffer capacity, matching
// nwb_file_writer.py's BUFFER_SIZE (262144 f32 samples, 1MiB per
// channel): larger buffers cause UI pauses during writes, smaller ones
// only help up to this point.
const BufferSize = 262_144

// WriterConfig configures a Writer.
type WriterConfig struct {
	Dir            string
	NumElectrodes  int
	CanSampleDC    bool
	SamplesPerSec  float64
	Resolution     float64
	Conversion     float64
	DeviceNotes    json.RawMessage
	ChannelBacklog int // bounded channel depth for the background writer
}

type chunkJob struct {
	name    string
	samples []float32
}

// Writer is a Step/Finalizer that archives every electrode's per-tick
// samples to its on-disk Dataset, double-buffering per-electrode writes
// and handing full buffers off to a single background writer goroutine
// (a bounded channel of chunk handoffs) rather than spawning a thread per
// tick, per §9 Design Notes' concurrent-writer hazard (grounded on
// nwb_file_writer.py's do_step/write_to_file split).
type Writer struct {
	id     string
	config WriterConfig

	datasets map[string]*Dataset

	mu         sync.Mutex
	buffers    map[string][]float32
	bufferUsed map[string]int

	jobs chan chunkJob
	wg   sync.WaitGroup
	done chan struct{}
}

// NewWriter creates the archive directory, its metadata header, and a
// Dataset per electrode series, then starts the background writer.
func NewWriter(id string, config WriterConfig) (*Writer, error) {
	if err := os.MkdirAll(config.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("archive: create dir: %w", err)
	}
	if err := writeHeader(config); err != nil {
		return nil, err
	}

	w := &Writer{
		id:         id,
		config:     config,
		datasets:   make(map[string]*Dataset),
		buffers:    make(map[string][]float32),
		bufferUsed: make(map[string]int),
		done:       make(chan struct{}),
	}

	backlog := config.ChannelBacklog
	if backlog <= 0 {
		backlog = 8
	}
	w.jobs = make(chan chunkJob, backlog)

	for i := 0; i < config.NumElectrodes; i++ {
		electrode := engine.NewElectrode(0, i)
		if err := w.openSeries(electrode.ACName()); err != nil {
			return nil, err
		}
		if config.CanSampleDC {
			if err := w.openSeries(electrode.DCName()); err != nil {
				return nil, err
			}
		}
	}

	w.wg.Add(1)
	go w.runWriter()

	return w, nil
}

func (w *Writer) openSeries(name string) error {
	ds, err := OpenDataset(w.config.Dir, name)
	if err != nil {
		return err
	}
	w.datasets[name] = ds
	w.buffers[name] = make([]float32, BufferSize)
	return nil
}

func writeHeader(config WriterConfig) error {
	header := struct {
		NumElectrodes int             `json:"numElectrodes"`
		CanSampleDC   bool            `json:"canSampleDC"`
		SamplesPerSec float64         `json:"samplesPerSec"`
		Resolution    float64         `json:"resolution"`
		Conversion    float64         `json:"conversion"`
		Notes         json.RawMessage `json:"notes,omitempty"`
	}{
		NumElectrodes: config.NumElectrodes,
		CanSampleDC:   config.CanSampleDC,
		SamplesPerSec: config.SamplesPerSec,
		Resolution:    config.Resolution,
		Conversion:    config.Conversion,
		Notes:         config.DeviceNotes,
	}

	data, err := json.MarshalIndent(header, "", "  ")
	if err != nil {
		return fmt.Errorf("archive: marshal header: %w", err)
	}
	return os.WriteFile(filepath.Join(config.Dir, "meta.json"), data, 0o644)
}

func (w *Writer) runWriter() {
	defer w.wg.Done()
	for job := range w.jobs {
		ds, ok := w.datasets[job.name]
		if !ok {
			continue
		}
		if err := ds.AppendChunk(job.samples); err != nil {
			// The writer goroutine has no channel back to the tick loop;
			// a failed chunk write is fatal to that series' archive but
			// must not block the engine, so it's dropped here.
			continue
		}
	}
}

func (w *Writer) ID() string { return w.id }

// DoStep accepts the "electrodes" aggregate dictionary (map[string]
// []float32) produced each tick and appends each series' samples into
// its double buffer, handing a full buffer to the background writer and
// copying the overflow tail into a fresh one.
func (w *Writer) DoStep(input any) (any, error) {
	channels, ok := input.(map[string][]float32)
	if !ok || len(channels) == 0 {
		return nil, nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	for name := range w.datasets {
		samples, ok := channels[name]
		if !ok || len(samples) == 0 {
			continue
		}

		buf := w.buffers[name]
		used := w.bufferUsed[name]

		if used+len(samples) > BufferSize {
			numToCopy := BufferSize - used
			copy(buf[used:], samples[:numToCopy])

			full := make([]float32, BufferSize)
			copy(full, buf)
			w.jobs <- chunkJob{name: name, samples: full}

			fresh := make([]float32, BufferSize)
			numLeftover := len(samples) - numToCopy
			copy(fresh, samples[numToCopy:])
			w.buffers[name] = fresh
			w.bufferUsed[name] = numLeftover
		} else {
			copy(buf[used:used+len(samples)], samples)
			w.bufferUsed[name] = used + len(samples)
		}
	}

	return nil, nil
}

// Finalize flushes every series' residual partial buffer and stops the
// background writer, blocking until all pending chunks are durably
// written.
func (w *Writer) Finalize() error {
	w.mu.Lock()
	for name, used := range w.bufferUsed {
		if used == 0 {
			continue
		}
		residual := append([]float32(nil), w.buffers[name][:used]...)
		w.jobs <- chunkJob{name: name, samples: residual}
		w.bufferUsed[name] = 0
	}
	w.mu.Unlock()

	close(w.jobs)
	w.wg.Wait()

	var firstErr error
	for _, ds := range w.datasets {
		if err := ds.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Dataset returns the named series' Dataset, for tests and tooling that
// need to read back what was archived.
func (w *Writer) Dataset(name string) (*Dataset, bool) {
	ds, ok := w.datasets[name]
	return ds, ok
}
