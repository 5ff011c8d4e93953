package ingest

import (
	"context"
	"log/slog"
	"runtime"
	"time"
)

// FlushInterval is the maximum time a batch is held before being pushed to
// the queue (§4.1: "≥10 ms have elapsed since the last push").
const FlushInterval = 10 * time.Millisecond

// Config parametrizes a Receiver.
type Config struct {
	// Ports lists the UDP port numbers to bind, in port-index order (port
	// index i listens on Ports[i] and decodes as chip/device index i).
	Ports []int

	ChannelsPerPort int
	DwordsPerBatch  int

	Logger *slog.Logger
}

// Receiver is the UDP ingestor: one non-blocking socket per configured
// port, drained by a level-triggered readiness poll and decoded into
// per-electrode batches pushed to a bounded Queue.
type Receiver struct {
	cfg     Config
	queue   *Queue
	sockets []*portSocket
	poller  *epollPoller
}

// NewReceiver binds one socket per configured port and wires up the
// readiness poller.
func NewReceiver(cfg Config, queue *Queue) (*Receiver, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	sockets := make([]*portSocket, 0, len(cfg.Ports))
	for i, port := range cfg.Ports {
		s, err := bindPortSocket(port, i)
		if err != nil {
			for _, opened := range sockets {
				opened.close()
			}
			return nil, err
		}
		sockets = append(sockets, s)
	}
	poller, err := newEpollPoller(sockets)
	if err != nil {
		for _, s := range sockets {
			s.close()
		}
		return nil, err
	}
	return &Receiver{cfg: cfg, queue: queue, sockets: sockets, poller: poller}, nil
}

// Close releases the poller and every bound socket.
func (r *Receiver) Close() error {
	r.poller.close()
	for _, s := range r.sockets {
		s.close()
	}
	return nil
}

// Run drains ready sockets until ctx is done, batching decoded samples per
// port and pushing to the queue on the flush cadence. Callers should run
// Run in a goroutine pinned with runtime.LockOSThread (done internally) so
// the socket set is only ever touched from this one OS thread, matching
// the spec's isolated-worker requirement without a separate process.
func (r *Receiver) Run(ctx context.Context) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	pending := make(map[int]Decoded)
	lastFlush := time.Now()
	buf := make([]byte, maxPacketSize)

	flush := func() {
		for portIndex, d := range pending {
			if err := r.queue.TryPush(Batch{PortIndex: portIndex, Decoded: d}); err != nil {
				r.cfg.Logger.Warn("ingest: queue full, batch dropped", "port_index", portIndex, "error", err)
			}
		}
		pending = make(map[int]Decoded)
		lastFlush = time.Now()
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		default:
		}

		ready, err := r.poller.wait()
		if err != nil {
			r.cfg.Logger.Error("ingest: poll error", "error", err)
			continue
		}

		for _, s := range ready {
			for {
				n, err := s.recv(buf)
				if err != nil {
					r.cfg.Logger.Error("ingest: socket error", "port_index", s.portIndex, "error", err)
					break
				}
				if n == 0 {
					break
				}
				d := DecodePacket(buf[:n], s.portIndex, r.cfg.ChannelsPerPort, r.cfg.DwordsPerBatch)
				acc, ok := pending[s.portIndex]
				if !ok {
					acc = newDecoded()
				}
				pending[s.portIndex] = acc.Merge(d)
			}
		}

		if time.Since(lastFlush) >= FlushInterval && len(pending) > 0 {
			flush()
		}
	}
}
