package ingest

import (
	"errors"
)

// ErrQueueFull is returned by Queue.TryPush when the bounded queue has no
// free slot. Per §4.1/§7, this is a log-only condition — the sender must
// not retry or block; backpressure is absorbed by the OS socket buffer.
var ErrQueueFull = errors.New("ingest: batch queue is full")

// QueueCapacity is the bounded queue's fixed capacity (§4.1).
const QueueCapacity = 10000

// Batch is one queued unit of work: all packets accumulated for a port
// since the last push, already decoded.
type Batch struct {
	PortIndex int
	Decoded   Decoded
}

// Queue is a bounded, non-blocking multi-producer/single-consumer batch
// queue. It is the generalization, from IQ sample chunks to decoded sample
// batches, of the teacher's internal/bufpipe.Pipe: a buffered channel with
// a select/default write path so a full queue reports overflow instead of
// blocking the producer.
type Queue struct {
	ch chan Batch
}

// NewQueue constructs a Queue with the standard capacity.
func NewQueue() *Queue {
	return &Queue{ch: make(chan Batch, QueueCapacity)}
}

// TryPush attempts to enqueue a batch without blocking. It returns
// ErrQueueFull if the queue has no room.
func (q *Queue) TryPush(b Batch) error {
	select {
	case q.ch <- b:
		return nil
	default:
		return ErrQueueFull
	}
}

// Chan exposes the receive side for the consumer (the engine tick loop or
// an adapter feeding it).
func (q *Queue) Chan() <-chan Batch {
	return q.ch
}

// Close closes the underlying channel; no further TryPush calls may be
// made after Close.
func (q *Queue) Close() {
	close(q.ch)
}
