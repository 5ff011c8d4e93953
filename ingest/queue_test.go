package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueTryPushAndDrain(t *testing.T) {
	q := NewQueue()
	require.NoError(t, q.TryPush(Batch{PortIndex: 1}))

	select {
	case b := <-q.Chan():
		assert.Equal(t, 1, b.PortIndex)
	default:
		t.Fatal("expected a queued batch")
	}
}

func TestQueueTryPushReportsOverflow(t *testing.T) {
	q := &Queue{ch: make(chan Batch, 1)}
	require.NoError(t, q.TryPush(Batch{PortIndex: 0}))
	err := q.TryPush(Batch{PortIndex: 0})
	assert.ErrorIs(t, err, ErrQueueFull)
}
