package matchmaking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/gridlock/internal/game/session"
)

func TestFIFOOrder(t *testing.T) {
	q := NewQueue()
	require.NoError(t, q.Enqueue(1))
	require.NoError(t, q.Enqueue(2))
	require.NoError(t, q.Enqueue(3))

	conn, ok := q.DequeueOldest()
	require.True(t, ok)
	assert.Equal(t, session.HandleID(1), conn)

	conn, ok = q.DequeueOldest()
	require.True(t, ok)
	assert.Equal(t, session.HandleID(2), conn)

	assert.Equal(t, 1, q.Len())
}

func TestDequeueEmpty(t *testing.T) {
	q := NewQueue()
	_, ok := q.DequeueOldest()
	assert.False(t, ok)
}

func TestEnqueueDuplicate(t *testing.T) {
	q := NewQueue()
	require.NoError(t, q.Enqueue(1))
	assert.ErrorIs(t, q.Enqueue(1), ErrAlreadyQueued)
	assert.Equal(t, 1, q.Len())
}

func TestRemove(t *testing.T) {
	q := NewQueue()
	require.NoError(t, q.Enqueue(1))
	require.NoError(t, q.Enqueue(2))
	require.NoError(t, q.Enqueue(3))

	assert.True(t, q.Remove(2))
	assert.False(t, q.Waiting(2))
	assert.Equal(t, 2, q.Len())

	// Removing an absent handle is a silent no-op.
	assert.False(t, q.Remove(2))
	assert.False(t, q.Remove(99))

	// Order of the rest is preserved.
	conn, _ := q.DequeueOldest()
	assert.Equal(t, session.HandleID(1), conn)
	conn, _ = q.DequeueOldest()
	assert.Equal(t, session.HandleID(3), conn)
}

func TestRequeueAfterDequeue(t *testing.T) {
	q := NewQueue()
	require.NoError(t, q.Enqueue(1))
	conn, ok := q.DequeueOldest()
	require.True(t, ok)
	require.Equal(t, session.HandleID(1), conn)

	// The handle may wait again once it has been matched out.
	assert.NoError(t, q.Enqueue(1))
	assert.True(t, q.Waiting(1))
}
