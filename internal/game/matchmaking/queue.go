// Package matchmaking pairs anonymous players in FIFO order. The queue
// holds bare connection handles: a waiter has no session, no seat, and no
// token until the moment a second player arrives.
package matchmaking

import (
	"errors"
	"sync"

	"github.com/cory-johannsen/gridlock/internal/game/session"
)

// ErrAlreadyQueued means the connection is already waiting for a match.
var ErrAlreadyQueued = errors.New("already waiting for a match")

// Queue is a FIFO of connections awaiting pairing. A handle appears at
// most once. All methods are safe for concurrent use.
type Queue struct {
	mu      sync.Mutex
	order   []session.HandleID
	waiting map[session.HandleID]bool
}

// NewQueue creates an empty Queue.
func NewQueue() *Queue {
	return &Queue{
		waiting: make(map[session.HandleID]bool),
	}
}

// Enqueue adds conn to the back of the queue.
//
// Postcondition: Returns ErrAlreadyQueued if conn is already waiting.
func (q *Queue) Enqueue(conn session.HandleID) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.waiting[conn] {
		return ErrAlreadyQueued
	}
	q.order = append(q.order, conn)
	q.waiting[conn] = true
	return nil
}

// DequeueOldest removes and returns the longest-waiting connection.
//
// Postcondition: Returns (handle, true) or (0, false) when empty.
func (q *Queue) DequeueOldest() (session.HandleID, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.order) == 0 {
		return 0, false
	}
	conn := q.order[0]
	q.order = q.order[1:]
	delete(q.waiting, conn)
	return conn, true
}

// Remove takes conn out of the queue if present. Removing an absent
// handle is a no-op: the match may already have happened, or the handle
// was never queued.
//
// Postcondition: Returns true when conn was queued.
func (q *Queue) Remove(conn session.HandleID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.waiting[conn] {
		return false
	}
	delete(q.waiting, conn)
	for i, h := range q.order {
		if h == conn {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
	return true
}

// Waiting reports whether conn is queued.
func (q *Queue) Waiting(conn session.HandleID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.waiting[conn]
}

// Len returns the number of queued connections.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.order)
}
