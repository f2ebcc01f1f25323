package client

import (
	"sync"

	"github.com/dcrodman/warpserver/internal/core/frame"
)

// Priority selects which outbound queue a message goes on.
type Priority int

const (
	LowPriority Priority = iota
	HighPriority
)

func (p Priority) String() string {
	if p == HighPriority {
		return "high"
	}
	return "low"
}

// sendQueue holds the frames waiting to be written to one connection. Frames
// come out in strict order: high priority, then the remaining chunks of a split
// message, then low priority. Low priority messages too big for a single frame
// are split when they are dequeued.
type sendQueue struct {
	mu     sync.Mutex
	wake   chan struct{}
	high   []frame.Frame
	split  []frame.Frame
	low    []frame.Frame
	closed bool
}

func newSendQueue() *sendQueue {
	return &sendQueue{wake: make(chan struct{}, 1)}
}

// push adds f to the queue for p. It reports false once the queue is closed.
func (q *sendQueue) push(f frame.Frame, p Priority) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	if p == HighPriority {
		q.high = append(q.high, f)
	} else {
		q.low = append(q.low, f)
	}
	q.mu.Unlock()

	q.signal()
	return true
}

func (q *sendQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// pop returns the next frame to write, or false if nothing is queued.
func (q *sendQueue) pop() (frame.Frame, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	switch {
	case len(q.high) > 0:
		f := q.high[0]
		q.high = q.high[1:]
		return f, true
	case len(q.split) > 0:
		f := q.split[0]
		q.split = q.split[1:]
		return f, true
	case len(q.low) > 0 && !q.closed:
		f := q.low[0]
		q.low = q.low[1:]
		if len(f.Payload) <= frame.SplitMessageLength {
			return f, true
		}
		frames := frame.Split(f.Type, f.Payload)
		q.split = append(q.split, frames[1:]...)
		return frames[0], true
	}
	return frame.Frame{}, false
}

// close stops the queue from accepting frames and discards everything that is
// not high priority. Frames already in the high queue are still returned by pop.
func (q *sendQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.low = nil
	q.split = nil
	q.mu.Unlock()

	q.signal()
}

func (q *sendQueue) isClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Len returns the number of frames waiting in each queue.
func (q *sendQueue) Len() (high, split, low int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.high), len(q.split), len(q.low)
}
