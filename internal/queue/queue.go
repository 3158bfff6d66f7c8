// Package queue is the bounded FIFO between producers and the dispatcher.
// Unlike a persistent job queue this one is deliberately ephemeral: a turn
// that is lost on restart is simply rediscovered on the next poll.
package queue

import (
	"context"
	"errors"
	"sync"

	"github.com/hivegame/botherd/internal/bot"
)

// ErrClosed is returned once the queue has been permanently closed.
var ErrClosed = errors.New("queue closed")

// Queue is a multi-producer/single-consumer bounded FIFO. Push blocks while
// the queue is at capacity (backpressure: a burst of new positions throttles
// its producer rather than being dropped).
type Queue struct {
	ch        chan *bot.Turn
	done      chan struct{}
	closeOnce sync.Once
}

// New creates a queue holding at most capacity turns.
func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{
		ch:   make(chan *bot.Turn, capacity),
		done: make(chan struct{}),
	}
}

// Push enqueues a turn, blocking while the queue is full. It returns
// ErrClosed if the queue has been closed, or the context error if ctx is
// cancelled while waiting for capacity.
func (q *Queue) Push(ctx context.Context, t *bot.Turn) error {
	select {
	case <-q.done:
		return ErrClosed
	default:
	}

	select {
	case q.ch <- t:
		return nil
	case <-q.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pop dequeues the next turn, blocking while the queue is empty. After Close,
// Pop drains any buffered turns and then returns ErrClosed.
func (q *Queue) Pop(ctx context.Context) (*bot.Turn, error) {
	select {
	case t := <-q.ch:
		return t, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-q.done:
		select {
		case t := <-q.ch:
			return t, nil
		default:
			return nil, ErrClosed
		}
	}
}

// Close permanently closes the queue. Idempotent. Buffered turns remain
// poppable; new pushes fail with ErrClosed.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		close(q.done)
	})
}

// Len returns the number of buffered turns.
func (q *Queue) Len() int { return len(q.ch) }

// Cap returns the queue capacity.
func (q *Queue) Cap() int { return cap(q.ch) }
