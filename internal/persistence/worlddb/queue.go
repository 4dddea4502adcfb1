package worlddb

import (
	"sync/atomic"
	"time"
)

const DefaultQueueCapacity = 1024

// Queue is a bounded FIFO of commands with many producers and one consumer.
// The order in which sends are accepted is the order the consumer observes.
type Queue struct {
	ch chan Command

	enqueued atomic.Uint64
	dropped  atomic.Uint64
}

func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &Queue{ch: make(chan Command, capacity)}
}

// TryEnqueue never blocks; it reports false when the queue is full.
func (q *Queue) TryEnqueue(c Command) bool {
	select {
	case q.ch <- c:
		q.enqueued.Add(1)
		return true
	default:
		return false
	}
}

// Enqueue blocks while the queue is full, for at most wait (forever when
// wait <= 0). A command that cannot be queued in time is dropped.
func (q *Queue) Enqueue(c Command, wait time.Duration) bool {
	if q.TryEnqueue(c) {
		return true
	}
	if wait <= 0 {
		q.ch <- c
		q.enqueued.Add(1)
		return true
	}

	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case q.ch <- c:
		q.enqueued.Add(1)
		return true
	case <-t.C:
		q.dropped.Add(1)
		return false
	}
}

// TryDequeue never blocks; ok is false when the queue is empty. The worker
// uses Dequeue; this is for callers that poll.
func (q *Queue) TryDequeue() (c Command, ok bool) {
	select {
	case c = <-q.ch:
		return c, true
	default:
		return nil, false
	}
}

// Dequeue waits until a command is available.
func (q *Queue) Dequeue() Command {
	return <-q.ch
}

func (q *Queue) Len() int { return len(q.ch) }
func (q *Queue) Cap() int { return cap(q.ch) }
