package pools

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

var (
	ErrQueueClosed = errors.New("queue is closed")
	ErrQueueFull   = errors.New("queue is full")
)

// Policy decides what Push does when a bounded queue is full
type Policy uint8

const (
	// Block parks the producer until a consumer makes room
	Block Policy = iota
	// Reject fails the push with ErrQueueFull
	Reject
)

// ParsePolicy accepts "block" or "reject"
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(s) {
	case "", "block":
		return Block, nil
	case "reject":
		return Reject, nil
	}
	return 0, fmt.Errorf("unknown queue policy %q", s)
}

func (p Policy) String() string {
	if p == Reject {
		return "reject"
	}
	return "block"
}

// Queue is a FIFO hand-off queue between goroutines.
//
// A bound of 0 makes it unbounded: Push never blocks and nothing applies
// backpressure, so a slow consumer lets the queue grow without limit.
// Close is the poison value: consumers drain what is left, then Pop
// reports false.
type Queue[T any] struct {
	mu       sync.Mutex
	notEmpty sync.Cond
	notFull  sync.Cond

	items  []T
	head   int
	bound  int
	policy Policy
	closed bool
}

// NewQueue creates a queue; bound <= 0 means unbounded
func NewQueue[T any](bound int, policy Policy) *Queue[T] {
	if bound < 0 {
		bound = 0
	}
	q := &Queue[T]{bound: bound, policy: policy}
	q.notEmpty.L = &q.mu
	q.notFull.L = &q.mu
	return q
}

// Push appends v. It fails with ErrQueueClosed after Close and with
// ErrQueueFull when the queue is full under the Reject policy.
func (q *Queue[T]) Push(v T) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for !q.closed && q.bound > 0 && q.lenLocked() >= q.bound {
		if q.policy == Reject {
			return ErrQueueFull
		}
		q.notFull.Wait()
	}
	if q.closed {
		return ErrQueueClosed
	}

	q.items = append(q.items, v)
	q.notEmpty.Signal()
	return nil
}

// Pop blocks until an item is available or the queue is closed and drained
func (q *Queue[T]) Pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.lenLocked() == 0 {
		if q.closed {
			var zero T
			return zero, false
		}
		q.notEmpty.Wait()
	}

	var zero T
	v := q.items[q.head]
	q.items[q.head] = zero
	q.head++
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	} else if q.head > 64 && q.head*2 > len(q.items) {
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}

	if q.bound > 0 {
		q.notFull.Signal()
	}
	return v, true
}

// Len is the number of queued items
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lenLocked()
}

// Close wakes every blocked producer and consumer. It is idempotent.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
}

func (q *Queue[T]) lenLocked() int {
	return len(q.items) - q.head
}
