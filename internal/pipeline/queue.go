// Package pipeline turns filtered transcript fragments into emitted sentences:
// segmentation, a correction delay, seam suppression and normalization.
package pipeline

import "time"

// DefaultCorrectionDelay is how long a detected sentence waits before it is
// committed to the sink.
const DefaultCorrectionDelay = 800 * time.Millisecond

// Scheduler is a single-slot delayed callback. *scheduler.Timer satisfies it.
type Scheduler interface {
	Arm(d time.Duration, fn func())
	Cancel()
}

// Queue holds sentences for the correction delay. One timer covers the whole
// queue; every Enqueue restarts it. It is not safe for concurrent use and is
// expected to run on the goroutine the Scheduler fires on.
type Queue struct {
	timer   Scheduler
	delay   time.Duration
	emit    func(string)
	pending []string
}

func NewQueue(timer Scheduler, delay time.Duration, emit func(string)) *Queue {
	if delay <= 0 {
		delay = DefaultCorrectionDelay
	}
	return &Queue{timer: timer, delay: delay, emit: emit}
}

// Enqueue appends sentence and restarts the delay.
func (q *Queue) Enqueue(sentence string) {
	q.pending = append(q.pending, sentence)
	q.timer.Arm(q.delay, q.fire)
}

// fire commits the oldest sentence and waits again if more remain.
func (q *Queue) fire() {
	if len(q.pending) == 0 {
		return
	}
	next := q.pending[0]
	q.pending = q.pending[1:]
	if len(q.pending) > 0 {
		q.timer.Arm(q.delay, q.fire)
	}
	q.emit(next)
}

// Drain cancels the delay and commits everything pending, oldest first.
func (q *Queue) Drain() {
	q.timer.Cancel()
	pending := q.pending
	q.pending = nil
	for _, sentence := range pending {
		q.emit(sentence)
	}
}

// Reset cancels the delay and discards pending sentences.
func (q *Queue) Reset() {
	q.timer.Cancel()
	q.pending = nil
}

func (q *Queue) Len() int { return len(q.pending) }
