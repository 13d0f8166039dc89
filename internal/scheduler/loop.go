// Package scheduler provides a serial task loop and a single-slot timer whose
// callbacks run on that loop. State touched only from loop tasks needs no
// further locking.
package scheduler

import (
	"errors"
	"sync"
)

var ErrClosed = errors.New("scheduler loop closed")

// Loop runs posted tasks one at a time on a dedicated goroutine.
type Loop struct {
	tasks chan func()
	quit  chan struct{}
	done  chan struct{}

	// closed is set under the write lock, so no send can follow the final drain
	mu     sync.RWMutex
	closed bool
}

func NewLoop(backlog int) *Loop {
	if backlog <= 0 {
		backlog = 64
	}
	l := &Loop{
		tasks: make(chan func(), backlog),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *Loop) run() {
	defer close(l.done)
	for {
		select {
		case task := <-l.tasks:
			task()
		case <-l.quit:
			// finish what was queued before Close
			for {
				select {
				case task := <-l.tasks:
					task()
				default:
					return
				}
			}
		}
	}
}

// Post queues fn for execution and returns without waiting. It blocks only
// while the backlog is full.
func (l *Loop) Post(fn func()) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return ErrClosed
	}
	l.tasks <- fn
	return nil
}

// Do runs fn on the loop and waits for it to return.
func (l *Loop) Do(fn func()) error {
	finished := make(chan struct{})
	if err := l.Post(func() {
		defer close(finished)
		fn()
	}); err != nil {
		return err
	}
	select {
	case <-finished:
		return nil
	case <-l.done:
		select {
		case <-finished:
			return nil
		default:
			return ErrClosed
		}
	}
}

// Close stops accepting tasks, runs the ones already queued and waits for the
// loop goroutine to exit.
func (l *Loop) Close() {
	l.mu.Lock()
	if !l.closed {
		l.closed = true
		close(l.quit)
	}
	l.mu.Unlock()
	<-l.done
}
