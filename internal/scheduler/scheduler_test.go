package scheduler

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLoopRunsTasksInOrder(t *testing.T) {
	l := NewLoop(8)
	t.Cleanup(l.Close)

	var got []int
	for i := 0; i < 5; i++ {
		i := i
		if err := l.Post(func() { got = append(got, i) }); err != nil {
			t.Fatalf("post: %v", err)
		}
	}
	if err := l.Do(func() {}); err != nil {
		t.Fatalf("do: %v", err)
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("tasks ran out of order: %v", got)
		}
	}
	if len(got) != 5 {
		t.Fatalf("expected 5 tasks, got %d", len(got))
	}
}

func TestLoopRejectsAfterClose(t *testing.T) {
	l := NewLoop(1)
	l.Close()
	if err := l.Post(func() {}); err != ErrClosed {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if err := l.Do(func() {}); err != ErrClosed {
		t.Fatalf("expected ErrClosed from Do, got %v", err)
	}
}

func TestLoopRunsEveryAcceptedTask(t *testing.T) {
	for round := 0; round < 50; round++ {
		l := NewLoop(2)
		var accepted, ran atomic.Int64
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 20; j++ {
					if err := l.Post(func() { ran.Add(1) }); err != nil {
						return
					}
					accepted.Add(1)
				}
			}()
		}
		l.Close()
		wg.Wait()
		if ran.Load() != accepted.Load() {
			t.Fatalf("round %d: %d tasks accepted but %d ran", round, accepted.Load(), ran.Load())
		}
	}
}

func TestTimerFiresOnLoop(t *testing.T) {
	l := NewLoop(8)
	t.Cleanup(l.Close)

	fired := make(chan struct{})
	timer := l.NewTimer()
	timer.Arm(10*time.Millisecond, func() { close(fired) })
	if !timer.Armed() {
		t.Fatal("expected timer to report armed")
	}

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
	if err := l.Do(func() {}); err != nil {
		t.Fatal(err)
	}
	if timer.Armed() {
		t.Fatal("expected timer disarmed after firing")
	}
}

func TestTimerRearmReplacesPending(t *testing.T) {
	l := NewLoop(8)
	t.Cleanup(l.Close)

	var first, second atomic.Int32
	done := make(chan struct{})
	timer := l.NewTimer()
	timer.Arm(20*time.Millisecond, func() { first.Add(1) })
	timer.Arm(40*time.Millisecond, func() {
		second.Add(1)
		close(done)
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("rearmed timer did not fire")
	}
	time.Sleep(30 * time.Millisecond)
	if first.Load() != 0 {
		t.Fatal("replaced callback must not run")
	}
	if second.Load() != 1 {
		t.Fatalf("expected one fire, got %d", second.Load())
	}
}

func TestTimerCancel(t *testing.T) {
	l := NewLoop(8)
	t.Cleanup(l.Close)

	var fired atomic.Bool
	timer := l.NewTimer()
	timer.Arm(10*time.Millisecond, func() { fired.Store(true) })
	timer.Cancel()
	time.Sleep(40 * time.Millisecond)
	_ = l.Do(func() {})
	if fired.Load() {
		t.Fatal("canceled timer fired")
	}
	if timer.Armed() {
		t.Fatal("canceled timer reports armed")
	}
}
