package workerpool

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestDispatchRendezvous(t *testing.T) {
	p := NewPool(4)
	defer p.Shutdown()

	var count int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		p.Dispatch(func(arg interface{}) {
			defer wg.Done()
			atomic.AddInt32(&count, 1)
		}, nil)
	}
	wg.Wait()

	if got := atomic.LoadInt32(&count); got != 20 {
		t.Fatalf("expected 20 executed tasks, got %d", got)
	}
}

func TestIsDoneReflectsInFlightTasks(t *testing.T) {
	p := NewPool(2)
	defer p.Shutdown()

	started := make(chan struct{})
	release := make(chan struct{})
	p.Dispatch(func(arg interface{}) {
		close(started)
		<-release
	}, nil)

	<-started
	if p.IsDone() {
		t.Fatalf("expected IsDone() == false while a task is in flight")
	}
	close(release)

	deadline := time.Now().Add(time.Second)
	for !p.IsDone() {
		if time.Now().After(deadline) {
			t.Fatalf("worker never settled")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestShutdownIdempotent(t *testing.T) {
	p := NewPool(2)
	p.Shutdown()
	p.Shutdown() // must not block or panic
}
