package dispatch

import (
	"context"
	"testing"
	"time"

	"fpgasched/internal/hal"
	"fpgasched/internal/kernel"
	"fpgasched/internal/livelist"
	"fpgasched/internal/slots"
	"fpgasched/internal/workerpool"
)

func newTestScheduler(numSlots int) (*Scheduler, *kernel.Store) {
	store := kernel.NewStore()
	slotT := slots.NewTable(numSlots, nil)
	live := livelist.New(numSlots)
	pool := workerpool.NewPool(numSlots + 1)
	backend := hal.NewSimulatedBackend(time.Millisecond)
	sched := NewScheduler(store, kernel.DefaultNumLabels, numSlots, slotT, live, pool, backend)
	return sched, store
}

func mustAppend(t *testing.T, store *kernel.Store, label kernel.Label, cu, executions int) *kernel.KernelRecord {
	t.Helper()
	rec, err := kernel.NewKernelRecord(0, label, kernel.DefaultNumLabels, executions, cu, 0, kernel.Now(), kernel.Now())
	if err != nil {
		t.Fatalf("NewKernelRecord: %v", err)
	}
	return store.Append(rec)
}

func TestRunDispatchesAllAdmittedKernels(t *testing.T) {
	sched, store := newTestScheduler(4)
	defer sched.pool.Shutdown()

	for i := 0; i < 5; i++ {
		mustAppend(t, store, kernel.AES, 1, 1)
		sched.NotifyAppended()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := sched.Run(ctx, 5); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for sched.FreeSlots() != 4 {
		if time.Now().After(deadline) {
			t.Fatalf("free slots never returned to full: got %d", sched.FreeSlots())
		}
		time.Sleep(time.Millisecond)
	}
}

func TestRunRespectsDuplicationGating(t *testing.T) {
	sched, store := newTestScheduler(4)
	defer sched.pool.Shutdown()

	// Two AES kernels of width 1: the second must not dispatch until the
	// first's label count drops back to zero, since duplication gating
	// forbids two live kernels sharing a label (spec §4.1).
	mustAppend(t, store, kernel.AES, 1, 50)
	mustAppend(t, store, kernel.AES, 1, 1)
	sched.NotifyAppended()
	sched.NotifyAppended()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := sched.Run(ctx, 2); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
}

func TestRunBlocksWhenNoFreeSlots(t *testing.T) {
	sched, store := newTestScheduler(2)
	defer sched.pool.Shutdown()

	mustAppend(t, store, kernel.AES, 2, 25)
	mustAppend(t, store, kernel.BULK, 1, 1)
	sched.NotifyAppended()
	sched.NotifyAppended()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := sched.Run(ctx, 2); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
}

func TestSetModeTrainPausesDispatch(t *testing.T) {
	sched, store := newTestScheduler(4)
	defer sched.pool.Shutdown()

	sched.SetMode(Train)
	mustAppend(t, store, kernel.AES, 1, 1)
	sched.NotifyAppended()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	if err := sched.Run(ctx, 1); err == nil {
		t.Fatalf("expected Run to block (context deadline) while in TRAIN mode")
	}

	sched.SetMode(Execution)
	ctx2, cancel2 := context.WithTimeout(context.Background(), time.Second)
	defer cancel2()
	if err := sched.Run(ctx2, 1); err != nil {
		t.Fatalf("Run after switching back to EXECUTION: %v", err)
	}
}
