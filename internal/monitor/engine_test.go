package monitor

import (
	"context"
	"testing"
	"time"

	"fpgasched/internal/dispatch"
	"fpgasched/internal/hal"
	"fpgasched/internal/kernel"
	"fpgasched/internal/livelist"
	"fpgasched/internal/slots"
	"fpgasched/internal/workerpool"
)

type fakeSampler struct{}

func (fakeSampler) Sample() (user, kernelPct, idle float32, err error) {
	return 10, 5, 85, nil
}

func TestEngineRunWritesRecordsWithoutTraining(t *testing.T) {
	online, err := NewRing(t.TempDir(), 2, 4096)
	if err != nil {
		t.Fatalf("NewRing: %v", err)
	}
	defer online.Close(true)
	power, err := NewRing(t.TempDir(), 2, 4096)
	if err != nil {
		t.Fatalf("NewRing: %v", err)
	}
	defer power.Close(true)
	traces, err := NewRing(t.TempDir(), 2, 4096)
	if err != nil {
		t.Fatalf("NewRing: %v", err)
	}
	defer traces.Close(true)

	live := livelist.New(2)
	store := kernel.NewStore()
	slotT := slots.NewTable(2, nil)
	pool := workerpool.NewPool(3)
	defer pool.Shutdown()
	backend := hal.NewSimulatedBackend(time.Millisecond)
	sched := dispatch.NewScheduler(store, kernel.DefaultNumLabels, 2, slotT, live, pool, backend)

	eng := NewEngine(online, power, traces, live, sched, fakeSampler{}, nil, 2, 20*time.Millisecond, 0, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Millisecond)
	defer cancel()

	err = eng.Run(ctx)
	if err == nil {
		t.Fatalf("expected Run to return context deadline error")
	}

	rec, err := DecodeOnlineRecord(online.Current())
	if err != nil {
		t.Fatalf("DecodeOnlineRecord: %v", err)
	}
	if len(rec.Slots) != 2 {
		t.Errorf("expected 2 slots in record, got %d", len(rec.Slots))
	}
}
