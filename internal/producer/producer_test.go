package producer

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"fpgasched/internal/dispatch"
	"fpgasched/internal/hal"
	"fpgasched/internal/kernel"
	"fpgasched/internal/livelist"
	"fpgasched/internal/slots"
	"fpgasched/internal/workerpool"
)

func writeFloat32File(t *testing.T, path string, vals []float32) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	for _, v := range vals {
		if err := binary.Write(f, binary.LittleEndian, v); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
}

func writeInt32File(t *testing.T, path string, vals []int32) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	for _, v := range vals {
		if err := binary.Write(f, binary.LittleEndian, v); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
}

func newTestDispatch(numSlots int) (*dispatch.Scheduler, *kernel.Store) {
	store := kernel.NewStore()
	slotT := slots.NewTable(numSlots, nil)
	live := livelist.New(numSlots)
	pool := workerpool.NewPool(numSlots + 1)
	backend := hal.NewSimulatedBackend(time.Millisecond)
	sched := dispatch.NewScheduler(store, kernel.DefaultNumLabels, numSlots, slotT, live, pool, backend)
	return sched, store
}

func TestRunAdmitsEveryKernelInWorkload(t *testing.T) {
	dir := t.TempDir()

	writeFloat32File(t, filepath.Join(dir, "inter_arrival_0.bin"), []float32{1, 1, 1})
	writeInt32File(t, filepath.Join(dir, "kernel_id_0.bin"), []int32{int32(kernel.AES), int32(kernel.BULK), int32(kernel.AES)})
	writeInt32File(t, filepath.Join(dir, "num_executions_0.bin"), []int32{1, 1, 1})

	sched, store := newTestDispatch(4)
	p := New(store, sched, kernel.DefaultNumLabels, 4, 1)

	if err := p.Run(dir, 0); err != nil {
		t.Fatalf("Run: %v", err)
	}

	recs := store.Drain()
	if len(recs) != 3 {
		t.Fatalf("expected 3 admitted kernels, got %d", len(recs))
	}
	for _, r := range recs {
		if !kernel.ValidCU(r.CU, 4) {
			t.Errorf("kernel %d has invalid cu %d", r.ID, r.CU)
		}
	}
	if recs[0].Label != kernel.AES || recs[1].Label != kernel.BULK || recs[2].Label != kernel.AES {
		t.Errorf("labels mismatch: %+v", recs)
	}
}

func TestRunRejectsMismatchedFileLengths(t *testing.T) {
	dir := t.TempDir()

	writeFloat32File(t, filepath.Join(dir, "inter_arrival_0.bin"), []float32{1, 1})
	writeInt32File(t, filepath.Join(dir, "kernel_id_0.bin"), []int32{int32(kernel.AES)})
	writeInt32File(t, filepath.Join(dir, "num_executions_0.bin"), []int32{1, 1})

	sched, store := newTestDispatch(4)
	p := New(store, sched, kernel.DefaultNumLabels, 4, 1)

	if err := p.Run(dir, 0); err == nil {
		t.Fatalf("expected error for mismatched input file lengths")
	}
}

func TestRunRejectsInvalidLabel(t *testing.T) {
	dir := t.TempDir()

	writeFloat32File(t, filepath.Join(dir, "inter_arrival_0.bin"), []float32{1})
	writeInt32File(t, filepath.Join(dir, "kernel_id_0.bin"), []int32{int32(kernel.DefaultNumLabels + 5)})
	writeInt32File(t, filepath.Join(dir, "num_executions_0.bin"), []int32{1})

	sched, store := newTestDispatch(4)
	p := New(store, sched, kernel.DefaultNumLabels, 4, 1)

	if err := p.Run(dir, 0); err == nil {
		t.Fatalf("expected error for out-of-range label")
	}
}

func TestPickCUBoundedBySlotCount(t *testing.T) {
	sched, store := newTestDispatch(2)
	p := New(store, sched, kernel.DefaultNumLabels, 2, 7)

	for i := 0; i < 50; i++ {
		cu := p.pickCU()
		if cu != 1 && cu != 2 {
			t.Fatalf("pickCU returned %d, want 1 or 2 (numSlots=2)", cu)
		}
	}
}
