package output

import (
	"path/filepath"
	"testing"

	"fpgasched/internal/kernel"
)

func TestWriteReadKernelsInfoRoundTrip(t *testing.T) {
	records := []*kernel.KernelRecord{
		{
			ID:               0,
			Label:            kernel.AES,
			Executions:       5,
			CU:               2,
			IntendedArrivalMs: 10,
			CommandedArrival: kernel.Timestamp{Sec: 1, Nsec: 2},
			InitialTime:      kernel.Timestamp{Sec: 0, Nsec: 0},
			MeasuredArrival:  kernel.Timestamp{Sec: 1, Nsec: 3},
			MeasuredFinish:   kernel.Timestamp{Sec: 2, Nsec: 0},
			MeasuredPreExecution:  kernel.Timestamp{Sec: 1, Nsec: 4},
			MeasuredPostExecution: kernel.Timestamp{Sec: 1, Nsec: 9},
			SlotMask:         0,
		},
		{
			ID:               1,
			Label:            kernel.BULK,
			Executions:       1,
			CU:               1,
			IntendedArrivalMs: 20,
			CommandedArrival: kernel.Timestamp{Sec: 2, Nsec: 0},
			InitialTime:      kernel.Timestamp{Sec: 0, Nsec: 0},
			MeasuredArrival:  kernel.FarFuture,
			MeasuredFinish:   kernel.FarFuture,
			MeasuredPreExecution:  kernel.FarFuture,
			MeasuredPostExecution: kernel.FarFuture,
			SlotMask:         0,
		},
	}

	path := filepath.Join(t.TempDir(), "kernels_info.bin")
	if err := WriteKernelsInfo(path, records); err != nil {
		t.Fatalf("WriteKernelsInfo: %v", err)
	}

	got, err := ReadKernelsInfo(path)
	if err != nil {
		t.Fatalf("ReadKernelsInfo: %v", err)
	}
	if len(got) != len(records) {
		t.Fatalf("expected %d records, got %d", len(records), len(got))
	}
	for i := range records {
		if *got[i] != *records[i] {
			t.Errorf("record %d mismatch: got %+v, want %+v", i, got[i], records[i])
		}
	}
}
