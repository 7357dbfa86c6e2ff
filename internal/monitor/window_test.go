package monitor

import (
	"testing"

	"fpgasched/internal/kernel"
	"fpgasched/internal/livelist"
)

func TestEncodeDecodeOnlineRecordRoundTrip(t *testing.T) {
	rec := &OnlineRecord{
		CPUUser:   12.5,
		CPUKernel: 3.25,
		CPUIdle:   84.25,
		Window: livelist.Window{
			Initial: kernel.Timestamp{Sec: 1, Nsec: 2},
			Start:   kernel.Timestamp{Sec: 3, Nsec: 4},
			Finish:  kernel.Timestamp{Sec: 5, Nsec: 6},
		},
		Slots: [][]KernelEntry{
			{
				{Label: kernel.AES, Arrive: kernel.Timestamp{Sec: 10, Nsec: 0}, Finish: kernel.Timestamp{Sec: 20, Nsec: 0}},
				{Label: kernel.BULK, Arrive: kernel.Timestamp{Sec: 15, Nsec: 0}, Finish: kernel.Timestamp{Sec: 25, Nsec: 0}},
			},
			{},
		},
	}

	buf := make([]byte, 4096)
	n, err := EncodeOnlineRecord(buf, rec)
	if err != nil {
		t.Fatalf("EncodeOnlineRecord: %v", err)
	}
	if n <= footerSize {
		t.Fatalf("encoded length %d too small", n)
	}

	got, err := DecodeOnlineRecord(buf)
	if err != nil {
		t.Fatalf("DecodeOnlineRecord: %v", err)
	}

	if got.CPUUser != rec.CPUUser || got.CPUKernel != rec.CPUKernel || got.CPUIdle != rec.CPUIdle {
		t.Errorf("cpu fields mismatch: got %+v", got)
	}
	if got.Window != rec.Window {
		t.Errorf("window mismatch: got %+v, want %+v", got.Window, rec.Window)
	}
	if len(got.Slots) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(got.Slots))
	}
	if len(got.Slots[0]) != 2 {
		t.Fatalf("expected 2 entries in slot 0, got %d", len(got.Slots[0]))
	}
	if got.Slots[0][0].Label != kernel.AES || got.Slots[0][1].Label != kernel.BULK {
		t.Errorf("slot 0 labels mismatch: %+v", got.Slots[0])
	}
	if len(got.Slots[1]) != 0 {
		t.Errorf("expected empty slot 1, got %+v", got.Slots[1])
	}
}

func TestEncodeOnlineRecordTooSmallBuffer(t *testing.T) {
	rec := &OnlineRecord{Slots: [][]KernelEntry{{{Label: kernel.AES}}}}
	buf := make([]byte, 8)
	if _, err := EncodeOnlineRecord(buf, rec); err == nil {
		t.Fatalf("expected error for undersized buffer")
	}
}
