package monitor

import (
	"encoding/binary"
	"math"
	"testing"
	"time"
)

func TestEncodePowerSample(t *testing.T) {
	missRate := 0.125
	misses := uint64(42)
	s := &Sample{CacheMisses: &misses, CacheMissRate: &missRate}
	elapsed := 3 * time.Millisecond

	buf := make([]byte, 256)
	n, err := EncodePowerSample(buf, s, elapsed)
	if err != nil {
		t.Fatalf("EncodePowerSample: %v", err)
	}
	if n <= footerSize {
		t.Fatalf("encoded length %d too small", n)
	}

	if got := int64(binary.LittleEndian.Uint64(buf[0:8])); got != int64(elapsed) {
		t.Errorf("elapsed = %d, want %d", got, int64(elapsed))
	}
	if valid := int32(binary.LittleEndian.Uint32(buf[8:12])); valid != 1 {
		t.Errorf("cache_misses valid flag = %d, want 1", valid)
	}
	if got := binary.LittleEndian.Uint64(buf[12:20]); got != misses {
		t.Errorf("cache_misses = %d, want %d", got, misses)
	}
	if valid := int32(binary.LittleEndian.Uint32(buf[20:24])); valid != 0 {
		t.Errorf("cache_references valid flag = %d, want 0 (unsampled)", valid)
	}

	footer := int(binary.LittleEndian.Uint32(buf[len(buf)-footerSize:]))
	if footer != n-footerSize {
		t.Errorf("footer byte count = %d, want %d", footer, n-footerSize)
	}
}

func TestEncodePowerSampleNilSample(t *testing.T) {
	buf := make([]byte, 256)
	n, err := EncodePowerSample(buf, nil, 0)
	if err != nil {
		t.Fatalf("EncodePowerSample with nil sample: %v", err)
	}
	if n <= footerSize {
		t.Fatalf("encoded length %d too small", n)
	}
	if valid := int32(binary.LittleEndian.Uint32(buf[8:12])); valid != 0 {
		t.Errorf("cache_misses valid flag = %d, want 0 for nil sample", valid)
	}
}

func TestEncodeTraceSample(t *testing.T) {
	instructions := uint64(1000)
	ipc := 1.5
	s := &Sample{Instructions: &instructions, InstructionsPerCycle: &ipc}

	buf := make([]byte, 256)
	n, err := EncodeTraceSample(buf, s)
	if err != nil {
		t.Fatalf("EncodeTraceSample: %v", err)
	}
	if n <= footerSize {
		t.Fatalf("encoded length %d too small", n)
	}

	if valid := int32(binary.LittleEndian.Uint32(buf[0:4])); valid != 1 {
		t.Errorf("instructions valid flag = %d, want 1", valid)
	}
	if got := binary.LittleEndian.Uint64(buf[4:12]); got != instructions {
		t.Errorf("instructions = %d, want %d", got, instructions)
	}
	// instructions, cycles, branch_instructions, branch_misses precede the
	// trailing instructions_per_cycle float.
	ipcOff := 4 + 8 + (4 + 8) + (4 + 8) + (4 + 8)
	if valid := int32(binary.LittleEndian.Uint32(buf[ipcOff : ipcOff+4])); valid != 1 {
		t.Errorf("instructions_per_cycle valid flag = %d, want 1", valid)
	}
	gotIPC := math.Float32frombits(binary.LittleEndian.Uint32(buf[ipcOff+4 : ipcOff+8]))
	if gotIPC != float32(ipc) {
		t.Errorf("instructions_per_cycle = %v, want %v", gotIPC, ipc)
	}
}
