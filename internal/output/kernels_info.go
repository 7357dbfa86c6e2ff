// Package output implements spec §6's "Filesystem outputs": a packed
// binary flush of every admitted KernelRecord, in the same field-by-field
// little-endian style window.go uses for online records.
package output

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"

	"fpgasched/internal/kernel"
)

// recordSize is the fixed wire size of one packed KernelRecord: four int32
// fields (id, label, executions, cu), one int64 (intended_arrival_ms), six
// (sec, nsec) int64 pairs (commanded_arrival, initial_time,
// measured_arrival, measured_finish, measured_pre_execution,
// measured_post_execution), and one uint32 (slot_mask, always 0 at flush
// time since every slot is released by shutdown).
const recordSize = 4*4 + 8 + 6*2*8 + 4

// WriteKernelsInfo writes records in definition order to path, creating or
// truncating the file (spec §6: "kernels_info.bin written at shutdown — a
// packed array of KernelRecord in definition order").
func WriteKernelsInfo(path string, records []*kernel.KernelRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("output: create %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, r := range records {
		if err := writeRecord(w, r); err != nil {
			return fmt.Errorf("output: write kernel %d: %w", r.ID, err)
		}
	}
	return w.Flush()
}

func writeRecord(w *bufio.Writer, r *kernel.KernelRecord) error {
	var buf [recordSize]byte
	off := 0

	putInt32 := func(v int32) {
		binary.LittleEndian.PutUint32(buf[off:], uint32(v))
		off += 4
	}
	putInt64 := func(v int64) {
		binary.LittleEndian.PutUint64(buf[off:], uint64(v))
		off += 8
	}
	putTimestamp := func(t kernel.Timestamp) {
		putInt64(t.Sec)
		putInt64(t.Nsec)
	}

	putInt32(int32(r.ID))
	putInt32(int32(r.Label))
	putInt32(int32(r.Executions))
	putInt32(int32(r.CU))
	putInt64(r.IntendedArrivalMs)
	putTimestamp(r.CommandedArrival)
	putTimestamp(r.InitialTime)
	putTimestamp(r.MeasuredArrival)
	putTimestamp(r.MeasuredFinish)
	putTimestamp(r.MeasuredPreExecution)
	putTimestamp(r.MeasuredPostExecution)
	binary.LittleEndian.PutUint32(buf[off:], r.SlotMask)
	off += 4

	if off != recordSize {
		return fmt.Errorf("output: internal layout mismatch: wrote %d bytes, want %d", off, recordSize)
	}

	_, err := w.Write(buf[:])
	return err
}

// ReadKernelsInfo parses a file written by WriteKernelsInfo, used by tests
// and by offline analysis tooling to round-trip the flushed records.
func ReadKernelsInfo(path string) ([]*kernel.KernelRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("output: read %s: %w", path, err)
	}
	if len(data)%recordSize != 0 {
		return nil, fmt.Errorf("output: %s length %d is not a multiple of record size %d", path, len(data), recordSize)
	}

	n := len(data) / recordSize
	out := make([]*kernel.KernelRecord, n)
	for i := 0; i < n; i++ {
		rec, err := readRecord(data[i*recordSize : (i+1)*recordSize])
		if err != nil {
			return nil, err
		}
		out[i] = rec
	}
	return out, nil
}

func readRecord(buf []byte) (*kernel.KernelRecord, error) {
	off := 0
	getInt32 := func() int32 {
		v := int32(binary.LittleEndian.Uint32(buf[off:]))
		off += 4
		return v
	}
	getInt64 := func() int64 {
		v := int64(binary.LittleEndian.Uint64(buf[off:]))
		off += 8
		return v
	}
	getTimestamp := func() kernel.Timestamp {
		return kernel.Timestamp{Sec: getInt64(), Nsec: getInt64()}
	}

	r := &kernel.KernelRecord{}
	r.ID = int(getInt32())
	r.Label = kernel.Label(getInt32())
	r.Executions = int(getInt32())
	r.CU = int(getInt32())
	r.IntendedArrivalMs = getInt64()
	r.CommandedArrival = getTimestamp()
	r.InitialTime = getTimestamp()
	r.MeasuredArrival = getTimestamp()
	r.MeasuredFinish = getTimestamp()
	r.MeasuredPreExecution = getTimestamp()
	r.MeasuredPostExecution = getTimestamp()
	r.SlotMask = binary.LittleEndian.Uint32(buf[off:])
	off += 4

	return r, nil
}
