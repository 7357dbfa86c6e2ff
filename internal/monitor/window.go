// window.go implements the online-record tagged-stream framing of spec §6
// exactly: a fixed CPU/window header followed by, for each slot, a
// tag-terminated run of kernel entries. It writes and reads directly
// against the byte slice backing a Ring segment (golang.org/x/sys/unix's
// mmap region), which is why the encoder takes a []byte rather than an
// io.Writer: the last word of the segment must end up holding the byte
// count actually used (spec §6 "last word... holds the count of valid
// bytes"), which only the encoder itself can compute.
package monitor

import (
	"encoding/binary"
	"fmt"
	"math"

	"fpgasched/internal/kernel"
	"fpgasched/internal/livelist"
)

const footerSize = 4 // i32 byte count, spec §6

// KernelEntry is one (label, arrival, finish) tuple attributed to a slot
// within a window (spec §6 online-record framing, the inner "repeat"
// block).
type KernelEntry struct {
	Label  kernel.Label
	Arrive kernel.Timestamp
	Finish kernel.Timestamp
}

// OnlineRecord is one window's worth of monitoring output: the CPU
// utilization triple, the window bounds, and per-slot kernel entries
// (spec §3 MonitorWindow + §6 online-record framing).
type OnlineRecord struct {
	CPUUser   float32
	CPUKernel float32
	CPUIdle   float32
	Window    livelist.Window
	Slots     [][]KernelEntry
}

// EncodeOnlineRecord writes rec into buf using spec §6's exact wire
// layout and stamps the trailing 4-byte valid-length footer. It returns
// the number of bytes written including the footer, or an error if buf is
// too small.
func EncodeOnlineRecord(buf []byte, rec *OnlineRecord) (int, error) {
	off := 0
	put := func(v interface{}) error {
		n := binary.Size(v)
		if off+n > len(buf)-footerSize {
			return fmt.Errorf("monitor: online record does not fit in segment (need at least %d more bytes)", n)
		}
		if err := writeLE(buf[off:off+n], v); err != nil {
			return err
		}
		off += n
		return nil
	}

	if err := put(rec.CPUUser); err != nil {
		return 0, err
	}
	if err := put(rec.CPUKernel); err != nil {
		return 0, err
	}
	if err := put(rec.CPUIdle); err != nil {
		return 0, err
	}
	if err := put(rec.Window.Initial.Sec); err != nil {
		return 0, err
	}
	if err := put(rec.Window.Initial.Nsec); err != nil {
		return 0, err
	}
	if err := put(rec.Window.Start.Sec); err != nil {
		return 0, err
	}
	if err := put(rec.Window.Start.Nsec); err != nil {
		return 0, err
	}
	if err := put(rec.Window.Finish.Sec); err != nil {
		return 0, err
	}
	if err := put(rec.Window.Finish.Nsec); err != nil {
		return 0, err
	}
	if err := put(int32(len(rec.Slots))); err != nil {
		return 0, err
	}

	for _, entries := range rec.Slots {
		for _, e := range entries {
			if err := put(int32(1)); err != nil {
				return 0, err
			}
			if err := put(int32(e.Label)); err != nil {
				return 0, err
			}
			if err := put(e.Arrive.Sec); err != nil {
				return 0, err
			}
			if err := put(e.Arrive.Nsec); err != nil {
				return 0, err
			}
			if err := put(e.Finish.Sec); err != nil {
				return 0, err
			}
			if err := put(e.Finish.Nsec); err != nil {
				return 0, err
			}
		}
		if err := put(int32(0)); err != nil {
			return 0, err
		}
	}

	binary.LittleEndian.PutUint32(buf[len(buf)-footerSize:], uint32(off))
	return off + footerSize, nil
}

// DecodeOnlineRecord reads back a record framed by EncodeOnlineRecord,
// trusting the segment's footer for the valid-byte count.
func DecodeOnlineRecord(buf []byte) (*OnlineRecord, error) {
	if len(buf) < footerSize {
		return nil, fmt.Errorf("monitor: segment too small to hold a footer")
	}
	validLen := int(binary.LittleEndian.Uint32(buf[len(buf)-footerSize:]))
	if validLen < 0 || validLen > len(buf)-footerSize {
		return nil, fmt.Errorf("monitor: corrupt footer byte count %d", validLen)
	}
	data := buf[:validLen]

	off := 0
	get := func(v interface{}) error {
		n := binary.Size(v)
		if off+n > len(data) {
			return fmt.Errorf("monitor: truncated online record")
		}
		if err := readLE(data[off:off+n], v); err != nil {
			return err
		}
		off += n
		return nil
	}

	rec := &OnlineRecord{}
	if err := get(&rec.CPUUser); err != nil {
		return nil, err
	}
	if err := get(&rec.CPUKernel); err != nil {
		return nil, err
	}
	if err := get(&rec.CPUIdle); err != nil {
		return nil, err
	}
	if err := get(&rec.Window.Initial.Sec); err != nil {
		return nil, err
	}
	if err := get(&rec.Window.Initial.Nsec); err != nil {
		return nil, err
	}
	if err := get(&rec.Window.Start.Sec); err != nil {
		return nil, err
	}
	if err := get(&rec.Window.Start.Nsec); err != nil {
		return nil, err
	}
	if err := get(&rec.Window.Finish.Sec); err != nil {
		return nil, err
	}
	if err := get(&rec.Window.Finish.Nsec); err != nil {
		return nil, err
	}

	var slotCount int32
	if err := get(&slotCount); err != nil {
		return nil, err
	}

	rec.Slots = make([][]KernelEntry, slotCount)
	for s := int32(0); s < slotCount; s++ {
		for {
			var tag int32
			if err := get(&tag); err != nil {
				return nil, err
			}
			if tag == 0 {
				break
			}
			var e KernelEntry
			var label int32
			if err := get(&label); err != nil {
				return nil, err
			}
			e.Label = kernel.Label(label)
			if err := get(&e.Arrive.Sec); err != nil {
				return nil, err
			}
			if err := get(&e.Arrive.Nsec); err != nil {
				return nil, err
			}
			if err := get(&e.Finish.Sec); err != nil {
				return nil, err
			}
			if err := get(&e.Finish.Nsec); err != nil {
				return nil, err
			}
			rec.Slots[s] = append(rec.Slots[s], e)
		}
	}

	return rec, nil
}

func writeLE(dst []byte, v interface{}) error {
	switch val := v.(type) {
	case float32:
		binary.LittleEndian.PutUint32(dst, math.Float32bits(val))
	case int32:
		binary.LittleEndian.PutUint32(dst, uint32(val))
	case int64:
		binary.LittleEndian.PutUint64(dst, uint64(val))
	case uint64:
		binary.LittleEndian.PutUint64(dst, val)
	default:
		return fmt.Errorf("monitor: unsupported encode type %T", v)
	}
	return nil
}

func readLE(src []byte, v interface{}) error {
	switch val := v.(type) {
	case *float32:
		*val = math.Float32frombits(binary.LittleEndian.Uint32(src))
	case *int32:
		*val = int32(binary.LittleEndian.Uint32(src))
	case *int64:
		*val = int64(binary.LittleEndian.Uint64(src))
	case *uint64:
		*val = binary.LittleEndian.Uint64(src)
	default:
		return fmt.Errorf("monitor: unsupported decode type %T", v)
	}
	return nil
}
