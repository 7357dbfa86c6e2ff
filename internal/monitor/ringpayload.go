// ringpayload.go frames the power and trace proxy samples spec §4.6's
// hw_read() step produces into their own ring segments, using the same
// tagged little-endian layout and trailing valid-byte footer as
// window.go's online-record framing. Each optional counter is written as
// an int32 presence flag followed by its value so a reader can distinguish
// "not sampled this window" from a genuine zero.
package monitor

import (
	"encoding/binary"
	"fmt"
	"time"
)

// EncodePowerSample writes one window's power-proxy reading — cache-miss
// pressure plus the hw_read() acquisition latency — into buf (spec §4.6
// "write(current_buffers.power, power_samples, elapsed)").
func EncodePowerSample(buf []byte, s *Sample, elapsed time.Duration) (int, error) {
	off := 0
	put := func(v interface{}) error {
		n := binary.Size(v)
		if off+n > len(buf)-footerSize {
			return fmt.Errorf("monitor: power sample does not fit in segment (need at least %d more bytes)", n)
		}
		if err := writeLE(buf[off:off+n], v); err != nil {
			return err
		}
		off += n
		return nil
	}
	putU64 := func(p *uint64) error {
		if p == nil {
			if err := put(int32(0)); err != nil {
				return err
			}
			return put(uint64(0))
		}
		if err := put(int32(1)); err != nil {
			return err
		}
		return put(*p)
	}
	putF32 := func(p *float64) error {
		if p == nil {
			if err := put(int32(0)); err != nil {
				return err
			}
			return put(float32(0))
		}
		if err := put(int32(1)); err != nil {
			return err
		}
		return put(float32(*p))
	}

	if err := put(int64(elapsed)); err != nil {
		return 0, err
	}
	if s == nil {
		s = &Sample{}
	}
	if err := putU64(s.CacheMisses); err != nil {
		return 0, err
	}
	if err := putU64(s.CacheReferences); err != nil {
		return 0, err
	}
	if err := putF32(s.CacheMissRate); err != nil {
		return 0, err
	}

	binary.LittleEndian.PutUint32(buf[len(buf)-footerSize:], uint32(off))
	return off + footerSize, nil
}

// EncodeTraceSample writes one window's trace-proxy reading — instruction
// and cycle counters — into buf (spec §4.6 "write(current_buffers.traces,
// trace_samples)").
func EncodeTraceSample(buf []byte, s *Sample) (int, error) {
	off := 0
	put := func(v interface{}) error {
		n := binary.Size(v)
		if off+n > len(buf)-footerSize {
			return fmt.Errorf("monitor: trace sample does not fit in segment (need at least %d more bytes)", n)
		}
		if err := writeLE(buf[off:off+n], v); err != nil {
			return err
		}
		off += n
		return nil
	}
	putU64 := func(p *uint64) error {
		if p == nil {
			if err := put(int32(0)); err != nil {
				return err
			}
			return put(uint64(0))
		}
		if err := put(int32(1)); err != nil {
			return err
		}
		return put(*p)
	}
	putF32 := func(p *float64) error {
		if p == nil {
			if err := put(int32(0)); err != nil {
				return err
			}
			return put(float32(0))
		}
		if err := put(int32(1)); err != nil {
			return err
		}
		return put(float32(*p))
	}

	if s == nil {
		s = &Sample{}
	}
	if err := putU64(s.Instructions); err != nil {
		return 0, err
	}
	if err := putU64(s.Cycles); err != nil {
		return 0, err
	}
	if err := putU64(s.BranchInstructions); err != nil {
		return 0, err
	}
	if err := putU64(s.BranchMisses); err != nil {
		return 0, err
	}
	if err := putF32(s.InstructionsPerCycle); err != nil {
		return 0, err
	}

	binary.LittleEndian.PutUint32(buf[len(buf)-footerSize:], uint32(off))
	return off + footerSize, nil
}
