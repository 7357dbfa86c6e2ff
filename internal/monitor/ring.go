// ring.go implements the ping-pong (N-segment) ring buffer that spec §3
// calls RingBuffer: a set of mmap-backed segments, one of which is
// "current" at any time, toggled at each window boundary while a reader
// drains the segment that just closed. It is grounded on
// original_source/machsuite_app/src/application/ping_pong_buffers.c,
// translated from shm_open+ftruncate+mmap into Go's os.OpenFile +
// File.Truncate + unix.Mmap (golang.org/x/sys/unix), generalized from the original's fixed
// two buffers to an arbitrary segment count (spec §3's RingBuffer is
// explicitly "two-slot or N-slot").
package monitor

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sys/unix"
)

// Ring is one mmap-backed ring buffer with Segments independently
// addressable regions of SegmentSize bytes. At any time exactly one
// segment is "current" (being written); Toggle advances to the next
// segment and returns the one that just closed for draining.
type Ring struct {
	mu          sync.Mutex
	dir         string
	segmentSize int
	segments    [][]byte
	files       []*os.File
	current     int
}

// NewRing creates numSegments mmap-backed files of segmentSize bytes each
// under dir (spec §6: ring segment files live under monitor.ring_dir).
func NewRing(dir string, numSegments, segmentSize int) (*Ring, error) {
	if numSegments < 2 {
		return nil, fmt.Errorf("monitor: ring buffer needs at least 2 segments, got %d", numSegments)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("monitor: create ring dir: %w", err)
	}

	r := &Ring{dir: dir, segmentSize: segmentSize}
	for i := 0; i < numSegments; i++ {
		path := filepath.Join(dir, fmt.Sprintf("segment_%d", i))
		f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
		if err != nil {
			r.closeAll()
			return nil, fmt.Errorf("monitor: create segment file %q: %w", path, err)
		}
		if err := f.Truncate(int64(segmentSize)); err != nil {
			f.Close()
			r.closeAll()
			return nil, fmt.Errorf("monitor: truncate segment file %q: %w", path, err)
		}
		data, err := unix.Mmap(int(f.Fd()), 0, segmentSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
		if err != nil {
			f.Close()
			r.closeAll()
			return nil, fmt.Errorf("monitor: mmap segment file %q: %w", path, err)
		}
		r.files = append(r.files, f)
		r.segments = append(r.segments, data)
	}
	return r, nil
}

// Current returns the byte slice backing the segment currently being
// written.
func (r *Ring) Current() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.segments[r.current]
}

// Toggle advances to the next segment (round-robin) and returns the
// segment that was current before the call, for the monitoring engine to
// drain into online-record framing (spec §4.6).
func (r *Ring) Toggle() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	closed := r.segments[r.current]
	r.current = (r.current + 1) % len(r.segments)
	return closed
}

// Close unmaps every segment and closes the backing files, optionally
// removing them (remove=true mirrors ping_pong_buffers_clean's
// remove_buffers flag).
func (r *Ring) Close(remove bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for i, data := range r.segments {
		if err := unix.Munmap(data); err != nil && firstErr == nil {
			firstErr = err
		}
		name := r.files[i].Name()
		r.files[i].Close()
		if remove {
			os.Remove(name)
		}
	}
	r.segments = nil
	r.files = nil
	return firstErr
}

func (r *Ring) closeAll() {
	for i, data := range r.segments {
		unix.Munmap(data)
		r.files[i].Close()
	}
	r.segments = nil
	r.files = nil
}
