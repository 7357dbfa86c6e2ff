// Package kernel implements the C1 kernel-record store: the append-only
// arena of KernelRecord plus the pending queue scanned by the dispatch
// scheduler. It is grounded on original_source/machsuite_app's
// queue_kernel.c (a linked-list queue of kernel_data ordered by arrival,
// with a head-order "first executable" removal) translated into the
// teacher's mutex-guarded-struct idiom.
package kernel

import (
	"container/list"
	"sync"
)

// DuplicationTable tracks, per label, how many kernels of that label are
// currently live (spec §3 DuplicationTable). It is always accessed under
// the dispatch scheduler's service mutex (spec §5 lock ordering); the type
// itself does no locking of its own.
type DuplicationTable struct {
	counts []int
}

func NewDuplicationTable(numLabels int) *DuplicationTable {
	return &DuplicationTable{counts: make([]int, numLabels)}
}

func (d *DuplicationTable) Count(label Label) int { return d.counts[label] }

func (d *DuplicationTable) Increment(label Label) { d.counts[label]++ }

func (d *DuplicationTable) Decrement(label Label) {
	if d.counts[label] > 0 {
		d.counts[label]--
	}
}

// Store owns the lifetime of every admitted KernelRecord (C1). append()
// places a pointer into both the append-only arena (for stable, permanent
// ownership per spec §3 Lifecycle) and the tail of the pending queue; the
// arena entry is the same record the dispatch scheduler, worker, and live
// lists subsequently mutate in place; "OutputLog" of spec §3 is simply the
// arena read back at shutdown, since no record is ever destroyed.
type Store struct {
	mu      sync.Mutex
	arena   []*KernelRecord
	pending *list.List
}

func NewStore() *Store {
	return &Store{pending: list.New()}
}

// Append adds a new record to the arena and to the tail of the pending
// queue, returning the stable pointer callers must use from here on.
func (s *Store) Append(rec *KernelRecord) *KernelRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.ID = len(s.arena)
	s.arena = append(s.arena, rec)
	s.pending.PushBack(rec)
	return rec
}

// ScanAndRemoveFirstExecutable traverses the pending queue from the head,
// removing and returning the first record with cu <= freeSlots and an
// unduplicated label (spec §4.1, §4.3). Returns nil if no record in the
// queue currently qualifies. The traversal is atomic with respect to
// concurrent Append calls because both hold the same mutex (spec §4.1
// contract).
func (s *Store) ScanAndRemoveFirstExecutable(freeSlots int, dup *DuplicationTable) *KernelRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	for e := s.pending.Front(); e != nil; e = e.Next() {
		rec := e.Value.(*KernelRecord)
		if rec.CU <= freeSlots && dup.Count(rec.Label) == 0 {
			s.pending.Remove(e)
			return rec
		}
	}
	return nil
}

// Size returns the number of records currently awaiting dispatch.
func (s *Store) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending.Len()
}

// Drain returns every admitted record in definition order, for the final
// kernels_info.bin flush (spec §6 Filesystem outputs). Safe to call only
// after all dispatch and worker activity has quiesced.
func (s *Store) Drain() []*KernelRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*KernelRecord, len(s.arena))
	copy(out, s.arena)
	return out
}
