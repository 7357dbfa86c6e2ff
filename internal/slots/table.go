// Package slots implements C4, the fixed hardware slot-occupancy table.
// The allocation policy and locking discipline are grounded on
// internal/cpuallocator.Allocator from the teacher (a mutex-guarded,
// logrus-logged resource assignment table), simplified to the spec's
// deterministic low-index-first bitmask allocator (spec §4.4).
package slots

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"fpgasched/internal/logging"
)

// Table tracks which of NumSlots hardware execution positions are
// currently held (spec §3 SlotTable).
type Table struct {
	mu      sync.Mutex
	inUse   []bool
	numSlots int
	logger  logrus.FieldLogger
	binder  Binder
}

// Binder optionally attaches a dispatched kernel's occupied slots to a
// real resource-partitioning mechanism (see rdt.go). A nil Binder is a
// valid, fully functional Table.
type Binder interface {
	Bind(slotMask uint32, cu int) error
	Unbind(slotMask uint32) error
}

func NewTable(numSlots int, binder Binder) *Table {
	return &Table{
		inUse:    make([]bool, numSlots),
		numSlots: numSlots,
		logger:   logging.GetLogger(),
		binder:   binder,
	}
}

// FreeSlots returns the number of currently unoccupied slots.
func (t *Table) FreeSlots() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.freeSlotsLocked()
}

func (t *Table) freeSlotsLocked() int {
	free := 0
	for _, used := range t.inUse {
		if !used {
			free++
		}
	}
	return free
}

// Allocate reserves the first cu free slots (low-index-first, spec §4.4)
// and returns the resulting bitmask. It is a fatal invariant violation
// (spec §7) for Allocate to be called when fewer than cu slots are free;
// callers (the dispatch scheduler) must only call Allocate after having
// already reserved free_slots under the service mutex.
func (t *Table) Allocate(cu int) (uint32, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var mask uint32
	picked := 0
	for i := 0; i < t.numSlots && picked < cu; i++ {
		if !t.inUse[i] {
			t.inUse[i] = true
			mask |= 1 << uint(i)
			picked++
		}
	}
	if picked != cu {
		// Roll back partial allocation before reporting the invariant
		// violation; the caller will treat this as fatal.
		for i := 0; i < t.numSlots; i++ {
			if mask&(1<<uint(i)) != 0 {
				t.inUse[i] = false
			}
		}
		return 0, fmt.Errorf("slot allocation invariant violated: requested cu=%d, only %d free", cu, t.freeSlotsLocked())
	}

	if t.binder != nil {
		if err := t.binder.Bind(mask, cu); err != nil {
			t.logger.WithFields(logrus.Fields{"slot_mask": mask, "cu": cu}).WithError(err).Warn("slot-to-resource-class binding failed, continuing without it")
		}
	}

	return mask, nil
}

// Release clears every bit set in mask (spec §4.4).
func (t *Table) Release(mask uint32) {
	t.mu.Lock()
	for i := 0; i < t.numSlots; i++ {
		if mask&(1<<uint(i)) != 0 {
			t.inUse[i] = false
		}
	}
	t.mu.Unlock()

	if t.binder != nil {
		if err := t.binder.Unbind(mask); err != nil {
			t.logger.WithField("slot_mask", mask).WithError(err).Warn("slot-to-resource-class unbind failed")
		}
	}
}

// Snapshot returns a copy of the current occupancy, for tests and
// diagnostics; it does not establish any ordering guarantee beyond the
// instant it was taken.
func (t *Table) Snapshot() []bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]bool, len(t.inUse))
	copy(out, t.inUse)
	return out
}
