// Package livelist implements C5, the per-slot live-kernel lists consumed
// by the monitoring engine (spec §4.5, §4.6). Each slot has its own mutex,
// which is never held across a HAL call (spec §5), matching the lock-scope
// discipline the teacher observes for its per-resource maps
// (internal/cpuallocator, internal/manager).
package livelist

import (
	"sync"

	"fpgasched/internal/kernel"
)

// Lists holds one unordered, per-slot collection of live KernelRecord
// pointers.
type Lists struct {
	mus   []sync.Mutex
	slots [][]*kernel.KernelRecord
}

func New(numSlots int) *Lists {
	return &Lists{
		mus:   make([]sync.Mutex, numSlots),
		slots: make([][]*kernel.KernelRecord, numSlots),
	}
}

// Register adds rec to slot s's live list. The worker must call this
// before starting the HAL clock (spec §4.5), so the windowing predicate
// sees the kernel as soon as it can overlap a window.
func (l *Lists) Register(s int, rec *kernel.KernelRecord) {
	l.mus[s].Lock()
	l.slots[s] = append(l.slots[s], rec)
	l.mus[s].Unlock()
}

// Window is the (initial, start, finish) timestamp triple bounding one
// monitoring acquisition (spec §3 MonitorWindow).
type Window struct {
	Initial kernel.Timestamp
	Start   kernel.Timestamp
	Finish  kernel.Timestamp
}

// Attribute applies the windowing predicate from spec §4.6 to slot s's
// live list: every record with tf > m0 && t0 < mf is written to the
// returned slice; every record with tf > mf || t0 == tf is retained on the
// list for the next window. A record can be both written and retained
// (still live past this window's close).
func (l *Lists) Attribute(s int, w Window) []*kernel.KernelRecord {
	l.mus[s].Lock()
	defer l.mus[s].Unlock()

	current := l.slots[s]
	var written []*kernel.KernelRecord
	retained := current[:0:0]

	for _, rec := range current {
		t0 := rec.MeasuredArrival
		tf := rec.MeasuredFinish

		if tf.After(w.Start) && t0.Before(w.Finish) {
			written = append(written, rec)
		}
		if tf.After(w.Finish) || t0.Equal(tf) {
			retained = append(retained, rec)
		}
	}

	l.slots[s] = retained
	return written
}

// Len returns the current size of slot s's live list (diagnostics/tests).
func (l *Lists) Len(s int) int {
	l.mus[s].Lock()
	defer l.mus[s].Unlock()
	return len(l.slots[s])
}
