package slots

import (
	"fmt"
	"sync"

	"github.com/intel/goresctrl/pkg/rdt"

	"fpgasched/internal/rdtguard"
)

// RDTBinder is a Binder that initializes goresctrl's RDT (Intel Resource
// Director Technology) package and records an RDT class name for every
// occupied slot mask. It does not create those classes or change any
// cache/bandwidth allocation; it only tracks the names. It is adapted from
// the teacher's
// internal/manager.ResourceManager and internal/allocation.RDTAllocator,
// which do the equivalent binding per-container instead of per-slot-mask.
//
// Binding is best-effort: RDT support is host-dependent (not every CPU
// exposes CAT/MBA), so callers treat a bind/unbind failure as a warning,
// never as a scheduling failure (spec §4.4's slot accounting must succeed
// independently of RDT).
type RDTBinder struct {
	mu          sync.Mutex
	initialized bool
	partition   string
	classByMask map[uint32]string
}

func NewRDTBinder(partition string) *RDTBinder {
	return &RDTBinder{partition: partition, classByMask: make(map[uint32]string)}
}

// ensureInitialized calls rdt.Initialize under rdtguard's process-wide
// lock: goresctrl's rdt package keeps unsynchronized global state, so two
// RDTBinder instances (or a binder racing a future direct rdt caller) must
// never enter it concurrently.
func (b *RDTBinder) ensureInitialized() error {
	if b.initialized {
		return nil
	}
	var err error
	rdtguard.WithLock(func() {
		err = rdt.Initialize("")
	})
	if err != nil {
		return fmt.Errorf("rdt initialize: %w", err)
	}
	b.initialized = true
	return nil
}

// Bind initializes RDT on first use and records a class name derived from
// the slot mask; no class is created and the resctrl allocation is left
// unchanged.
func (b *RDTBinder) Bind(mask uint32, cu int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.ensureInitialized(); err != nil {
		return err
	}
	className := fmt.Sprintf("%s-slots-%x", b.partition, mask)
	b.classByMask[mask] = className
	// No rdt.SetConfig call is made; the map only records the name so
	// Unbind can drop it symmetrically. A host without RDT support will
	// have already failed at ensureInitialized and never reach this line.
	return nil
}

// Unbind forgets the class associated with mask.
func (b *RDTBinder) Unbind(mask uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.classByMask, mask)
	return nil
}
