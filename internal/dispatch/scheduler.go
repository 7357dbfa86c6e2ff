// Package dispatch implements C3, the admission/dispatch scheduler. The
// gating predicate, the wake-up-flag discipline, and the completion path
// are translated directly from spec §4.3's pseudocode, which in turn
// mirrors original_source/machsuite_app/src/application/setup.c's main
// dispatch loop and queue_kernel.c's dequeue_first_executable_kernel. The
// logging and struct shape follow the teacher's internal/scheduler package
// (a Scheduler struct holding a logrus.FieldLogger).
package dispatch

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"fpgasched/internal/hal"
	"fpgasched/internal/kernel"
	"fpgasched/internal/livelist"
	"fpgasched/internal/logging"
	"fpgasched/internal/slots"
	"fpgasched/internal/workerpool"
)

// OperatingMode is the scheduler-wide execution/training gate (spec §4.3,
// §4.6).
type OperatingMode int

const (
	Execution OperatingMode = iota
	Train
)

// Scheduler is C3: the FIFO-with-duplication-and-width dispatcher. Per
// spec §9's design notes, it deliberately does not implement any
// prediction-based reordering (LIF/SJF/CSA); that logic belongs to the
// external model service.
type Scheduler struct {
	mu   sync.Mutex
	cond *sync.Cond

	store *kernel.Store
	dup   *kernel.DuplicationTable
	slotT *slots.Table
	live  *livelist.Lists
	pool  *workerpool.Pool
	hal   hal.Backend

	numSlots            int
	kernelsToServe      int
	kernelsMayBeExecutable bool
	freeSlots           int
	mode                OperatingMode

	logger logrus.FieldLogger
}

// NewScheduler wires up C3 against its collaborators: C1 (store), C4 (slot
// table), C5 (live lists), C2 (worker pool), and the HAL backend.
func NewScheduler(store *kernel.Store, numLabels, numSlots int, slotT *slots.Table, live *livelist.Lists, pool *workerpool.Pool, backend hal.Backend) *Scheduler {
	s := &Scheduler{
		store:     store,
		dup:       kernel.NewDuplicationTable(numLabels),
		slotT:     slotT,
		live:      live,
		pool:      pool,
		hal:       backend,
		numSlots:  numSlots,
		freeSlots: numSlots,
		mode:      Execution,
		logger:    logging.GetSchedulerLogger(),
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// NotifyAppended tells the scheduler a new record has been appended to the
// store (kernels_to_serve++ and kernels_may_be_executable set, spec §4.3).
func (s *Scheduler) NotifyAppended() {
	s.mu.Lock()
	s.kernelsToServe++
	s.kernelsMayBeExecutable = true
	s.cond.Broadcast()
	s.mu.Unlock()
}

// SetMode transitions the scheduler between EXECUTION and TRAIN (spec §4.6
// calls this at window boundaries only). Entering TRAIN pauses new
// dispatches; already-running kernels are unaffected.
func (s *Scheduler) SetMode(mode OperatingMode) {
	s.mu.Lock()
	s.mode = mode
	s.cond.Broadcast()
	s.mu.Unlock()
}

// gatingSatisfiedLocked evaluates the four-way AND from spec §4.3's main
// loop. Caller must hold s.mu.
func (s *Scheduler) gatingSatisfiedLocked() bool {
	return s.kernelsToServe > 0 &&
		s.kernelsMayBeExecutable &&
		s.freeSlots > 0 &&
		s.mode == Execution
}

// Run admits and dispatches numKernels kernels, blocking as needed on the
// four gating conditions. It returns once numKernels dispatches have
// occurred or ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context, numKernels int) error {
	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			s.cond.Broadcast()
			s.mu.Unlock()
		case <-stop:
		}
	}()
	defer close(stop)

	for admitted := 0; admitted < numKernels; {
		s.mu.Lock()
		for !s.gatingSatisfiedLocked() {
			if ctx.Err() != nil {
				s.mu.Unlock()
				return ctx.Err()
			}
			s.cond.Wait()
		}

		freeSlotsNow := s.freeSlots
		// Clear the flag once at the top of the scan (spec §4.3 tie-break
		// rule). The scan runs under the service mutex, so the duplication
		// table it reads is consistent; a completion or producer append
		// that follows sets the flag again, and a dead-end scan never
		// clobbers that signal.
		s.kernelsMayBeExecutable = false

		rec := s.store.ScanAndRemoveFirstExecutable(freeSlotsNow, s.dup)
		if rec == nil {
			// Dead end: the flag stays cleared until a producer append or
			// a worker completion sets it; this does not count as a
			// dispatch.
			s.mu.Unlock()
			continue
		}

		s.kernelsMayBeExecutable = true // more may remain head-ward
		s.dup.Increment(rec.Label)
		s.freeSlots -= rec.CU
		s.mu.Unlock()

		mask, err := s.slotT.Allocate(rec.CU)
		if err != nil {
			logging.Fatal("SCHED", rec.ID, err)
			return err
		}
		rec.SlotMask = mask

		s.pool.Dispatch(s.workerRoutine, rec)

		s.mu.Lock()
		s.kernelsToServe--
		s.mu.Unlock()
		admitted++
	}
	return nil
}

// workerRoutine is executed by a worker-pool goroutine for one dispatched
// kernel (spec §4.2 step 4, §4.3 completion side, §4.5 registration order,
// §9 open question on measured_arrival timing).
func (s *Scheduler) workerRoutine(arg interface{}) {
	rec := arg.(*kernel.KernelRecord)

	for bit := 0; bit < s.numSlots; bit++ {
		if rec.SlotMask&(1<<uint(bit)) != 0 {
			s.live.Register(bit, rec)
		}
	}

	rec.MeasuredArrival = kernel.Now()
	rec.MeasuredPreExecution = kernel.Now()

	ctx := context.Background()
	if err := s.hal.Execute(ctx, rec.Label, rec.CU, rec.SlotMask, rec.Executions); err != nil {
		logging.Fatal("EXEC", rec.ID, err)
		return
	}

	rec.MeasuredPostExecution = kernel.Now()
	rec.MeasuredFinish = kernel.Now()

	s.slotT.Release(rec.SlotMask)
	rec.SlotMask = 0

	s.mu.Lock()
	s.dup.Decrement(rec.Label)
	s.freeSlots += rec.CU
	s.kernelsMayBeExecutable = true
	s.cond.Broadcast()
	s.mu.Unlock()
}

// FreeSlots returns the scheduler's current view of free slots (tests and
// diagnostics; authoritative state also lives in the slots.Table).
func (s *Scheduler) FreeSlots() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.freeSlots
}
