package kernel

import (
	"math"
	"math/bits"
	"time"
)

// Timestamp is the wire-level (sec, nsec) pair spec §3/§6 uses for every
// KernelRecord and MonitorWindow field. A dedicated type (rather than
// time.Time) keeps the sentinel arithmetic from spec §9 ("sentinel
// arithmetic") explicit and keeps the online-record framing a direct
// field-for-field match of spec §6.
type Timestamp struct {
	Sec  int64
	Nsec int64
}

// FarFuture is the sentinel "not yet happened" value: the maximum
// representable timestamp, so an unset measured_arrival/measured_finish
// compares as "not yet running"/"not yet finished" under the windowing
// predicate (spec §3).
var FarFuture = Timestamp{Sec: math.MaxInt64, Nsec: math.MaxInt64}

// IsSentinel reports whether t is still at its initial far-future value.
func (t Timestamp) IsSentinel() bool { return t == FarFuture }

// Before reports t < other using lexicographic (sec, nsec) ordering, which
// holds even when one or both operands are the sentinel.
func (t Timestamp) Before(other Timestamp) bool {
	if t.Sec != other.Sec {
		return t.Sec < other.Sec
	}
	return t.Nsec < other.Nsec
}

// After reports t > other.
func (t Timestamp) After(other Timestamp) bool { return other.Before(t) }

// Equal reports t == other.
func (t Timestamp) Equal(other Timestamp) bool { return t == other }

// Now returns the current monotonic-ish wall clock as a Timestamp. Process
// uptime, not calendar time, is all the windowing predicate needs; using
// time.Now() here (rather than a custom monotonic clock) matches the
// teacher's pattern of sourcing all timestamps from the standard library.
func Now() Timestamp {
	n := time.Now()
	return Timestamp{Sec: n.Unix(), Nsec: int64(n.Nanosecond())}
}

// KernelRecord is one admitted kernel descriptor. It is created once by the
// producer and never destroyed until shutdown (spec §3 Lifecycle); pointers
// to it are shared across the dispatch scheduler, a worker, and the
// per-slot live lists without risk of dangling references.
type KernelRecord struct {
	ID                    int
	Label                 Label
	Executions            int
	CU                    int
	IntendedArrivalMs     int64
	CommandedArrival      Timestamp
	InitialTime           Timestamp
	MeasuredArrival       Timestamp
	MeasuredFinish        Timestamp
	MeasuredPreExecution  Timestamp
	MeasuredPostExecution Timestamp
	SlotMask              uint32
}

// NewKernelRecord validates and constructs a record. Validation enforces
// the admission-time invariants from spec §7: label must be within the
// closed set and executions must be positive. cu is validated by the
// caller against the slot-count bound (depends on runtime NUM_SLOTS, not a
// kernel-package constant).
func NewKernelRecord(id int, label Label, numLabels int, executions, cu int, intendedArrivalMs int64, commandedArrival, initialTime Timestamp) (*KernelRecord, error) {
	if !ValidLabel(label, numLabels) {
		return nil, errInvalidLabel(label, numLabels)
	}
	if executions <= 0 {
		return nil, errNonPositiveExecutions(executions)
	}
	return &KernelRecord{
		ID:                    id,
		Label:                 label,
		Executions:            executions,
		CU:                    cu,
		IntendedArrivalMs:     intendedArrivalMs,
		CommandedArrival:      commandedArrival,
		InitialTime:           initialTime,
		MeasuredArrival:       FarFuture,
		MeasuredFinish:        FarFuture,
		MeasuredPreExecution:  FarFuture,
		MeasuredPostExecution: FarFuture,
	}, nil
}

// PopCount returns the number of slots set in mask.
func PopCount(mask uint32) int { return bits.OnesCount32(mask) }

// ValidCU reports whether cu is one of the admissible compute-unit widths
// (spec §3: {1, 2, 4, 8}, bounded by the slot count).
func ValidCU(cu, numSlots int) bool {
	switch cu {
	case 1, 2, 4, 8:
		return cu <= numSlots
	default:
		return false
	}
}

// HasStarted reports whether the record has a real (non-sentinel) arrival
// timestamp.
func (r *KernelRecord) HasStarted() bool { return !r.MeasuredArrival.IsSentinel() }

// HasFinished reports whether the record has a real finish timestamp.
func (r *KernelRecord) HasFinished() bool { return !r.MeasuredFinish.IsSentinel() }
