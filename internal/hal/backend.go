// Package hal models the accelerator driver primitive that spec §1 declares
// out of scope: execute_kernel(label, cu, slot_mask, executions). The core
// only needs an opaque, bounded-time call (spec §5 "the HAL is trusted to
// terminate"); this package gives that primitive two concrete bodies so the
// rest of the scheduler has something real to call.
package hal

import (
	"context"

	"fpgasched/internal/kernel"
)

// Backend executes one accelerator invocation. Implementations must block
// until the invocation completes and return a non-nil error only for a
// genuine HAL failure (spec §7: HAL error is fatal to the process).
type Backend interface {
	Execute(ctx context.Context, label kernel.Label, cu int, slotMask uint32, executions int) error
	Close() error
}
