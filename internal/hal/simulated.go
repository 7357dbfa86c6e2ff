package hal

import (
	"context"
	"time"

	"fpgasched/internal/kernel"
)

// SimulatedBackend stands in for the real accelerator when no Docker image
// is configured (hal.backend: "simulated"), and in tests. Spec §1 places
// the accelerator driver itself out of scope, so a dependency-free
// time.Sleep-based stand-in is the correct (and only) implementation for
// this half of the interface; the Docker-backed half (docker.go) is where
// the domain-stack wiring lives.
type SimulatedBackend struct {
	// PerExecution is the simulated duration of a single accelerator
	// invocation; Execute sleeps PerExecution * executions.
	PerExecution time.Duration
}

func NewSimulatedBackend(perExecution time.Duration) *SimulatedBackend {
	if perExecution <= 0 {
		perExecution = time.Millisecond
	}
	return &SimulatedBackend{PerExecution: perExecution}
}

func (s *SimulatedBackend) Execute(ctx context.Context, label kernel.Label, cu int, slotMask uint32, executions int) error {
	d := s.PerExecution * time.Duration(executions)
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SimulatedBackend) Close() error { return nil }
