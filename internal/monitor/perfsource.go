// perfsource.go grounds the monitoring engine's hardware-counter
// acquisition (spec §4.6 "the engine samples whatever telemetry source is
// configured") on the teacher's internal/collectors/perf.go: the same
// go-perf event set, multiplexing-correction math, and cgroup-scoped
// OpenCGroup attachment. One PerfSource is attached to the single cgroup
// named by configuration; its readings are aggregated over all CPUs and
// are not attributed to individual slots or kernels.
package monitor

import (
	"fmt"
	"os"
	"sync"

	"github.com/elastic/go-perf"

	"fpgasched/internal/logging"
)

// Sample is one window's worth of hardware-counter readings for the
// PerfSource's cgroup, summed over every CPU.
type Sample struct {
	CacheMisses          *uint64
	CacheReferences      *uint64
	Instructions         *uint64
	Cycles               *uint64
	BranchInstructions   *uint64
	BranchMisses         *uint64
	CacheMissRate        *float64
	InstructionsPerCycle *float64
}

type eventState struct {
	value   uint64
	enabled uint64
	running uint64
}

// PerfSource samples hardware performance counters for one configured
// cgroup (monitor.perf_cgroup_path).
type PerfSource struct {
	mu         sync.Mutex
	events     []*perf.Event
	labels     []string
	cgroupFile *os.File
	lastState  map[int]*eventState
}

// NewPerfSource attaches cgroup-scoped perf events to every CPU for the
// cgroup at cgroupPath (spec leaves the concrete source pluggable; Docker
// is the one HAL backend wired up here, so cgroupPath is the container's
// cgroup path).
func NewPerfSource(cgroupPath string, numCPUs int) (*PerfSource, error) {
	logger := logging.GetMonitorLogger()

	cgroupFile, err := os.Open(cgroupPath)
	if err != nil {
		return nil, fmt.Errorf("monitor: open cgroup path %q: %w", cgroupPath, err)
	}

	src := &PerfSource{
		cgroupFile: cgroupFile,
		lastState:  make(map[int]*eventState),
	}

	counters := []perf.HardwareCounter{
		perf.CacheMisses,
		perf.CacheReferences,
		perf.Instructions,
		perf.CPUCycles,
		perf.BranchInstructions,
		perf.BranchMisses,
	}

	fd := int(cgroupFile.Fd())
	for cpu := 0; cpu < numCPUs; cpu++ {
		for _, counter := range counters {
			attr := &perf.Attr{}
			counter.Configure(attr)
			attr.CountFormat.Enabled = true
			attr.CountFormat.Running = true

			event, err := perf.OpenCGroup(attr, fd, cpu, nil)
			if err != nil {
				logger.WithFields(map[string]interface{}{"counter": counter, "cpu": cpu}).WithError(err).Warn("failed to open perf event, continuing without it")
				continue
			}
			if err := event.Enable(); err != nil {
				logger.WithError(err).Warn("failed to enable perf event")
				event.Close()
				continue
			}
			src.events = append(src.events, event)
			src.labels = append(src.labels, counterLabel(counter))
		}
	}

	if len(src.events) == 0 {
		cgroupFile.Close()
		return nil, fmt.Errorf("monitor: no perf events could be opened for %q", cgroupPath)
	}
	return src, nil
}

func counterLabel(c perf.HardwareCounter) string {
	switch c {
	case perf.CacheMisses:
		return "cache-misses"
	case perf.CacheReferences:
		return "cache-references"
	case perf.Instructions:
		return "instructions"
	case perf.CPUCycles:
		return "cpu-cycles"
	case perf.BranchInstructions:
		return "branch-instructions"
	case perf.BranchMisses:
		return "branch-misses"
	default:
		return "unknown"
	}
}

// Acquire reads every open event, applies the multiplexing-correction
// delta against the previous reading, and returns the aggregated sample
// for this window (spec §4.6 acquisition step).
func (s *PerfSource) Acquire() *Sample {
	s.mu.Lock()
	defer s.mu.Unlock()

	sums := make(map[string]uint64)
	for i, event := range s.events {
		count, err := event.ReadCount()
		if err != nil {
			continue
		}
		value, enabled, running := uint64(count.Value), uint64(count.Enabled), uint64(count.Running)

		if prev, ok := s.lastState[i]; ok {
			deltaValue := value - prev.value
			deltaEnabled := enabled - prev.enabled
			deltaRunning := running - prev.running

			scaled := deltaValue
			if deltaRunning > 0 && deltaEnabled > 0 && deltaRunning != deltaEnabled {
				factor := float64(deltaEnabled) / float64(deltaRunning)
				scaled = uint64(float64(deltaValue) * factor)
			}
			sums[s.labels[i]] += scaled
		}

		s.lastState[i] = &eventState{value: value, enabled: enabled, running: running}
	}

	sample := &Sample{}
	get := func(label string) *uint64 {
		if v, ok := sums[label]; ok && v > 0 {
			vv := v
			return &vv
		}
		return nil
	}
	sample.CacheMisses = get("cache-misses")
	sample.CacheReferences = get("cache-references")
	sample.Instructions = get("instructions")
	sample.Cycles = get("cpu-cycles")
	sample.BranchInstructions = get("branch-instructions")
	sample.BranchMisses = get("branch-misses")

	if sample.CacheMisses != nil && sample.CacheReferences != nil && *sample.CacheReferences > 0 {
		rate := float64(*sample.CacheMisses) / float64(*sample.CacheReferences)
		sample.CacheMissRate = &rate
	}
	if sample.Instructions != nil && sample.Cycles != nil && *sample.Cycles > 0 {
		ipc := float64(*sample.Instructions) / float64(*sample.Cycles)
		sample.InstructionsPerCycle = &ipc
	}

	return sample
}

// Close releases every open perf event and the cgroup file descriptor.
func (s *PerfSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.events {
		if e != nil {
			e.Close()
		}
	}
	s.events = nil
	if s.cgroupFile != nil {
		err := s.cgroupFile.Close()
		s.cgroupFile = nil
		return err
	}
	return nil
}
