// Package monitor implements C6, the periodic monitoring engine, and C7's
// collaborators: the ring buffer (ring.go), online-record framing
// (window.go), and hardware counter acquisition (perfsource.go, cpuusage.go).
// The ticker-driven acquire/attribute/gate loop is grounded on
// original_source/machsuite_app/src/application/setup.c's monitor thread
// and online_models.c's train/test cadence, translated into a single
// goroutine driven by a time.Ticker rather than a pthread + nanosleep loop.
package monitor

import (
	"context"
	"time"

	"fpgasched/internal/dispatch"
	"fpgasched/internal/kernel"
	"fpgasched/internal/livelist"
	"fpgasched/internal/logging"
	"fpgasched/internal/modelclient"
)

// CPUSampler reports system-wide CPU utilization percentages (0-100) for
// the current window (see cpuusage.go).
type CPUSampler interface {
	Sample() (user, kernelPct, idle float32, err error)
}

// Engine is C6: it ticks on a fixed period, acquires a CPU/perf sample,
// attributes each slot's live-kernel list to the closing window, frames an
// OnlineRecord into the ring, and at a configured cadence pauses dispatch
// to run one model-service Operation round through C7.
type Engine struct {
	online   *Ring
	power    *Ring
	traces   *Ring
	live     *livelist.Lists
	sched    *dispatch.Scheduler
	cpu      CPUSampler
	model    *modelclient.Client
	numSlots int

	windowPeriod time.Duration
	// windowsPerTrainCycle is how many ticks elapse between successive
	// training-phase invocations (spec §4.6 "at a configured window
	// cadence"). A value <= 0 disables training entirely.
	windowsPerTrainCycle int
	obsPerWindow         float64

	perf     *PerfSource
	onSample func(*Sample)
	onWindow func(*OnlineRecord)
}

// SetWindowSink attaches an optional callback invoked with each window's
// OnlineRecord right after it is written to the ring, typically wired to
// telemetry.InfluxSink.WriteWindow.
func (e *Engine) SetWindowSink(sink func(*OnlineRecord)) {
	e.onWindow = sink
}

// SetPerfSource attaches an optional hardware-counter source to the
// engine; every window's Sample is framed into the power and traces ring
// segments regardless, and sink additionally receives it (typically wired
// to a telemetry sink, since spec §6's online-record wire format has no
// perf fields of its own). A nil source disables acquisition; the power
// and traces rings still advance with empty samples.
func (e *Engine) SetPerfSource(perf *PerfSource, sink func(*Sample)) {
	e.perf = perf
	e.onSample = sink
}

// NewEngine wires C6 to its collaborators: the three parallel ring
// regions spec §3 requires (online, power, traces), C5's live lists, C3's
// scheduler (for the EXECUTION/TRAIN mode gate), a CPU sampler, and an
// optional model-service client.
func NewEngine(online, power, traces *Ring, live *livelist.Lists, sched *dispatch.Scheduler, cpu CPUSampler, model *modelclient.Client, numSlots int, windowPeriod time.Duration, windowsPerTrainCycle int, obsPerWindow float64) *Engine {
	return &Engine{
		online:               online,
		power:                power,
		traces:               traces,
		live:                 live,
		sched:                sched,
		cpu:                  cpu,
		model:                model,
		numSlots:             numSlots,
		windowPeriod:         windowPeriod,
		windowsPerTrainCycle: windowsPerTrainCycle,
		obsPerWindow:         obsPerWindow,
	}
}

// Run drives the ticker loop until ctx is cancelled (spec §4.6). Each tick
// closes one window, frames its OnlineRecord into the online ring's
// current segment, frames the power/trace samples into their own ring
// segments, and toggles all three in lockstep. Every windowsPerTrainCycle
// ticks, it gates the scheduler into TRAIN mode, runs one model-service
// round, and resumes EXECUTION mode.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.windowPeriod)
	defer ticker.Stop()

	logger := logging.GetMonitorLogger()

	windowStart := kernel.Now()
	tickCount := 0

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			tickCount++
			now := kernel.Now()
			w := livelist.Window{Initial: windowStart, Start: windowStart, Finish: now}

			rec := e.buildRecord(w)
			if err := e.writeRecord(rec); err != nil {
				logging.Fatal("MONITOR", -1, err)
				return err
			}
			if e.onWindow != nil {
				e.onWindow(rec)
			}

			e.online.Toggle()

			var sample *Sample
			var elapsed time.Duration
			if e.perf != nil {
				acqStart := time.Now()
				sample = e.perf.Acquire()
				elapsed = time.Since(acqStart)
			}
			if err := e.writePowerTrace(sample, elapsed); err != nil {
				logging.Fatal("MONITOR", -1, err)
				return err
			}
			if sample != nil && e.onSample != nil {
				e.onSample(sample)
			}

			windowStart = now

			if e.windowsPerTrainCycle > 0 && e.model != nil && tickCount%e.windowsPerTrainCycle == 0 {
				if err := e.runTrainingPhase(); err != nil {
					logging.Fatal("MONITOR", -1, err)
					return err
				}
			}

			logger.WithField("slots", e.numSlots).Debug("monitor window closed")
		}
	}
}

func (e *Engine) buildRecord(w livelist.Window) *OnlineRecord {
	rec := &OnlineRecord{Window: w, Slots: make([][]KernelEntry, e.numSlots)}

	if e.cpu != nil {
		if user, k, idle, err := e.cpu.Sample(); err == nil {
			rec.CPUUser, rec.CPUKernel, rec.CPUIdle = user, k, idle
		}
	}

	for s := 0; s < e.numSlots; s++ {
		for _, kr := range e.live.Attribute(s, w) {
			rec.Slots[s] = append(rec.Slots[s], KernelEntry{
				Label:  kr.Label,
				Arrive: kr.MeasuredArrival,
				Finish: kr.MeasuredFinish,
			})
		}
	}
	return rec
}

func (e *Engine) writeRecord(rec *OnlineRecord) error {
	buf := e.online.Current()
	_, err := EncodeOnlineRecord(buf, rec)
	return err
}

// writePowerTrace frames sample into the power and traces ring segments
// (spec §3's other two parallel regions) and toggles both in lockstep with
// the online ring so all three stay aligned on the same window index. A
// nil sample (no perf source configured) still advances both rings so the
// M-segment rotation spec §4.6 describes never desynchronizes across the
// three files.
func (e *Engine) writePowerTrace(sample *Sample, elapsed time.Duration) error {
	if _, err := EncodePowerSample(e.power.Current(), sample, elapsed); err != nil {
		return err
	}
	if _, err := EncodeTraceSample(e.traces.Current(), sample); err != nil {
		return err
	}
	e.power.Toggle()
	e.traces.Toggle()
	return nil
}

// runTrainingPhase implements spec §4.6's suspend-dispatch / invoke-model /
// idle / resume sequence. The scheduler gate means no new kernel is
// dispatched while this runs; already-running kernels are unaffected.
func (e *Engine) runTrainingPhase() error {
	e.sched.SetMode(dispatch.Train)
	defer e.sched.SetMode(dispatch.Execution)

	obsToWait, err := e.model.Operation(uint32(e.windowsPerTrainCycle))
	if err != nil {
		return err
	}
	if obsToWait > 0 {
		idle := (float64(obsToWait) / e.obsPerWindow) * float64(e.windowPeriod)
		time.Sleep(time.Duration(idle))
	}
	return nil
}
