// Command fpgasched is the workload manager's entry point: a single Cobra
// root command with one positional argument, following the teacher's
// cmd/main.go shape (PersistentPreRunE for --log-level, RunE per
// subcommand) but collapsed to the two-mode CLI spec §6 defines:
// `fpgasched <num_workloads>` to run, `fpgasched info` to print the
// resolved configuration and exit.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"fpgasched/internal/config"
	"fpgasched/internal/dispatch"
	"fpgasched/internal/hal"
	"fpgasched/internal/kernel"
	"fpgasched/internal/livelist"
	"fpgasched/internal/logging"
	"fpgasched/internal/modelclient"
	"fpgasched/internal/monitor"
	"fpgasched/internal/output"
	"fpgasched/internal/producer"
	"fpgasched/internal/slots"
	"fpgasched/internal/telemetry"
	"fpgasched/internal/workerpool"
)

func main() {
	var configFile string
	var logLevel string

	rootCmd := &cobra.Command{
		Use:   "fpgasched <num_workloads>|info",
		Short: "Reconfigurable-accelerator workload manager",
		Long:  "Admits, dispatches, and monitors a stream of accelerator kernels across a fixed pool of hardware execution slots.",
		Args:  cobra.ExactArgs(1),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if logLevel != "" {
				if err := logging.SetLogLevel(logLevel); err != nil {
					return fmt.Errorf("invalid log level: %w", err)
				}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			if args[0] == "info" {
				return printInfo(cfg)
			}

			numWorkloads, err := strconv.Atoi(args[0])
			if err != nil || numWorkloads <= 0 {
				return fmt.Errorf("num_workloads must be a positive integer or the literal \"info\", got %q", args[0])
			}

			return run(cfg, numWorkloads)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "config.yaml", "Path to runtime configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Set log level (trace, debug, info, warn, error)")

	if err := rootCmd.Execute(); err != nil {
		logrus.WithError(err).Error("fpgasched exited with error")
		os.Exit(1)
	}
}

func printInfo(cfg *config.Config) error {
	fmt.Printf("num_slots=%d num_labels=%d\n", cfg.NumSlots, cfg.NumLabels)
	fmt.Printf("monitor: window_ms=%d segments=%d ring_dir=%s windows_per_train_cycle=%d\n",
		cfg.Monitor.WindowMs, cfg.Monitor.Segments, cfg.Monitor.RingDir, cfg.Monitor.WindowsPerTrainCycle)
	fmt.Printf("model_service: train_addr=%s predict_addr=%s obs_per_window=%.3f\n",
		cfg.ModelService.TrainAddr, cfg.ModelService.PredictAddr, cfg.ModelService.ObsPerWindow)
	fmt.Printf("workload: input_dir=%s\n", cfg.Workload.InputDir)
	fmt.Printf("output: kernels_info_path=%s\n", cfg.Output.KernelsInfoPath)
	fmt.Printf("hal: backend=%s image=%s\n", cfg.HAL.Backend, cfg.HAL.Image)
	fmt.Printf("telemetry: influx_enabled=%v\n", cfg.Telemetry.Influx.Enabled)
	return nil
}

// run wires every subsystem (C1-C7) together, drives num_workloads
// workloads to completion, and flushes kernels_info.bin at shutdown. A
// SIGINT lets in-flight dispatches drain rather than killing the process
// outright (spec §5 "drain in-flight work, then exit").
func run(cfg *config.Config, numWorkloads int) error {
	logger := logging.GetLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := kernel.NewStore()

	var binder slots.Binder
	if cfg.HAL.RDTPartition != "" {
		binder = slots.NewRDTBinder(cfg.HAL.RDTPartition)
	}
	slotT := slots.NewTable(cfg.NumSlots, binder)
	live := livelist.New(cfg.NumSlots)
	pool := workerpool.NewPool(cfg.NumSlots + 1)
	defer pool.Shutdown()

	backend, err := newBackend(cfg)
	if err != nil {
		return fmt.Errorf("hal: %w", err)
	}
	defer backend.Close()

	sched := dispatch.NewScheduler(store, cfg.NumLabels, cfg.NumSlots, slotT, live, pool, backend)

	// Spec §3/§6 require three parallel ring-mapped regions — online,
	// power, traces — each an M-segment rotation of the same Ring
	// machinery, one subdirectory per region under monitor.ring_dir.
	onlineRing, err := monitor.NewRing(filepath.Join(cfg.Monitor.RingDir, "online"), cfg.Monitor.Segments, cfg.Monitor.SegmentBytes)
	if err != nil {
		return fmt.Errorf("monitor: new online ring: %w", err)
	}
	defer onlineRing.Close(false)

	powerRing, err := monitor.NewRing(filepath.Join(cfg.Monitor.RingDir, "power"), cfg.Monitor.Segments, cfg.Monitor.SegmentBytes)
	if err != nil {
		return fmt.Errorf("monitor: new power ring: %w", err)
	}
	defer powerRing.Close(false)

	tracesRing, err := monitor.NewRing(filepath.Join(cfg.Monitor.RingDir, "traces"), cfg.Monitor.Segments, cfg.Monitor.SegmentBytes)
	if err != nil {
		return fmt.Errorf("monitor: new traces ring: %w", err)
	}
	defer tracesRing.Close(false)

	var modelClient *modelclient.Client
	if cfg.ModelService.TrainAddr != "" && cfg.ModelService.PredictAddr != "" {
		modelClient, err = modelclient.Dial(ctx, cfg.ModelService.TrainAddr, cfg.ModelService.PredictAddr, uint32(cfg.Monitor.WindowsPerTrainCycle), cfg.ModelService.DialTimeout)
		if err != nil {
			return fmt.Errorf("model service: %w", err)
		}
		defer modelClient.Close()
	}

	var sink *telemetry.InfluxSink
	if cfg.Telemetry.Influx.Enabled {
		sink, err = telemetry.NewInfluxSink(cfg.Telemetry.Influx)
		if err != nil {
			return fmt.Errorf("telemetry: %w", err)
		}
		defer sink.Close()
	}

	cpu := monitor.NewProcStatSampler()
	eng := monitor.NewEngine(onlineRing, powerRing, tracesRing, live, sched, cpu, modelClient, cfg.NumSlots,
		time.Duration(cfg.Monitor.WindowMs)*time.Millisecond, cfg.Monitor.WindowsPerTrainCycle, cfg.ModelService.ObsPerWindow)

	if sink != nil {
		eng.SetWindowSink(func(rec *monitor.OnlineRecord) {
			if err := sink.WriteWindow(rec); err != nil {
				logger.WithError(err).Warn("failed to write window to InfluxDB")
			}
		})
	}

	if cfg.Monitor.PerfCgroupPath != "" {
		perfSrc, err := monitor.NewPerfSource(cfg.Monitor.PerfCgroupPath, runtime.NumCPU())
		if err != nil {
			logger.WithError(err).Warn("perf counters unavailable, continuing without them")
		} else {
			defer perfSrc.Close()
			eng.SetPerfSource(perfSrc, func(s *monitor.Sample) {
				logger.WithFields(logrus.Fields{
					"cache_misses": s.CacheMisses,
					"ipc":          s.InstructionsPerCycle,
				}).Debug("perf sample")
			})
		}
	}

	monitorCtx, cancelMonitor := context.WithCancel(context.Background())
	defer cancelMonitor()
	monitorDone := make(chan error, 1)
	go func() { monitorDone <- eng.Run(monitorCtx) }()

	for w := 0; w < numWorkloads; w++ {
		if ctx.Err() != nil {
			break
		}

		n, err := workloadSize(cfg.Workload.InputDir, w)
		if err != nil {
			return fmt.Errorf("workload %d: %w", w, err)
		}

		prod := producer.New(store, sched, cfg.NumLabels, cfg.NumSlots, time.Now().UnixNano())

		dispatchDone := make(chan error, 1)
		go func() { dispatchDone <- sched.Run(ctx, n) }()

		if err := prod.Run(cfg.Workload.InputDir, w); err != nil {
			return fmt.Errorf("workload %d: producer: %w", w, err)
		}

		if err := <-dispatchDone; err != nil && ctx.Err() == nil {
			return fmt.Errorf("workload %d: dispatch: %w", w, err)
		}

		logger.WithField("workload", w).WithField("kernels", n).Info("workload complete")
	}

	cancelMonitor()
	<-monitorDone

	// Wait for in-flight kernels to finish before flushing their records.
	pool.Shutdown()

	if err := output.WriteKernelsInfo(cfg.Output.KernelsInfoPath, store.Drain()); err != nil {
		return fmt.Errorf("output: %w", err)
	}

	logger.Info("shutdown complete")
	return nil
}

func newBackend(cfg *config.Config) (hal.Backend, error) {
	switch cfg.HAL.Backend {
	case "docker":
		return hal.NewDockerBackend(cfg.HAL.Image)
	default:
		return hal.NewSimulatedBackend(cfg.HAL.PerExecution), nil
	}
}

// workloadSize reports NUM_KERNELS for workload w by statting its
// kernel_id file (spec §6: all three input sequences share that length).
func workloadSize(dir string, w int) (int, error) {
	path := fmt.Sprintf("%s/kernel_id_%d.bin", dir, w)
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return int(info.Size() / 4), nil
}
