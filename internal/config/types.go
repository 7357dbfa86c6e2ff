package config

import "time"

// Config is the root runtime configuration (SPEC_FULL.md §1.2), loaded from
// YAML with environment-variable expansion, matching the shape and
// validation style of the teacher's BenchmarkConfig.
type Config struct {
	NumSlots  int `yaml:"num_slots"`
	NumLabels int `yaml:"num_labels"`

	LogLevel string `yaml:"log_level"`

	Monitor      MonitorConfig      `yaml:"monitor"`
	ModelService ModelServiceConfig `yaml:"model_service"`
	Workload     WorkloadConfig     `yaml:"workload"`
	Output       OutputConfig       `yaml:"output"`
	HAL          HALConfig          `yaml:"hal"`
	Telemetry    TelemetryConfig    `yaml:"telemetry"`
}

// MonitorConfig configures C6, the monitoring engine (spec §4.6).
type MonitorConfig struct {
	// WindowMs is the ticker period between successive monitoring windows.
	WindowMs int `yaml:"window_ms"`
	// Segments is the ring buffer's segment count. Spec §3 defines a
	// single parameter M = measurements_per_training that both sizes the
	// ring and gates the training cadence, so this is never read from
	// YAML: applyDefaults derives it from WindowsPerTrainCycle (M), 2 when
	// M <= 1 for the classic ping-pong case (spec §4.6 "If M == 1, the
	// ring is a two-buffer ping-pong").
	Segments int `yaml:"-"`
	// RingDir is the directory ring segment files are created in (spec §6
	// Filesystem outputs: online-record tagged streams).
	RingDir string `yaml:"ring_dir"`
	// SegmentBytes is the mmap-backed size of each ring segment.
	SegmentBytes int `yaml:"segment_bytes"`
	// WindowsPerTrainCycle is how many monitor ticks elapse between
	// successive training-phase invocations (spec §4.6); 0 disables
	// training entirely.
	WindowsPerTrainCycle int `yaml:"windows_per_train_cycle"`
	// PerfCgroupPath is the cgroup path PerfSource attaches to; empty
	// disables hardware counter acquisition.
	PerfCgroupPath string `yaml:"perf_cgroup_path"`
}

// ModelServiceConfig configures C7, the external model-service client
// (spec §4.6, §4.7).
type ModelServiceConfig struct {
	TrainAddr    string        `yaml:"train_addr"`
	PredictAddr  string        `yaml:"predict_addr"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ObsPerWindow float64       `yaml:"obs_per_window"`
}

// WorkloadConfig locates the producer's three binary input files (spec §6
// Filesystem inputs).
type WorkloadConfig struct {
	InputDir string `yaml:"input_dir"`
}

// OutputConfig locates the final kernels_info.bin flush (spec §6
// Filesystem outputs).
type OutputConfig struct {
	KernelsInfoPath string `yaml:"kernels_info_path"`
}

// HALConfig selects and configures the accelerator execution backend
// (internal/hal).
type HALConfig struct {
	Backend      string        `yaml:"backend"` // "simulated" | "docker"
	Image        string        `yaml:"image"`
	PerExecution time.Duration `yaml:"per_execution"`
	// RDTPartition names the RDT partition slot occupancy should be bound
	// to; empty disables RDT binding entirely (internal/slots.RDTBinder).
	RDTPartition string `yaml:"rdt_partition"`
}

// TelemetryConfig optionally mirrors per-window samples into InfluxDB
// (internal/telemetry), grounded on the teacher's database.Config.
type TelemetryConfig struct {
	Influx InfluxConfig `yaml:"influx"`
}

type InfluxConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Token   string `yaml:"token"`
	Org     string `yaml:"org"`
	Bucket  string `yaml:"bucket"`
}
