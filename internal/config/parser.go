// Package config loads the runtime configuration, following the teacher's
// parser.go shape: read the YAML file, expand ${VAR} environment
// references, unmarshal, then validate (spec §1.2 ambient configuration
// stack). godotenv optionally seeds process environment variables from a
// .env file before expansion, matching cmd/main.go's startup sequence.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"fpgasched/internal/logging"
)

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads and validates the configuration at filepath. It loads a .env
// file from the current working directory first (if present) so ${VAR}
// expansion can reference
// secrets that are not checked into the YAML file itself.
func Load(filepath string) (*Config, error) {
	logger := logging.GetLogger()

	_ = godotenv.Load()

	data, err := os.ReadFile(filepath)
	if err != nil {
		logger.WithField("filepath", filepath).WithError(err).Error("failed to read config file")
		return nil, err
	}

	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		logger.WithField("filepath", filepath).WithError(err).Error("failed to parse config file")
		return nil, err
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func expandEnvVars(content string) string {
	return envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		name := strings.Trim(match, "${}")
		if v := os.Getenv(name); v != "" {
			return v
		}
		return match
	})
}

func applyDefaults(cfg *Config) {
	if cfg.NumLabels == 0 {
		cfg.NumLabels = 11
	}
	if cfg.Monitor.WindowMs == 0 {
		cfg.Monitor.WindowMs = 100
	}
	if cfg.Monitor.SegmentBytes == 0 {
		cfg.Monitor.SegmentBytes = 1 << 20
	}
	if cfg.Monitor.RingDir == "" {
		cfg.Monitor.RingDir = "ring"
	}
	if cfg.ModelService.ObsPerWindow == 0 {
		cfg.ModelService.ObsPerWindow = 1.72
	}
	if cfg.ModelService.DialTimeout == 0 {
		cfg.ModelService.DialTimeout = 5 * time.Second
	}
	if cfg.HAL.Backend == "" {
		cfg.HAL.Backend = "simulated"
	}
	if cfg.HAL.PerExecution == 0 {
		cfg.HAL.PerExecution = time.Millisecond
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	// Spec §3: M = measurements_per_training sizes the ring AND gates the
	// training cadence; Segments is derived from WindowsPerTrainCycle
	// rather than independently configurable, so the two can never drift
	// apart (spec §4.6 "one training phase holding M windows end-to-end
	// in memory").
	if cfg.Monitor.WindowsPerTrainCycle > 1 {
		cfg.Monitor.Segments = cfg.Monitor.WindowsPerTrainCycle
	} else {
		cfg.Monitor.Segments = 2
	}
}

func validate(cfg *Config) error {
	if cfg.NumSlots <= 0 {
		return fmt.Errorf("num_slots must be greater than 0")
	}
	if cfg.Workload.InputDir == "" {
		return fmt.Errorf("workload.input_dir is required")
	}
	if cfg.Output.KernelsInfoPath == "" {
		return fmt.Errorf("output.kernels_info_path is required")
	}
	switch cfg.HAL.Backend {
	case "simulated":
	case "docker":
		if cfg.HAL.Image == "" {
			return fmt.Errorf("hal.image is required when hal.backend is \"docker\"")
		}
	default:
		return fmt.Errorf("hal.backend must be \"simulated\" or \"docker\", got %q", cfg.HAL.Backend)
	}
	if cfg.Telemetry.Influx.Enabled {
		if cfg.Telemetry.Influx.URL == "" || cfg.Telemetry.Influx.Token == "" || cfg.Telemetry.Influx.Org == "" || cfg.Telemetry.Influx.Bucket == "" {
			return fmt.Errorf("telemetry.influx is enabled but incomplete")
		}
	}
	return nil
}
