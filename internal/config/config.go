// Package config provides configuration loading, validation, and
// hot-reload for the Runtime Supervision Core.
//
// Configuration file: /etc/inferedge/runtimecore.yaml (default)
// Schema version: 1
//
// Hot-reload:
//   - The core listens for SIGHUP.
//   - On SIGHUP: re-read and re-validate the config file.
//   - A valid new config replaces the core's in-memory copy. Components
//     already running (budget engine, scheduler profile, logger, metrics
//     server, control socket) are not reconfigured from it.
//   - If the new config is invalid, the old config remains active and an
//     error is logged. The core does NOT crash on invalid hot-reload
//     config.
//
// Validation:
//   - All required fields must be present.
//   - Numeric ranges enforced.
//   - Invalid config on startup: the core refuses to start (fatal error).
//   - Invalid config on hot-reload: logged, old config retained.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Version, GitCommit, BuildTime are injected by the build via -ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// Config is the root configuration structure for the core.
// All fields have defaults; see Defaults() for values.
type Config struct {
	// SchemaVersion must be "1". Future versions will trigger migration.
	SchemaVersion string `yaml:"schema_version"`

	// InstanceID identifies this core instance in logs and traces.
	// Default: hostname.
	InstanceID string `yaml:"instance_id"`

	// Scheduler configures the priority queue and driver loop.
	Scheduler SchedulerConfig `yaml:"scheduler"`

	// Budget configures the declarative budget and adaptive profile.
	Budget BudgetConfig `yaml:"budget"`

	// Sampler configures the thermal/battery/resource samplers.
	Sampler SamplerConfig `yaml:"sampler"`

	// Telemetry configures metrics and tracing.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Control configures the operator control socket.
	Control ControlConfig `yaml:"control"`
}

// SchedulerConfig holds Scheduler-level operational parameters.
type SchedulerConfig struct {
	// WarmupSampleCount is the number of latency samples that trigger
	// adaptive budget resolution. Default: 20 (spec §4.6). Validated
	// only: the Scheduler uses its own fixed threshold of 20.
	WarmupSampleCount int `yaml:"warmup_sample_count"`

	// DrainPollInterval is how often the driver loop polls an empty
	// queue before re-checking for shutdown. Default: 5ms. Validated
	// only: the Scheduler uses its own fixed 5ms interval.
	DrainPollInterval time.Duration `yaml:"drain_poll_interval"`
}

// BudgetConfig holds the declarative budget and adaptive profile
// selection (spec §3, §4.5).
type BudgetConfig struct {
	// AdaptiveProfile selects the multiplier table: none, conservative,
	// balanced, performance. Default: balanced.
	AdaptiveProfile string `yaml:"adaptive_profile"`

	// P95MS is an explicit (non-adaptive) p95 latency ceiling in
	// milliseconds. 0 means unset.
	P95MS float64 `yaml:"p95_ms"`

	// DrainPer600S is an explicit battery drain ceiling, percent per
	// 600s. 0 means unset.
	DrainPer600S float64 `yaml:"drain_per_600s"`

	// MaxThermalLevel is an explicit thermal ceiling (-1..3). -1 means
	// unset.
	MaxThermalLevel int `yaml:"max_thermal_level"`

	// MemoryCeilingMB is an explicit RSS ceiling. 0 means unset.
	MemoryCeilingMB float64 `yaml:"memory_ceiling_mb"`
}

// SamplerConfig holds sampler polling parameters.
type SamplerConfig struct {
	// ThermalZonePath is the Linux thermal zone temperature file to
	// poll. Default: /sys/class/thermal/thermal_zone0/temp.
	ThermalZonePath string `yaml:"thermal_zone_path"`

	// BatteryCapacityPath is the Linux battery capacity file to poll.
	// Default: /sys/class/power_supply/BAT0/capacity.
	BatteryCapacityPath string `yaml:"battery_capacity_path"`
}

// TelemetryConfig holds metrics and logging parameters.
type TelemetryConfig struct {
	// MetricsAddr is the Prometheus metrics HTTP bind address.
	// Default: 127.0.0.1:9091.
	MetricsAddr string `yaml:"metrics_addr"`

	// LogLevel controls the minimum log level (debug, info, warn, error).
	// Default: info.
	LogLevel string `yaml:"log_level"`

	// LogFormat controls the log output format (json, console).
	// Default: json.
	LogFormat string `yaml:"log_format"`

	// TracingEnabled gates per-task OpenTelemetry spans. Default: false.
	TracingEnabled bool `yaml:"tracing_enabled"`
}

// ControlConfig holds the operator control socket parameters.
type ControlConfig struct {
	// SocketPath is the Unix domain socket path for the control CLI.
	// Default: /run/inferedge/runtimecore.sock.
	SocketPath string `yaml:"socket_path"`

	// Enabled controls whether the control socket is active. Default: true.
	Enabled bool `yaml:"enabled"`
}

// Defaults returns a Config populated with all default values.
func Defaults() Config {
	hostname, _ := os.Hostname()
	return Config{
		SchemaVersion: "1",
		InstanceID:    hostname,
		Scheduler: SchedulerConfig{
			WarmupSampleCount: 20,
			DrainPollInterval: 5 * time.Millisecond,
		},
		Budget: BudgetConfig{
			AdaptiveProfile: "balanced",
			MaxThermalLevel: -1,
		},
		Sampler: SamplerConfig{
			ThermalZonePath:     "/sys/class/thermal/thermal_zone0/temp",
			BatteryCapacityPath: "/sys/class/power_supply/BAT0/capacity",
		},
		Telemetry: TelemetryConfig{
			MetricsAddr: "127.0.0.1:9091",
			LogLevel:    "info",
			LogFormat:   "json",
		},
		Control: ControlConfig{
			Enabled:    true,
			SocketPath: "/run/inferedge/runtimecore.sock",
		},
	}
}

// Load reads and validates a config file from the given path.
// Returns the merged config (defaults overridden by file values).
// Returns an error if the file cannot be read, parsed, or validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse %q: %w", path, err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config.Load: validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate checks all config fields for correctness.
// Returns a descriptive error listing all violations found.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.SchemaVersion != "1" {
		errs = append(errs, fmt.Sprintf("schema_version must be \"1\", got %q", cfg.SchemaVersion))
	}
	if cfg.InstanceID == "" {
		errs = append(errs, "instance_id must not be empty")
	}
	if cfg.Scheduler.WarmupSampleCount < 1 {
		errs = append(errs, fmt.Sprintf("scheduler.warmup_sample_count must be >= 1, got %d", cfg.Scheduler.WarmupSampleCount))
	}
	if cfg.Scheduler.DrainPollInterval <= 0 {
		errs = append(errs, fmt.Sprintf("scheduler.drain_poll_interval must be > 0, got %s", cfg.Scheduler.DrainPollInterval))
	}
	switch cfg.Budget.AdaptiveProfile {
	case "none", "conservative", "balanced", "performance":
	default:
		errs = append(errs, fmt.Sprintf("budget.adaptive_profile must be one of none|conservative|balanced|performance, got %q", cfg.Budget.AdaptiveProfile))
	}
	if cfg.Budget.MaxThermalLevel < -1 || cfg.Budget.MaxThermalLevel > 3 {
		errs = append(errs, fmt.Sprintf("budget.max_thermal_level must be in [-1, 3], got %d", cfg.Budget.MaxThermalLevel))
	}
	if cfg.Budget.P95MS < 0 {
		errs = append(errs, fmt.Sprintf("budget.p95_ms must be >= 0, got %f", cfg.Budget.P95MS))
	}
	if cfg.Budget.P95MS > 0 && cfg.Budget.P95MS < 500 {
		// Validation warning surfaced at the Budget Engine layer too
		// (spec §4.5); config-time rejection would be too strict since
		// an operator may deliberately want an aggressive ceiling.
	}
	if cfg.Telemetry.MetricsAddr == "" {
		errs = append(errs, "telemetry.metrics_addr must not be empty")
	}
	switch cfg.Telemetry.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("telemetry.log_level must be one of debug|info|warn|error, got %q", cfg.Telemetry.LogLevel))
	}
	switch cfg.Telemetry.LogFormat {
	case "json", "console":
	default:
		errs = append(errs, fmt.Sprintf("telemetry.log_format must be one of json|console, got %q", cfg.Telemetry.LogFormat))
	}
	if cfg.Control.Enabled && cfg.Control.SocketPath == "" {
		errs = append(errs, "control.socket_path must not be empty when control.enabled is true")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s",
			joinStrings(errs, "\n  - "))
	}
	return nil
}

// joinStrings joins a slice of strings with a separator.
func joinStrings(ss []string, sep string) string {
	if len(ss) == 0 {
		return ""
	}
	result := ss[0]
	for _, s := range ss[1:] {
		result += sep + s
	}
	return result
}
