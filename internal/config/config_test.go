package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/inferedge/runtimecore/internal/config"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := config.Defaults()
	if err := config.Validate(&cfg); err != nil {
		t.Fatalf("Defaults() failed validation: %v", err)
	}
}

func TestValidateRejectsBadSchemaVersion(t *testing.T) {
	cfg := config.Defaults()
	cfg.SchemaVersion = "2"
	if err := config.Validate(&cfg); err == nil {
		t.Fatal("expected error for unsupported schema_version")
	}
}

func TestValidateRejectsBadAdaptiveProfile(t *testing.T) {
	cfg := config.Defaults()
	cfg.Budget.AdaptiveProfile = "aggressive"
	if err := config.Validate(&cfg); err == nil {
		t.Fatal("expected error for unknown adaptive_profile")
	}
}

func TestValidateRejectsOutOfRangeThermalLevel(t *testing.T) {
	cfg := config.Defaults()
	cfg.Budget.MaxThermalLevel = 7
	if err := config.Validate(&cfg); err == nil {
		t.Fatal("expected error for out-of-range max_thermal_level")
	}
}

func TestValidateRejectsEmptySocketPathWhenControlEnabled(t *testing.T) {
	cfg := config.Defaults()
	cfg.Control.Enabled = true
	cfg.Control.SocketPath = ""
	if err := config.Validate(&cfg); err == nil {
		t.Fatal("expected error for empty control.socket_path with control enabled")
	}
}

func TestValidateAggregatesMultipleErrors(t *testing.T) {
	cfg := config.Defaults()
	cfg.SchemaVersion = "9"
	cfg.Telemetry.LogLevel = "verbose"
	err := config.Validate(&cfg)
	if err == nil {
		t.Fatal("expected aggregated validation error")
	}
	msg := err.Error()
	if !contains(msg, "schema_version") || !contains(msg, "log_level") {
		t.Fatalf("expected both violations in error, got: %s", msg)
	}
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "runtimecore.yaml")
	data := []byte(`
schema_version: "1"
instance_id: edge-node-7
budget:
  adaptive_profile: performance
telemetry:
  log_level: debug
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.InstanceID != "edge-node-7" {
		t.Errorf("InstanceID = %q, want edge-node-7", cfg.InstanceID)
	}
	if cfg.Budget.AdaptiveProfile != "performance" {
		t.Errorf("AdaptiveProfile = %q, want performance", cfg.Budget.AdaptiveProfile)
	}
	if cfg.Telemetry.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.Telemetry.LogLevel)
	}
	// Fields not present in the file retain their defaults.
	if cfg.Scheduler.WarmupSampleCount != 20 {
		t.Errorf("WarmupSampleCount = %d, want default 20", cfg.Scheduler.WarmupSampleCount)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	data := []byte(`
schema_version: "1"
budget:
  adaptive_profile: nonsense
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	if _, err := config.Load(path); err == nil {
		t.Fatal("expected Load() to fail validation")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := config.Load("/nonexistent/path/runtimecore.yaml"); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
