package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/inferedge/runtimecore/internal/backend/simbackend"
	"github.com/inferedge/runtimecore/internal/budgetengine"
	"github.com/inferedge/runtimecore/internal/config"
	"github.com/inferedge/runtimecore/internal/control"
	"github.com/inferedge/runtimecore/internal/sampler"
	"github.com/inferedge/runtimecore/internal/scheduler"
	"github.com/inferedge/runtimecore/internal/telemetry"
)

// newRunCmd builds the "run" subcommand: the core's daemon entrypoint.
//
// Startup sequence (grounded on the teacher's cmd/octoreflex/main.go):
//  1. Load and validate config.
//  2. Initialise structured logger (zap).
//  3. Build samplers (thermal/battery/resource).
//  4. Build the Budget Engine and seed it from any explicit config values.
//  5. Build the Scheduler.
//  6. Start Prometheus metrics server.
//  7. Start the control socket.
//  8. Register SIGHUP handler for config hot-reload.
//  9. Run the Scheduler's driver loop.
// 10. Block on SIGINT/SIGTERM for graceful shutdown.
func newRunCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the Runtime Supervision Core",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCore(configPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "/etc/inferedge/runtimecore.yaml", "Path to runtimecore.yaml")
	return cmd
}

func runCore(configPath string) error {
	cfg, err := loadOrDefaultConfig(configPath)
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}

	log, err := buildLogger(cfg.Telemetry.LogLevel, cfg.Telemetry.LogFormat)
	if err != nil {
		return fmt.Errorf("logger init failed: %w", err)
	}
	defer log.Sync() //nolint:errcheck

	log.Info("runtime supervision core starting",
		zap.String("version", config.Version),
		zap.String("commit", config.GitCommit),
		zap.String("instance_id", cfg.InstanceID),
		zap.String("config", configPath),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	samplers := buildSamplers(cfg, log)
	defer samplers.Battery.Close()

	budget := budgetengine.New()
	var explicit budgetengine.Budget
	if v := cfg.Budget.P95MS; v > 0 {
		explicit.P95MS = &v
	}
	if v := cfg.Budget.DrainPer600S; v > 0 {
		explicit.DrainPer600S = &v
	}
	if v := sampler.ThermalLevel(cfg.Budget.MaxThermalLevel); v >= 0 {
		explicit.MaxThermalLevel = &v
	}
	if v := cfg.Budget.MemoryCeilingMB; v > 0 {
		explicit.MemoryCeilingMB = &v
	}
	budget.Set(explicit)
	profile, err := parseProfileFlag(cfg.Budget.AdaptiveProfile)
	if err != nil {
		return err
	}

	sched := scheduler.New(log, budget, samplers, profile)

	if cfg.Telemetry.TracingEnabled {
		tracer := telemetry.NewTracer(cfg.InstanceID, nil)
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := tracer.Shutdown(shutdownCtx); err != nil {
				log.Warn("tracer shutdown failed", zap.Error(err))
			}
		}()
		tracer.SetGlobal()
		sched.SetTracer(tracer)
	}

	metrics := telemetry.NewMetrics(log)
	sched.SetMetrics(metrics)
	bus := telemetry.NewViolationBus()
	bus.Subscribe(metrics.MetricsListener())
	bus.Subscribe(func(v budgetengine.Violation) {
		log.Warn("budget violation",
			zap.String("constraint", v.Constraint.String()),
			zap.Float64("measured", v.Measured),
			zap.Float64("budget", v.Budget),
			zap.String("mitigation", v.MitigationText),
		)
	})
	sched.OnViolation(bus.Publish)

	// g coordinates the core's background goroutines (metrics server,
	// control socket, scheduler driver loop) so a failure in any one of
	// them cancels ctx and unwinds the rest together, rather than leaving
	// orphaned goroutines behind a silently-dead subsystem.
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("metrics server started", zap.String("addr", cfg.Telemetry.MetricsAddr))
		return metrics.ServeMetrics(gctx, cfg.Telemetry.MetricsAddr)
	})

	if cfg.Control.Enabled {
		view := control.NewSchedulerView(sched)
		ctrlSrv := control.NewServer(cfg.Control.SocketPath, view, log)
		g.Go(func() error {
			log.Info("control socket listening", zap.String("path", cfg.Control.SocketPath))
			return ctrlSrv.ListenAndServe(gctx)
		})
	}

	g.Go(func() error {
		log.Info("scheduler driver loop started")
		sched.Run(gctx)
		return nil
	})

	sighup := make(chan os.Signal, 1)
	signal.Notify(sighup, syscall.SIGHUP)
	go func() {
		for range sighup {
			log.Info("SIGHUP received, reloading config")
			newCfg, err := config.Load(configPath)
			if err != nil {
				log.Error("config hot-reload failed, retaining old config", zap.Error(err))
				continue
			}
			cfg = newCfg
			log.Info("config hot-reload successful", zap.String("adaptive_profile", cfg.Budget.AdaptiveProfile))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info("shutdown signal received", zap.String("signal", sig.String()))

	cancel()
	sched.Stop()
	if err := g.Wait(); err != nil {
		log.Warn("background goroutine exited with error during shutdown", zap.Error(err))
	}
	log.Info("runtime supervision core shutdown complete")
	return nil
}

func loadOrDefaultConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); err != nil {
		cfg := config.Defaults()
		return &cfg, nil
	}
	return config.Load(path)
}

func buildSamplers(cfg *config.Config, log *zap.Logger) scheduler.Samplers {
	if runtime.GOOS != "linux" {
		log.Warn("non-Linux platform: thermal/battery/resource readers unavailable, samplers will report unsupported")
		return scheduler.Samplers{
			Thermal:  sampler.NewThermalSampler(sampler.UnsupportedThermalReader{}),
			Battery:  sampler.NewBatterySampler(sampler.UnsupportedBatteryReader{}),
			Resource: sampler.NewResourceSampler(sampler.UnsupportedResourceReader{}),
		}
	}
	return scheduler.Samplers{
		Thermal:  sampler.NewThermalSampler(sampler.NewLinuxThermalReader(cfg.Sampler.ThermalZonePath)),
		Battery:  sampler.NewBatterySampler(sampler.NewLinuxBatteryReader(cfg.Sampler.BatteryCapacityPath)),
		Resource: sampler.NewResourceSampler(sampler.NewLinuxResourceReader()),
	}
}

func parseProfileFlag(name string) (budgetengine.AdaptiveProfile, error) {
	switch name {
	case "none", "":
		return budgetengine.ProfileNone, nil
	case "conservative":
		return budgetengine.ProfileConservative, nil
	case "balanced":
		return budgetengine.ProfileBalanced, nil
	case "performance":
		return budgetengine.ProfilePerformance, nil
	default:
		return budgetengine.ProfileNone, fmt.Errorf("unknown adaptive profile %q", name)
	}
}

func buildLogger(level, format string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	var cfg zap.Config
	if format == "console" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)
	return cfg.Build()
}

// newSimBackend constructs the in-memory backend double used when no real
// ContextHandle runtime is linked in. sim.go is its only caller; runCore
// builds no backend.
func newSimBackend() *simbackend.Backend {
	return simbackend.New()
}
