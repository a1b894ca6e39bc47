package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"varg.is/gatewall/internal/metrics"
	"varg.is/gatewall/internal/notification"
	"varg.is/gatewall/internal/power"
	"varg.is/gatewall/internal/probe"
	"varg.is/gatewall/internal/watchdog"
)

// RunWatchdog runs the connectivity watchdog in the foreground until it
// powers the host off or receives a termination signal. A non-empty
// logFile overrides the configured event log path.
func RunWatchdog(configFile, logFile string) error {
	cfg, logger, err := loadConfig(configFile)
	if err != nil {
		return err
	}
	wcfg := cfg.Watchdog
	if wcfg == nil || !wcfg.Enabled {
		return fmt.Errorf("watchdog is not enabled in %s", configFile)
	}
	if logFile != "" {
		wcfg.LogFile = logFile
	}

	prober, err := probe.New(wcfg.Method, wcfg.TimeoutDuration())
	if err != nil {
		return err
	}

	targets := make([]probe.Target, 0, len(wcfg.Targets))
	for _, t := range wcfg.Targets {
		targets = append(targets, probe.Target{
			Name:    t.Name,
			Address: t.Address,
			Port:    t.Port,
		})
	}

	events, err := watchdog.OpenEventLog(wcfg.LogFile, nil)
	if err != nil {
		return err
	}
	defer events.Close()

	var notifier *notification.Dispatcher
	if cfg.Notifications != nil {
		notifier = notification.NewDispatcher(cfg.Notifications, logger.WithComponent("notification"))
	}

	var wm *metrics.WatchdogMetrics
	if cfg.Metrics != nil && cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		wm = metrics.NewWatchdogMetrics(reg)

		srv := observabilityServer(cfg.Metrics.Listen, reg)
		go func() {
			logger.Info("metrics listening", "addr", cfg.Metrics.Listen)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	w, err := watchdog.New(watchdog.Config{
		Targets:   targets,
		Interval:  wcfg.IntervalDuration(),
		Timeout:   wcfg.TimeoutDuration(),
		Threshold: wcfg.Threshold,
		Grace:     wcfg.GraceDuration(),
	}, watchdog.Deps{
		Prober:   prober,
		Events:   events,
		Notifier: notifier,
		Power:    power.NewSystemController(logger.WithComponent("power")),
		Logger:   logger.WithComponent("watchdog"),
		Metrics:  wm,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := w.Run(ctx); err != nil {
		// A signal is a clean stop, not a failure.
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
	return nil
}
