// Package watchdog implements the connectivity watchdog: a sequential
// poll loop that counts consecutive all-targets-down cycles and powers
// the host off when the count reaches a threshold.
//
// The loop is a two-state machine. In Polling it probes every target
// once per cycle; a cycle fails only when every target fails, so a
// single reachable endpoint keeps the counter at zero. Reaching the
// threshold takes the one irreversible transition to ShuttingDown:
// notify (best effort), wait out the grace period, power off. There is
// no way back and no further polling.
package watchdog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"varg.is/gatewall/internal/clock"
	"varg.is/gatewall/internal/logging"
	"varg.is/gatewall/internal/metrics"
	"varg.is/gatewall/internal/notification"
	"varg.is/gatewall/internal/power"
	"varg.is/gatewall/internal/probe"
)

// Config holds the static watchdog parameters, read once at startup.
type Config struct {
	Targets   []probe.Target
	Interval  time.Duration
	Timeout   time.Duration
	Threshold int
	Grace     time.Duration
}

// Deps are the watchdog's collaborators. Prober, Events and Power are
// required; Clock, Logger and Metrics have working defaults.
type Deps struct {
	Prober   probe.Prober
	Events   *EventLog
	Notifier *notification.Dispatcher
	Power    power.Controller
	Clock    clock.Clock
	Logger   *logging.Logger
	Metrics  *metrics.WatchdogMetrics
}

// Watchdog owns the poll loop and its failure counter. Not safe for
// concurrent use; exactly one instance runs per host, enforced by the
// service supervisor.
type Watchdog struct {
	cfg  Config
	deps Deps

	failures int
}

// New validates the configuration and builds a watchdog.
func New(cfg Config, deps Deps) (*Watchdog, error) {
	if cfg.Threshold < 1 {
		return nil, fmt.Errorf("threshold must be >= 1, got %d", cfg.Threshold)
	}
	if len(cfg.Targets) == 0 {
		return nil, fmt.Errorf("at least one probe target is required")
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("interval must be positive")
	}
	if deps.Prober == nil {
		return nil, fmt.Errorf("prober is required")
	}
	if deps.Events == nil {
		return nil, fmt.Errorf("event log is required")
	}
	if deps.Power == nil {
		return nil, fmt.Errorf("power controller is required")
	}
	if deps.Clock == nil {
		deps.Clock = &clock.RealClock{}
	}
	if deps.Logger == nil {
		deps.Logger = logging.Default().WithComponent("watchdog")
	}

	return &Watchdog{cfg: cfg, deps: deps}, nil
}

// ConsecutiveFailures returns the current counter value.
func (w *Watchdog) ConsecutiveFailures() int {
	return w.failures
}

// Run executes the poll loop until the shutdown transition fires or ctx
// is cancelled. A nil return after shutdown means the poweroff call was
// issued; an error return means the event log became unwritable.
func (w *Watchdog) Run(ctx context.Context) error {
	runID := uuid.NewString()[:8]
	w.deps.Logger.Info("watchdog started",
		"run_id", runID,
		"targets", len(w.cfg.Targets),
		"interval", w.cfg.Interval,
		"threshold", w.cfg.Threshold)
	w.deps.Metrics.SetThreshold(w.cfg.Threshold)

	if err := w.deps.Events.Printf("watchdog started (run %s, %d targets, threshold %d)",
		runID, len(w.cfg.Targets), w.cfg.Threshold); err != nil {
		return err
	}

	for {
		shutdown, err := w.cycle(ctx)
		if err != nil {
			return err
		}
		if shutdown {
			return nil
		}

		select {
		case <-ctx.Done():
			w.deps.Logger.Info("watchdog stopped", "run_id", runID)
			return ctx.Err()
		default:
		}

		w.deps.Clock.Sleep(w.cfg.Interval)
	}
}

// cycle performs one poll of all targets and advances the state machine.
func (w *Watchdog) cycle(ctx context.Context) (shutdown bool, err error) {
	statuses := make([]string, 0, len(w.cfg.Targets))
	anyUp := false

	for _, target := range w.cfg.Targets {
		start := w.deps.Clock.Now()
		probeErr := w.deps.Prober.Probe(ctx, target)
		w.deps.Metrics.ObserveProbe(target.String(), w.deps.Clock.Since(start), probeErr)

		// Every failure kind is equivalent: the target is unreachable.
		if probeErr != nil {
			statuses = append(statuses, target.String()+"=down")
			w.deps.Logger.Debug("probe failed", "target", target.String(), "error", probeErr)
			continue
		}
		statuses = append(statuses, target.String()+"=up")
		anyUp = true
	}

	line := strings.Join(statuses, " ")

	if anyUp {
		if w.failures > 0 {
			w.deps.Logger.Info("connectivity recovered", "failed_cycles", w.failures)
			if err := w.deps.Events.Printf("[RECOVER] connectivity restored after %d failed cycle(s)", w.failures); err != nil {
				return false, err
			}
		}
		w.failures = 0
		w.deps.Metrics.ObserveCycle(true, 0)
		return false, w.deps.Events.Printf("[OK] %s", line)
	}

	w.failures++
	w.deps.Metrics.ObserveCycle(false, w.failures)
	w.deps.Logger.Warn("all targets unreachable",
		"count", w.failures,
		"threshold", w.cfg.Threshold)
	if err := w.deps.Events.Printf("[FAIL] %s (%d/%d)", line, w.failures, w.cfg.Threshold); err != nil {
		return false, err
	}

	if w.failures < w.cfg.Threshold {
		return false, nil
	}

	return true, w.shutdown()
}

// shutdown is the irreversible transition: critical event, best-effort
// notification, grace sleep, poweroff.
func (w *Watchdog) shutdown() error {
	w.deps.Logger.Error("failure threshold reached, initiating poweroff",
		"threshold", w.cfg.Threshold,
		"grace", w.cfg.Grace)
	if err := w.deps.Events.Printf("[CRITICAL] connectivity lost for %d consecutive cycle(s), powering off in %s",
		w.cfg.Threshold, w.cfg.Grace); err != nil {
		return err
	}

	w.notify()

	w.deps.Clock.Sleep(w.cfg.Grace)

	w.deps.Metrics.ObservePoweroff()
	if err := w.deps.Power.PowerOff(); err != nil {
		// Nothing left to do but record it; there is no retry path.
		w.deps.Logger.Error("poweroff failed", "error", err)
		return w.deps.Events.Printf("[CRITICAL] poweroff invocation failed: %v", err)
	}
	return nil
}

// notify makes at most one delivery attempt per channel. Failures are
// logged by the dispatcher and never block the shutdown sequence.
func (w *Watchdog) notify() {
	d := w.deps.Notifier
	if d == nil || d.ConfiguredChannels(notification.LevelCritical) == 0 {
		w.deps.Metrics.ObserveNotification("skipped")
		w.deps.Events.Printf("[INFO] notifications not configured, skipping")
		return
	}

	d.SendSimple(
		"Gatewall watchdog",
		fmt.Sprintf("Host lost connectivity for %d consecutive cycle(s); powering off.", w.cfg.Threshold),
		notification.LevelCritical,
	)
	w.deps.Metrics.ObserveNotification("sent")
	w.deps.Events.Printf("[INFO] shutdown notification dispatched")
}
