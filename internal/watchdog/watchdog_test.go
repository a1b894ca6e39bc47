package watchdog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"varg.is/gatewall/internal/clock"
	"varg.is/gatewall/internal/config"
	"varg.is/gatewall/internal/logging"
	"varg.is/gatewall/internal/notification"
	"varg.is/gatewall/internal/power"
	"varg.is/gatewall/internal/probe"
)

var errUnreachable = errors.New("connect: network is unreachable")

// scriptedProber replays per-cycle outcomes. Each cycle consumes one
// entry per target, in target order; the last entry repeats forever.
type scriptedProber struct {
	mu      sync.Mutex
	script  []map[string]bool // cycle -> target name -> reachable
	targets int
	calls   int
	onCycle func(cycle int)
}

func (p *scriptedProber) Probe(ctx context.Context, t probe.Target) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	cycle := p.calls / p.targets
	if p.calls%p.targets == 0 && p.onCycle != nil {
		p.onCycle(cycle)
	}
	p.calls++

	idx := cycle
	if idx >= len(p.script) {
		idx = len(p.script) - 1
	}
	if p.script[idx][t.Name] {
		return nil
	}
	return errUnreachable
}

func quietLogger() *logging.Logger {
	return logging.New(logging.Config{Level: logging.LevelError, Output: &bytes.Buffer{}})
}

var twoTargets = []probe.Target{
	{Name: "dns1", Address: "1.1.1.1", Port: 53},
	{Name: "dns2", Address: "8.8.8.8", Port: 53},
}

func newTestWatchdog(t *testing.T, cfg Config, prober probe.Prober, notifier *notification.Dispatcher) (*Watchdog, *bytes.Buffer, *power.Recorder, *clock.MockClock) {
	t.Helper()

	var log bytes.Buffer
	clk := clock.NewMockClock(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	rec := &power.Recorder{}

	w, err := New(cfg, Deps{
		Prober:   prober,
		Events:   NewEventLog(&log, clk),
		Notifier: notifier,
		Power:    rec,
		Clock:    clk,
		Logger:   quietLogger(),
	})
	require.NoError(t, err)
	return w, &log, rec, clk
}

func TestShutdownAfterThreshold(t *testing.T) {
	allDown := map[string]bool{"dns1": false, "dns2": false}
	prober := &scriptedProber{script: []map[string]bool{allDown}, targets: 2}

	cfg := Config{
		Targets:   twoTargets,
		Interval:  time.Minute,
		Timeout:   time.Second,
		Threshold: 10,
		Grace:     5 * time.Second,
	}
	w, log, rec, clk := newTestWatchdog(t, cfg, prober, nil)

	require.NoError(t, w.Run(context.Background()))

	assert.Equal(t, 1, rec.Calls, "poweroff must fire exactly once")

	lines := strings.Split(strings.TrimSpace(log.String()), "\n")
	var failLines, criticalLines []string
	for _, l := range lines {
		if strings.Contains(l, "[FAIL]") {
			failLines = append(failLines, l)
		}
		if strings.Contains(l, "[CRITICAL]") {
			criticalLines = append(criticalLines, l)
		}
	}

	require.Len(t, failLines, 10)
	for i, l := range failLines {
		assert.Contains(t, l, fmt.Sprintf("(%d/10)", i+1))
		assert.Contains(t, l, "dns1=down dns2=down")
	}
	require.Len(t, criticalLines, 1)

	// Shutdown happens after cycle N: exactly 10 cycles probed.
	assert.Equal(t, 20, prober.calls, "no polling after the terminal transition")

	// Grace period is the last sleep before poweroff.
	slept := clk.Slept()
	require.NotEmpty(t, slept)
	assert.Equal(t, 5*time.Second, slept[len(slept)-1])
}

func TestRecoverResetsCounter(t *testing.T) {
	down := map[string]bool{"dns1": false, "dns2": false}
	up := map[string]bool{"dns1": true, "dns2": true}
	prober := &scriptedProber{
		script:  []map[string]bool{down, down, up, down, down, down},
		targets: 2,
	}

	cfg := Config{
		Targets:   twoTargets,
		Interval:  time.Second,
		Timeout:   time.Second,
		Threshold: 3,
		Grace:     time.Second,
	}
	w, log, rec, _ := newTestWatchdog(t, cfg, prober, nil)

	require.NoError(t, w.Run(context.Background()))

	out := log.String()

	// Counter sequence 1,2,0,1,2,3.
	counts := regexp.MustCompile(`\((\d)/3\)`).FindAllStringSubmatch(out, -1)
	var seq []string
	for _, c := range counts {
		seq = append(seq, c[1])
	}
	assert.Equal(t, []string{"1", "2", "1", "2", "3"}, seq)

	assert.Contains(t, out, "[RECOVER] connectivity restored after 2 failed cycle(s)")
	assert.Contains(t, out, "[OK] dns1=up dns2=up")
	assert.Equal(t, 1, rec.Calls, "shutdown only after the sixth cycle")
	assert.Equal(t, 12, prober.calls)
}

func TestSingleTargetFailureNeverCounts(t *testing.T) {
	oneDown := map[string]bool{"dns1": true, "dns2": false}
	ctx, cancel := context.WithCancel(context.Background())

	prober := &scriptedProber{
		script:  []map[string]bool{oneDown},
		targets: 2,
		onCycle: func(cycle int) {
			if cycle == 4 {
				cancel()
			}
		},
	}

	cfg := Config{
		Targets:   twoTargets,
		Interval:  time.Second,
		Timeout:   time.Second,
		Threshold: 2,
		Grace:     time.Second,
	}
	w, log, rec, _ := newTestWatchdog(t, cfg, prober, nil)

	err := w.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	out := log.String()
	assert.NotContains(t, out, "[FAIL]", "a cycle with one reachable target is ok")
	assert.Contains(t, out, "[OK] dns1=up dns2=down")
	assert.Equal(t, 0, rec.Calls)
	assert.Equal(t, 0, w.ConsecutiveFailures())
}

func TestThresholdOfOneFiresImmediately(t *testing.T) {
	allDown := map[string]bool{"dns1": false, "dns2": false}
	prober := &scriptedProber{script: []map[string]bool{allDown}, targets: 2}

	cfg := Config{
		Targets:   twoTargets,
		Interval:  time.Second,
		Timeout:   time.Second,
		Threshold: 1,
		Grace:     time.Second,
	}
	w, log, rec, _ := newTestWatchdog(t, cfg, prober, nil)

	require.NoError(t, w.Run(context.Background()))

	assert.Equal(t, 1, rec.Calls)
	assert.Equal(t, 2, prober.calls, "exactly one cycle")
	assert.Contains(t, log.String(), "(1/1)")
}

func TestNotificationSkippedWhenUnconfigured(t *testing.T) {
	allDown := map[string]bool{"dns1": false, "dns2": false}
	prober := &scriptedProber{script: []map[string]bool{allDown}, targets: 2}

	// Dispatcher configured only with placeholder credentials.
	notifier := notification.NewDispatcher(&config.NotificationsConfig{
		Enabled: true,
		Channels: []config.NotificationChannel{{
			Name: "tg", Type: "telegram", Enabled: true,
			BotToken: "<bot-token>", ChatID: "<chat-id>",
		}},
	}, quietLogger())

	cfg := Config{Targets: twoTargets, Interval: time.Second, Timeout: time.Second, Threshold: 1, Grace: time.Second}
	w, log, rec, _ := newTestWatchdog(t, cfg, prober, notifier)

	require.NoError(t, w.Run(context.Background()))

	assert.Contains(t, log.String(), "[INFO] notifications not configured, skipping")
	assert.NotContains(t, log.String(), "notification dispatched")
	assert.Equal(t, 1, rec.Calls, "shutdown must proceed without notification")
}

func TestNotificationSentOnceBeforeShutdown(t *testing.T) {
	var hookCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hookCalls.Add(1)
	}))
	defer srv.Close()

	notifier := notification.NewDispatcher(&config.NotificationsConfig{
		Enabled: true,
		Channels: []config.NotificationChannel{{
			Name: "hook", Type: "webhook", Enabled: true, WebhookURL: srv.URL,
		}},
	}, quietLogger())

	allDown := map[string]bool{"dns1": false, "dns2": false}
	prober := &scriptedProber{script: []map[string]bool{allDown}, targets: 2}

	cfg := Config{Targets: twoTargets, Interval: time.Second, Timeout: time.Second, Threshold: 2, Grace: time.Second}
	w, log, rec, _ := newTestWatchdog(t, cfg, prober, notifier)

	require.NoError(t, w.Run(context.Background()))

	assert.Equal(t, int32(1), hookCalls.Load(), "at most one notification per shutdown event")
	assert.Contains(t, log.String(), "[INFO] shutdown notification dispatched")
	assert.Equal(t, 1, rec.Calls)
}

func TestNotificationFailureDoesNotBlockShutdown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	notifier := notification.NewDispatcher(&config.NotificationsConfig{
		Enabled: true,
		Channels: []config.NotificationChannel{{
			Name: "hook", Type: "webhook", Enabled: true, WebhookURL: srv.URL,
		}},
	}, quietLogger())

	allDown := map[string]bool{"dns1": false, "dns2": false}
	prober := &scriptedProber{script: []map[string]bool{allDown}, targets: 2}

	cfg := Config{Targets: twoTargets, Interval: time.Second, Timeout: time.Second, Threshold: 1, Grace: time.Second}
	w, _, rec, _ := newTestWatchdog(t, cfg, prober, notifier)

	require.NoError(t, w.Run(context.Background()))
	assert.Equal(t, 1, rec.Calls)
}

func TestPoweroffErrorIsRecorded(t *testing.T) {
	allDown := map[string]bool{"dns1": false, "dns2": false}
	prober := &scriptedProber{script: []map[string]bool{allDown}, targets: 2}

	var log bytes.Buffer
	clk := clock.NewMockClock(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	rec := &power.Recorder{Err: errors.New("exec: poweroff: not found")}

	w, err := New(Config{Targets: twoTargets, Interval: time.Second, Timeout: time.Second, Threshold: 1, Grace: time.Second}, Deps{
		Prober: prober,
		Events: NewEventLog(&log, clk),
		Power:  rec,
		Clock:  clk,
		Logger: quietLogger(),
	})
	require.NoError(t, err)

	require.NoError(t, w.Run(context.Background()))
	assert.Contains(t, log.String(), "poweroff invocation failed")
}

func TestNew_Validation(t *testing.T) {
	clk := clock.NewMockClock(time.Now())
	events := NewEventLog(&bytes.Buffer{}, clk)
	prober := &scriptedProber{script: []map[string]bool{{}}, targets: 2}
	valid := Config{Targets: twoTargets, Interval: time.Second, Timeout: time.Second, Threshold: 3, Grace: time.Second}

	tests := []struct {
		name string
		cfg  Config
		deps Deps
		want string
	}{
		{"zero threshold", Config{Targets: twoTargets, Interval: time.Second, Threshold: 0}, Deps{Prober: prober, Events: events, Power: &power.Recorder{}}, "threshold"},
		{"no targets", Config{Interval: time.Second, Threshold: 3}, Deps{Prober: prober, Events: events, Power: &power.Recorder{}}, "target"},
		{"zero interval", Config{Targets: twoTargets, Threshold: 3}, Deps{Prober: prober, Events: events, Power: &power.Recorder{}}, "interval"},
		{"nil prober", valid, Deps{Events: events, Power: &power.Recorder{}}, "prober"},
		{"nil events", valid, Deps{Prober: prober, Power: &power.Recorder{}}, "event log"},
		{"nil power", valid, Deps{Prober: prober, Events: events}, "power"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg, tt.deps)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
