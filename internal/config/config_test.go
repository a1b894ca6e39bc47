package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleHCL = `
log_level = "debug"

firewall {
  enabled    = true
  country    = "de"
  whitelist  = ["203.0.113.10", "198.51.100.0/24"]
  ports      = [22, 443]
  allow_ping = true
  limit      = "50/second"
}

watchdog {
  enabled   = true
  interval  = "30s"
  timeout   = "2s"
  threshold = 5
  grace     = "10s"
  method    = "dns"
  log_file  = "/tmp/wd.log"

  target "cloudflare" {
    address = "1.1.1.1"
    port    = 53
  }

  target "google" {
    address = "8.8.8.8"
  }
}

notifications {
  enabled = true

  channel "tg" {
    type      = "telegram"
    level     = "critical"
    enabled   = true
    bot_token = "12345:token"
    chat_id   = "987654"
  }
}

metrics {
  enabled = true
}
`

func TestLoadHCL(t *testing.T) {
	cfg, err := LoadHCL([]byte(sampleHCL), "test.hcl")
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)

	require.NotNil(t, cfg.Firewall)
	assert.Equal(t, "de", cfg.Firewall.Country)
	assert.Equal(t, []int{22, 443}, cfg.Firewall.Ports)
	assert.Len(t, cfg.Firewall.Whitelist, 2)

	require.NotNil(t, cfg.Watchdog)
	assert.Equal(t, 5, cfg.Watchdog.Threshold)
	assert.Equal(t, 30*time.Second, cfg.Watchdog.IntervalDuration())
	assert.Equal(t, 2*time.Second, cfg.Watchdog.TimeoutDuration())
	assert.Equal(t, 10*time.Second, cfg.Watchdog.GraceDuration())
	assert.Equal(t, "dns", cfg.Watchdog.Method)

	require.Len(t, cfg.Watchdog.Targets, 2)
	assert.Equal(t, "cloudflare", cfg.Watchdog.Targets[0].Name)
	// unset port defaulted
	assert.Equal(t, DefaultPort, cfg.Watchdog.Targets[1].Port)

	require.NotNil(t, cfg.Notifications)
	require.Len(t, cfg.Notifications.Channels, 1)
	assert.Equal(t, "telegram", cfg.Notifications.Channels[0].Type)

	require.NotNil(t, cfg.Metrics)
	assert.Equal(t, DefaultMetricsListen, cfg.Metrics.Listen)
}

func TestLoadFile_JSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gatewall.json")
	data := `{"firewall": {"enabled": true, "country": "se"}}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "se", cfg.Firewall.Country)
	assert.Equal(t, DefaultZoneBaseURL, cfg.IPLists.BaseURL)
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{
		Watchdog: &WatchdogConfig{
			Targets: []WatchdogTarget{{Name: "a", Address: "1.1.1.1"}},
		},
	}
	cfg.ApplyDefaults()

	assert.Equal(t, DefaultThreshold, cfg.Watchdog.Threshold)
	assert.Equal(t, DefaultMethod, cfg.Watchdog.Method)
	assert.Equal(t, DefaultInterval, cfg.Watchdog.IntervalDuration())
	assert.Equal(t, DefaultGrace, cfg.Watchdog.GraceDuration())
	assert.Equal(t, DefaultPort, cfg.Watchdog.Targets[0].Port)
	assert.NotEmpty(t, cfg.Watchdog.LogFile)
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "bad country",
			cfg:  Config{Firewall: &FirewallConfig{Country: "germany"}},
			want: "two-letter ISO code",
		},
		{
			name: "bad whitelist entry",
			cfg:  Config{Firewall: &FirewallConfig{Country: "de", Whitelist: []string{"not-an-ip"}}},
			want: "invalid whitelist entry",
		},
		{
			name: "bad port",
			cfg:  Config{Firewall: &FirewallConfig{Country: "de", Ports: []int{70000}}},
			want: "invalid port",
		},
		{
			name: "zero threshold",
			cfg: Config{Watchdog: &WatchdogConfig{
				Threshold: -1,
				Targets:   []WatchdogTarget{{Name: "a", Address: "1.1.1.1"}},
			}},
			want: "threshold",
		},
		{
			name: "no targets",
			cfg:  Config{Watchdog: &WatchdogConfig{Threshold: 3}},
			want: "at least one target",
		},
		{
			name: "unknown method",
			cfg: Config{Watchdog: &WatchdogConfig{
				Threshold: 3,
				Method:    "carrier-pigeon",
				Targets:   []WatchdogTarget{{Name: "a", Address: "1.1.1.1"}},
			}},
			want: "unknown probe method",
		},
		{
			name: "bad duration",
			cfg: Config{Watchdog: &WatchdogConfig{
				Threshold: 3,
				Interval:  "soon",
				Targets:   []WatchdogTarget{{Name: "a", Address: "1.1.1.1"}},
			}},
			want: "invalid duration",
		},
		{
			name: "unknown channel type",
			cfg: Config{Notifications: &NotificationsConfig{
				Channels: []NotificationChannel{{Name: "x", Type: "smoke-signal"}},
			}},
			want: "unknown type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestThresholdOfOneIsValid(t *testing.T) {
	cfg := Config{Watchdog: &WatchdogConfig{
		Threshold: 1,
		Targets:   []WatchdogTarget{{Name: "a", Address: "1.1.1.1"}},
	}}
	assert.NoError(t, cfg.Validate())
}

func TestDefaultHCLRoundTrips(t *testing.T) {
	cfg, err := LoadHCL(DefaultHCL(), "gatewall.hcl")
	require.NoError(t, err)

	require.NotNil(t, cfg.Firewall)
	require.NotNil(t, cfg.Watchdog)
	assert.Len(t, cfg.Watchdog.Targets, 2)
	require.Len(t, cfg.Notifications.Channels, 1)
	assert.Equal(t, "<bot-token>", cfg.Notifications.Channels[0].BotToken)
}

func TestWriteDefaultRefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gatewall.hcl")

	require.NoError(t, WriteDefault(path))
	err := WriteDefault(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refusing to overwrite")
}
