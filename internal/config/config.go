// Package config defines the HCL configuration surface for the firewall
// and the connectivity watchdog.
package config

import (
	"time"

	"varg.is/gatewall/internal/brand"
)

// Config is the root configuration.
type Config struct {
	LogLevel string `hcl:"log_level,optional" json:"log_level,omitempty"`

	Firewall      *FirewallConfig      `hcl:"firewall,block" json:"firewall,omitempty"`
	IPLists       *IPListsConfig       `hcl:"iplists,block" json:"iplists,omitempty"`
	GeoIP         *GeoIPConfig         `hcl:"geoip,block" json:"geoip,omitempty"`
	Watchdog      *WatchdogConfig      `hcl:"watchdog,block" json:"watchdog,omitempty"`
	Notifications *NotificationsConfig `hcl:"notifications,block" json:"notifications,omitempty"`
	Metrics       *MetricsConfig       `hcl:"metrics,block" json:"metrics,omitempty"`
}

// FirewallConfig describes the inbound geo-restriction policy.
type FirewallConfig struct {
	Enabled bool `hcl:"enabled,optional" json:"enabled"`

	// Country is the ISO 3166-1 alpha-2 code whose ranges are accepted inbound.
	Country string `hcl:"country" json:"country"`

	// Whitelist entries (IP or CIDR) are always accepted, independent of country.
	Whitelist []string `hcl:"whitelist,optional" json:"whitelist,omitempty"`

	// Ports restricts country-sourced traffic to these TCP/UDP ports.
	// Empty means all ports.
	Ports []int `hcl:"ports,optional" json:"ports,omitempty"`

	// Limit rate-limits new connections from the country set, e.g. "50/second".
	Limit string `hcl:"limit,optional" json:"limit,omitempty"`

	AllowPing bool `hcl:"allow_ping,optional" json:"allow_ping"`
	IPv6      bool `hcl:"ipv6,optional" json:"ipv6"`
}

// IPListsConfig controls where country zone files come from and how they
// are cached.
type IPListsConfig struct {
	// BaseURL is the URL template for IPv4 zone files. The literal "{cc}"
	// is replaced with the lowercase country code.
	BaseURL string `hcl:"base_url,optional" json:"base_url,omitempty"`

	// BaseURLv6 is the template for IPv6 zone files.
	BaseURLv6 string `hcl:"base_url_v6,optional" json:"base_url_v6,omitempty"`

	CacheDir string `hcl:"cache_dir,optional" json:"cache_dir,omitempty"`

	// MaxAge is how long a cached zone file stays fresh (default 24h).
	MaxAge string `hcl:"max_age,optional" json:"max_age,omitempty"`

	// RefreshInterval drives periodic set reloads in daemon mode (default 12h).
	RefreshInterval string `hcl:"refresh_interval,optional" json:"refresh_interval,omitempty"`
}

// GeoIPConfig configures the optional MMDB database used to verify applied
// ranges and serve lookups. Both MaxMind GeoLite2 and DB-IP lite formats work.
type GeoIPConfig struct {
	DatabasePath string `hcl:"database_path,optional" json:"database_path,omitempty"`
}

// WatchdogConfig configures the connectivity watchdog.
type WatchdogConfig struct {
	Enabled bool `hcl:"enabled,optional" json:"enabled"`

	Interval string `hcl:"interval,optional" json:"interval,omitempty"`
	Timeout  string `hcl:"timeout,optional" json:"timeout,omitempty"`

	// Threshold is the number of consecutive all-targets-down cycles that
	// triggers poweroff.
	Threshold int `hcl:"threshold,optional" json:"threshold"`

	// Grace is the delay between the critical event and the poweroff call.
	Grace string `hcl:"grace,optional" json:"grace,omitempty"`

	// Method selects the probe type: tcp, icmp or dns.
	Method string `hcl:"method,optional" json:"method,omitempty"`

	LogFile string `hcl:"log_file,optional" json:"log_file,omitempty"`

	Targets []WatchdogTarget `hcl:"target,block" json:"targets"`
}

// WatchdogTarget is one redundant probe endpoint.
type WatchdogTarget struct {
	Name    string `hcl:"name,label" json:"name"`
	Address string `hcl:"address" json:"address"`
	Port    int    `hcl:"port,optional" json:"port,omitempty"`
}

// NotificationsConfig configures the notification system.
type NotificationsConfig struct {
	Enabled  bool                  `hcl:"enabled,optional" json:"enabled"`
	Channels []NotificationChannel `hcl:"channel,block" json:"channels"`
}

// NotificationChannel defines a notification destination.
type NotificationChannel struct {
	Name    string `hcl:"name,label" json:"name"`
	Type    string `hcl:"type" json:"type"`            // telegram, webhook, ntfy
	Level   string `hcl:"level,optional" json:"level"` // critical, warning, info
	Enabled bool   `hcl:"enabled,optional" json:"enabled"`

	// Telegram settings
	BotToken string `hcl:"bot_token,optional" json:"bot_token,omitempty"`
	ChatID   string `hcl:"chat_id,optional" json:"chat_id,omitempty"`

	// Webhook settings
	WebhookURL string `hcl:"webhook_url,optional" json:"webhook_url,omitempty"`

	// ntfy settings
	Server string `hcl:"server,optional" json:"server,omitempty"`
	Topic  string `hcl:"topic,optional" json:"topic,omitempty"`

	Headers map[string]string `hcl:"headers,optional" json:"headers,omitempty"`
}

// MetricsConfig controls the optional Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `hcl:"enabled,optional" json:"enabled"`
	Listen  string `hcl:"listen,optional" json:"listen,omitempty"`
}

// Built-in defaults.
const (
	DefaultZoneBaseURL   = "https://www.ipdeny.com/ipblocks/data/aggregated/{cc}-aggregated.zone"
	DefaultZoneBaseURLv6 = "https://www.ipdeny.com/ipv6/ipaddresses/aggregated/{cc}-aggregated.zone"

	DefaultInterval  = 60 * time.Second
	DefaultTimeout   = 3 * time.Second
	DefaultGrace     = 5 * time.Second
	DefaultThreshold = 10
	DefaultMethod    = "tcp"
	DefaultPort      = 53

	DefaultMaxAge          = 24 * time.Hour
	DefaultRefreshInterval = 12 * time.Hour

	DefaultMetricsListen = "127.0.0.1:9143"
)

// ApplyDefaults fills in zero values on optional fields. Load does this
// automatically; hand-built configs (tests) can call it directly.
func (c *Config) ApplyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}

	if c.IPLists == nil {
		c.IPLists = &IPListsConfig{}
	}
	if c.IPLists.BaseURL == "" {
		c.IPLists.BaseURL = DefaultZoneBaseURL
	}
	if c.IPLists.BaseURLv6 == "" {
		c.IPLists.BaseURLv6 = DefaultZoneBaseURLv6
	}
	if c.IPLists.CacheDir == "" {
		c.IPLists.CacheDir = brand.GetCacheDir() + "/iplists"
	}

	if c.Watchdog != nil {
		w := c.Watchdog
		if w.Threshold == 0 {
			w.Threshold = DefaultThreshold
		}
		if w.Method == "" {
			w.Method = DefaultMethod
		}
		if w.LogFile == "" {
			w.LogFile = brand.GetLogDir() + "/" + brand.WatchdogLogName
		}
		for i := range w.Targets {
			if w.Targets[i].Port == 0 {
				w.Targets[i].Port = DefaultPort
			}
		}
	}

	if c.Metrics != nil && c.Metrics.Listen == "" {
		c.Metrics.Listen = DefaultMetricsListen
	}
}

// Duration accessors. Invalid strings fall back to the default; Validate
// reports them as errors first.

func (w *WatchdogConfig) IntervalDuration() time.Duration {
	return parseDurationOr(w.Interval, DefaultInterval)
}

func (w *WatchdogConfig) TimeoutDuration() time.Duration {
	return parseDurationOr(w.Timeout, DefaultTimeout)
}

func (w *WatchdogConfig) GraceDuration() time.Duration {
	return parseDurationOr(w.Grace, DefaultGrace)
}

func (l *IPListsConfig) MaxAgeDuration() time.Duration {
	return parseDurationOr(l.MaxAge, DefaultMaxAge)
}

func (l *IPListsConfig) RefreshIntervalDuration() time.Duration {
	return parseDurationOr(l.RefreshInterval, DefaultRefreshInterval)
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
