package config

import (
	"fmt"
	"net"
	"strings"
	"time"
)

var probeMethods = map[string]bool{
	"tcp":  true,
	"icmp": true,
	"dns":  true,
}

var channelTypes = map[string]bool{
	"telegram": true,
	"webhook":  true,
	"ntfy":     true,
}

// Validate checks the configuration for semantic errors.
func (c *Config) Validate() error {
	if c.Firewall != nil {
		if err := c.Firewall.validate(); err != nil {
			return err
		}
	}
	if c.Watchdog != nil {
		if err := c.Watchdog.validate(); err != nil {
			return err
		}
	}
	if c.Notifications != nil {
		for i := range c.Notifications.Channels {
			if err := c.Notifications.Channels[i].validate(); err != nil {
				return err
			}
		}
	}
	if c.IPLists != nil {
		for _, field := range []string{c.IPLists.MaxAge, c.IPLists.RefreshInterval} {
			if err := checkDuration(field); err != nil {
				return fmt.Errorf("iplists: %w", err)
			}
		}
	}
	return nil
}

func (f *FirewallConfig) validate() error {
	cc := strings.ToLower(f.Country)
	if len(cc) != 2 || cc[0] < 'a' || cc[0] > 'z' || cc[1] < 'a' || cc[1] > 'z' {
		return fmt.Errorf("firewall: country must be a two-letter ISO code, got %q", f.Country)
	}

	for _, entry := range f.Whitelist {
		if !isIPOrCIDR(entry) {
			return fmt.Errorf("firewall: invalid whitelist entry %q", entry)
		}
	}

	for _, p := range f.Ports {
		if p < 1 || p > 65535 {
			return fmt.Errorf("firewall: invalid port %d", p)
		}
	}

	if f.Limit != "" {
		parts := strings.Split(f.Limit, "/")
		if len(parts) != 2 {
			return fmt.Errorf("firewall: limit must look like \"50/second\", got %q", f.Limit)
		}
	}
	return nil
}

func (w *WatchdogConfig) validate() error {
	if w.Threshold < 1 {
		return fmt.Errorf("watchdog: threshold must be >= 1, got %d", w.Threshold)
	}
	if len(w.Targets) == 0 {
		return fmt.Errorf("watchdog: at least one target is required")
	}
	if w.Method != "" && !probeMethods[w.Method] {
		return fmt.Errorf("watchdog: unknown probe method %q (want tcp, icmp or dns)", w.Method)
	}
	for _, target := range w.Targets {
		if target.Address == "" {
			return fmt.Errorf("watchdog: target %q has no address", target.Name)
		}
		if target.Port < 0 || target.Port > 65535 {
			return fmt.Errorf("watchdog: target %q has invalid port %d", target.Name, target.Port)
		}
	}
	for _, field := range []string{w.Interval, w.Timeout, w.Grace} {
		if err := checkDuration(field); err != nil {
			return fmt.Errorf("watchdog: %w", err)
		}
	}
	return nil
}

func (ch *NotificationChannel) validate() error {
	if !channelTypes[strings.ToLower(ch.Type)] {
		return fmt.Errorf("notifications: channel %q has unknown type %q", ch.Name, ch.Type)
	}
	switch strings.ToLower(ch.Level) {
	case "", "info", "warning", "critical":
	default:
		return fmt.Errorf("notifications: channel %q has unknown level %q", ch.Name, ch.Level)
	}
	return nil
}

func checkDuration(s string) error {
	if s == "" {
		return nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q", s)
	}
	if d <= 0 {
		return fmt.Errorf("duration %q must be positive", s)
	}
	return nil
}

func isIPOrCIDR(s string) bool {
	if strings.Contains(s, "/") {
		_, _, err := net.ParseCIDR(s)
		return err == nil
	}
	return net.ParseIP(s) != nil
}
