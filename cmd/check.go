package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"varg.is/gatewall/internal/config"
	"varg.is/gatewall/internal/notification"
)

// RunCheck validates the configuration file and prints a summary.
func RunCheck(configFile string, verbose bool) error {
	cfg, err := config.LoadFile(configFile)
	if err != nil {
		return fmt.Errorf("configuration invalid: %w", err)
	}

	fmt.Println("Configuration valid!")

	if cfg.Firewall != nil && cfg.Firewall.Enabled {
		fmt.Printf("Firewall: country %s, %d whitelist entries, %d ports\n",
			strings.ToUpper(cfg.Firewall.Country), len(cfg.Firewall.Whitelist), len(cfg.Firewall.Ports))
	} else {
		fmt.Println("Firewall: disabled")
	}

	if cfg.Watchdog != nil && cfg.Watchdog.Enabled {
		fmt.Printf("Watchdog: %d targets, threshold %d, interval %s\n",
			len(cfg.Watchdog.Targets), cfg.Watchdog.Threshold, cfg.Watchdog.IntervalDuration())
	} else {
		fmt.Println("Watchdog: disabled")
	}

	if cfg.Notifications != nil && cfg.Notifications.Enabled {
		configured := 0
		for _, ch := range cfg.Notifications.Channels {
			if ch.Enabled && notification.ChannelConfigured(ch) {
				configured++
			}
		}
		fmt.Printf("Notifications: %d/%d channels configured\n",
			configured, len(cfg.Notifications.Channels))
	}

	if verbose {
		fmt.Println()
		printDetails(cfg)
	}

	return nil
}

func printDetails(cfg *config.Config) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)

	if fw := cfg.Firewall; fw != nil && fw.Enabled {
		fmt.Fprintln(w, "FIREWALL\t")
		fmt.Fprintf(w, "  country\t%s\n", strings.ToUpper(fw.Country))
		fmt.Fprintf(w, "  ports\t%v\n", fw.Ports)
		fmt.Fprintf(w, "  limit\t%s\n", orDash(fw.Limit))
		fmt.Fprintf(w, "  allow_ping\t%v\n", fw.AllowPing)
		fmt.Fprintf(w, "  ipv6\t%v\n", fw.IPv6)
		for _, entry := range fw.Whitelist {
			fmt.Fprintf(w, "  whitelist\t%s\n", entry)
		}
		fmt.Fprintln(w)
	}

	if wd := cfg.Watchdog; wd != nil && wd.Enabled {
		fmt.Fprintln(w, "WATCHDOG\t")
		fmt.Fprintf(w, "  method\t%s\n", wd.Method)
		fmt.Fprintf(w, "  interval\t%s\n", wd.IntervalDuration())
		fmt.Fprintf(w, "  timeout\t%s\n", wd.TimeoutDuration())
		fmt.Fprintf(w, "  threshold\t%d\n", wd.Threshold)
		fmt.Fprintf(w, "  grace\t%s\n", wd.GraceDuration())
		fmt.Fprintf(w, "  log_file\t%s\n", wd.LogFile)
		for _, t := range wd.Targets {
			fmt.Fprintf(w, "  target\t%s (%s:%d)\n", t.Name, t.Address, t.Port)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "IPLISTS\t")
	fmt.Fprintf(w, "  base_url\t%s\n", cfg.IPLists.BaseURL)
	fmt.Fprintf(w, "  cache_dir\t%s\n", cfg.IPLists.CacheDir)
	fmt.Fprintf(w, "  max_age\t%s\n", cfg.IPLists.MaxAgeDuration())
	fmt.Fprintf(w, "  refresh_interval\t%s\n", cfg.IPLists.RefreshIntervalDuration())

	w.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
