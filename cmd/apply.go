package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"varg.is/gatewall/internal/config"
	"varg.is/gatewall/internal/firewall"
	"varg.is/gatewall/internal/geoip"
	"varg.is/gatewall/internal/health"
	"varg.is/gatewall/internal/iplist"
	"varg.is/gatewall/internal/logging"
	"varg.is/gatewall/internal/metrics"
	"varg.is/gatewall/internal/scheduler"
)

// RunApply downloads the country ranges and loads the nftables
// ruleset. With --daemon it stays running and refreshes the lists on
// the configured interval.
func RunApply(configFile string, dryRun, verify, daemon bool) error {
	cfg, logger, err := loadConfig(configFile)
	if err != nil {
		return err
	}
	if cfg.Firewall == nil || !cfg.Firewall.Enabled {
		return fmt.Errorf("firewall is not enabled in %s", configFile)
	}

	lists := listManager(cfg, logger)

	rs, err := resolveRuleset(cfg, lists)
	if err != nil {
		return err
	}

	if verify {
		if err := verifyRanges(cfg, rs); err != nil {
			return err
		}
	}

	if dryRun {
		fmt.Printf("Would apply: country %s, %d IPv4 ranges, %d IPv6 ranges, %d whitelist entries, ports %v\n",
			strings.ToUpper(rs.Country), len(rs.CountryV4), len(rs.CountryV6),
			len(rs.WhitelistV4)+len(rs.WhitelistV6), rs.Ports)
		return nil
	}

	mgr, err := firewall.NewManager(logger.WithComponent("firewall"))
	if err != nil {
		return err
	}

	if err := mgr.Apply(rs); err != nil {
		return err
	}

	fmt.Printf("Applied: country %s, %d IPv4 ranges, %d IPv6 ranges\n",
		strings.ToUpper(rs.Country), len(rs.CountryV4), len(rs.CountryV6))

	if daemon {
		return runDaemon(cfg, logger, mgr, lists)
	}
	return nil
}

// resolveRuleset fetches the zone files and builds the policy.
func resolveRuleset(cfg *config.Config, lists *iplist.Manager) (*firewall.Ruleset, error) {
	v4, v6, err := fetchCountryLists(cfg, lists)
	if err != nil {
		return nil, err
	}
	return firewall.BuildRuleset(cfg.Firewall, v4, v6)
}

// verifyRanges spot-checks downloaded entries against the GeoIP
// database. Mismatches are reported but not fatal; zone file and
// database vendors disagree at the edges.
func verifyRanges(cfg *config.Config, rs *firewall.Ruleset) error {
	if cfg.GeoIP == nil || cfg.GeoIP.DatabasePath == "" {
		return fmt.Errorf("--verify requires a geoip database_path in the configuration")
	}

	resolver, err := geoip.Open(cfg.GeoIP.DatabasePath)
	if err != nil {
		return err
	}
	defer resolver.Close()

	result := resolver.VerifyRanges(rs.CountryV4, rs.Country, 100)
	fmt.Printf("Verify: %d/%d sampled ranges attributed to %s\n",
		result.Matched, result.Sampled, strings.ToUpper(rs.Country))
	for _, entry := range result.Mismatched {
		fmt.Printf("  mismatch: %s\n", entry)
	}
	return nil
}

// runDaemon keeps the process alive, refreshing the country sets on a
// schedule and serving metrics and health endpoints when configured.
func runDaemon(cfg *config.Config, logger *logging.Logger, mgr firewall.Manager, lists *iplist.Manager) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched := scheduler.New(logger.WithComponent("scheduler"))
	err := sched.AddTask(&scheduler.Task{
		ID:       "refresh-lists",
		Name:     "refresh country lists",
		Schedule: scheduler.Every(cfg.IPLists.RefreshIntervalDuration()),
		Timeout:  10 * time.Minute,
		Func: func(ctx context.Context) error {
			rs, err := resolveRuleset(cfg, lists)
			if err != nil {
				return err
			}
			return mgr.Apply(rs)
		},
	})
	if err != nil {
		return err
	}

	sched.Start()
	defer sched.Stop()

	if cfg.Metrics != nil && cfg.Metrics.Enabled {
		srv := observabilityServer(cfg.Metrics.Listen, nil)
		go func() {
			logger.Info("metrics listening", "addr", cfg.Metrics.Listen)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	logger.Info("daemon running", "refresh_interval", cfg.IPLists.RefreshIntervalDuration())
	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}

// observabilityServer serves /metrics, /healthz and /livez. Extra
// registerers may pre-populate the registry (the watchdog does).
func observabilityServer(addr string, reg *prometheus.Registry) *http.Server {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	checker := health.NewChecker()

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	mux.HandleFunc("/healthz", checker.Handler())
	mux.HandleFunc("/livez", health.LivenessHandler())

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
