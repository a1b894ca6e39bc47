// Package cmd implements the CLI subcommands.
package cmd

import (
	"fmt"
	"os"

	"varg.is/gatewall/internal/config"
	"varg.is/gatewall/internal/iplist"
	"varg.is/gatewall/internal/logging"
)

// loadConfig reads and validates the configuration, then builds the
// process logger from its log level.
func loadConfig(configFile string) (*config.Config, *logging.Logger, error) {
	cfg, err := config.LoadFile(configFile)
	if err != nil {
		return nil, nil, err
	}

	logger := logging.New(logging.Config{
		Level:  parseLevel(cfg.LogLevel),
		Output: os.Stderr,
	})
	logging.SetDefault(logger)

	return cfg, logger, nil
}

func parseLevel(s string) logging.Level {
	switch s {
	case "debug":
		return logging.LevelDebug
	case "warn":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}

func listManager(cfg *config.Config, logger *logging.Logger) *iplist.Manager {
	return iplist.NewManager(
		cfg.IPLists.CacheDir,
		cfg.IPLists.MaxAgeDuration(),
		logger.WithComponent("iplist"),
	)
}

// fetchCountryLists downloads (or reads from cache) the v4 and, when
// enabled, v6 zone files for the configured country.
func fetchCountryLists(cfg *config.Config, lists *iplist.Manager) (v4, v6 []string, err error) {
	v4, err = lists.FetchCountry(cfg.IPLists.BaseURL, cfg.Firewall.Country)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch IPv4 ranges: %w", err)
	}

	if cfg.Firewall.IPv6 {
		v6, err = lists.FetchCountry(cfg.IPLists.BaseURLv6, cfg.Firewall.Country)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to fetch IPv6 ranges: %w", err)
		}
	}

	return v4, v6, nil
}
