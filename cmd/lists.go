package cmd

import (
	"fmt"
	"strings"
)

// RunLists manages the on-disk country list cache.
func RunLists(configFile string, args []string) error {
	cfg, logger, err := loadConfig(configFile)
	if err != nil {
		return err
	}
	lists := listManager(cfg, logger)

	sub := "info"
	if len(args) > 0 {
		sub = args[0]
	}

	switch sub {
	case "info":
		info, err := lists.GetCacheInfo()
		if err != nil {
			return err
		}
		fmt.Printf("Cache dir:    %s\n", info.CacheDir)
		fmt.Printf("Cached lists: %d\n", info.CachedLists)
		fmt.Printf("Total size:   %d bytes\n", info.TotalSize)
		return nil

	case "refresh":
		if cfg.Firewall == nil || cfg.Firewall.Country == "" {
			return fmt.Errorf("no firewall country configured")
		}
		// Drop the cache so the fetch hits the origin.
		if err := lists.ClearCache(); err != nil {
			return err
		}
		v4, v6, err := fetchCountryLists(cfg, lists)
		if err != nil {
			return err
		}
		fmt.Printf("Refreshed %s: %d IPv4 ranges", strings.ToUpper(cfg.Firewall.Country), len(v4))
		if cfg.Firewall.IPv6 {
			fmt.Printf(", %d IPv6 ranges", len(v6))
		}
		fmt.Println()
		return nil

	case "clear":
		if err := lists.ClearCache(); err != nil {
			return err
		}
		fmt.Println("Cache cleared.")
		return nil

	default:
		return fmt.Errorf("unknown lists subcommand %q (want info, refresh or clear)", sub)
	}
}
