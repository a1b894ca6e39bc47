package cmd

import (
	"fmt"
	"net"

	"varg.is/gatewall/internal/geoip"
)

// RunLookup resolves an IP to a country code via the configured MMDB
// database.
func RunLookup(configFile, ipStr string) error {
	cfg, _, err := loadConfig(configFile)
	if err != nil {
		return err
	}
	if cfg.GeoIP == nil || cfg.GeoIP.DatabasePath == "" {
		return fmt.Errorf("no geoip database_path configured")
	}

	ip := net.ParseIP(ipStr)
	if ip == nil {
		return fmt.Errorf("invalid IP address %q", ipStr)
	}

	resolver, err := geoip.Open(cfg.GeoIP.DatabasePath)
	if err != nil {
		return err
	}
	defer resolver.Close()

	country, err := resolver.LookupCountry(ip)
	if err != nil {
		return err
	}
	if country == "" {
		fmt.Printf("%s: country unknown\n", ip)
		return nil
	}

	fmt.Printf("%s: %s\n", ip, country)
	return nil
}
