// Package firewall applies the inbound geo-restriction policy as a
// native nftables ruleset: a single inet table with an input chain
// whose policy is drop, plus interval sets holding the allowed country
// ranges and the whitelist. Rules and set contents are committed in one
// netlink transaction so the kernel never sees a half-applied policy.
package firewall

import (
	"fmt"
	"net"
	"regexp"
	"strings"

	"varg.is/gatewall/internal/config"
)

// nftables object names. Everything lives in one inet table so a flush
// of the table removes the whole policy.
const (
	TableName      = "gatewall"
	InputChainName = "input"

	SetCountry4   = "country4"
	SetCountry6   = "country6"
	SetWhitelist4 = "whitelist4"
	SetWhitelist6 = "whitelist6"
	SetPorts      = "allow_ports"
)

var validSetNameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

func isValidSetName(name string) bool {
	return validSetNameRegex.MatchString(name)
}

// Ruleset is the fully resolved policy handed to the manager: the
// country ranges are already downloaded and parsed, the whitelist is
// split by address family, ports are validated.
type Ruleset struct {
	Country     string
	CountryV4   []string
	CountryV6   []string
	WhitelistV4 []string
	WhitelistV6 []string
	Ports       []uint16
	Limit       string
	AllowPing   bool
	IPv6        bool
}

// Status reports what is currently loaded in the kernel.
type Status struct {
	Active           bool   `json:"active"`
	Country          string `json:"country,omitempty"`
	CountryEntries4  int    `json:"country_entries_v4"`
	CountryEntries6  int    `json:"country_entries_v6"`
	WhitelistEntries int    `json:"whitelist_entries"`
	Ports            []int  `json:"ports,omitempty"`
	DroppedPackets   uint64 `json:"dropped_packets"`
	DroppedBytes     uint64 `json:"dropped_bytes"`
}

// Manager owns the kernel ruleset lifecycle.
type Manager interface {
	// Apply atomically replaces the current policy.
	Apply(rs *Ruleset) error
	// Flush removes the policy entirely, restoring an open firewall.
	Flush() error
	// Status inspects the loaded ruleset.
	Status() (*Status, error)
}

// BuildRuleset resolves a firewall config plus the downloaded country
// ranges into the concrete policy. Whitelist entries are validated and
// split by address family; bad entries are an error, not a silent skip,
// since a missing whitelist entry can lock the operator out.
func BuildRuleset(cfg *config.FirewallConfig, countryV4, countryV6 []string) (*Ruleset, error) {
	if cfg == nil {
		return nil, fmt.Errorf("firewall config is required")
	}
	if cfg.Country == "" {
		return nil, fmt.Errorf("firewall country is required")
	}

	rs := &Ruleset{
		Country:   strings.ToLower(cfg.Country),
		CountryV4: countryV4,
		CountryV6: countryV6,
		Limit:     cfg.Limit,
		AllowPing: cfg.AllowPing,
		IPv6:      cfg.IPv6,
	}

	for _, entry := range cfg.Whitelist {
		v6, err := entryIsIPv6(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid whitelist entry %q: %w", entry, err)
		}
		if v6 {
			rs.WhitelistV6 = append(rs.WhitelistV6, entry)
		} else {
			rs.WhitelistV4 = append(rs.WhitelistV4, entry)
		}
	}

	for _, p := range cfg.Ports {
		if p < 1 || p > 65535 {
			return nil, fmt.Errorf("invalid port %d", p)
		}
		rs.Ports = append(rs.Ports, uint16(p))
	}

	return rs, nil
}

// entryIsIPv6 classifies an IP or CIDR string by address family.
func entryIsIPv6(entry string) (bool, error) {
	if ip := net.ParseIP(entry); ip != nil {
		return ip.To4() == nil, nil
	}
	ip, _, err := net.ParseCIDR(entry)
	if err != nil {
		return false, err
	}
	return ip.To4() == nil, nil
}
