//go:build linux
// +build linux

package health

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/nftables"
	"github.com/vishvananda/netlink"

	"varg.is/gatewall/internal/brand"
	"varg.is/gatewall/internal/firewall"
)

func registerPlatformChecks(c *Checker) {
	c.Register("ruleset", CheckRuleset)
	c.Register("conntrack", CheckConntrack)
	c.Register("interfaces", CheckInterfaces)
	c.Register("cache", CheckCacheDir)
}

// CheckRuleset verifies nftables is reachable and our table is loaded.
// A reachable kernel without the table is degraded, not unhealthy: the
// host still works, it is just unprotected.
func CheckRuleset(ctx context.Context) Check {
	start := time.Now()
	check := Check{LastChecked: start}

	conn, err := nftables.New()
	if err != nil {
		check.Status = StatusUnhealthy
		check.Message = fmt.Sprintf("failed to open nftables connection: %v", err)
		check.Duration = time.Since(start)
		return check
	}

	tables, err := conn.ListTables()
	if err != nil {
		check.Status = StatusUnhealthy
		check.Message = fmt.Sprintf("failed to list tables: %v", err)
		check.Duration = time.Since(start)
		return check
	}

	check.Status = StatusDegraded
	check.Message = "ruleset not loaded"
	for _, t := range tables {
		if t.Name == firewall.TableName && t.Family == nftables.TableFamilyINet {
			check.Status = StatusHealthy
			check.Message = "ruleset loaded"
			break
		}
	}

	check.Duration = time.Since(start)
	return check
}

// CheckConntrack verifies connection tracking is available.
func CheckConntrack(ctx context.Context) Check {
	start := time.Now()
	check := Check{LastChecked: start}

	data, err := os.ReadFile("/proc/sys/net/netfilter/nf_conntrack_count")
	if err != nil {
		check.Status = StatusDegraded
		check.Message = fmt.Sprintf("cannot read conntrack: %v", err)
	} else {
		check.Status = StatusHealthy
		check.Message = fmt.Sprintf("conntrack entries: %s", strings.TrimSpace(string(data)))
	}

	check.Duration = time.Since(start)
	return check
}

// CheckInterfaces reports how many links are up. Zero up interfaces is
// unhealthy; the watchdog is about to notice too.
func CheckInterfaces(ctx context.Context) Check {
	start := time.Now()
	check := Check{LastChecked: start}

	links, err := netlink.LinkList()
	if err != nil {
		check.Status = StatusUnhealthy
		check.Message = fmt.Sprintf("netlink failed: %v", err)
		check.Duration = time.Since(start)
		return check
	}

	up := 0
	for _, link := range links {
		if link.Attrs().Flags&net.FlagUp != 0 {
			up++
		}
	}

	if up == 0 {
		check.Status = StatusUnhealthy
		check.Message = "no interfaces up"
	} else {
		check.Status = StatusHealthy
		check.Message = fmt.Sprintf("%d interfaces up", up)
	}

	check.Duration = time.Since(start)
	return check
}

// CheckCacheDir verifies the zone cache directory is writable, since a
// read-only cache blocks list refreshes.
func CheckCacheDir(ctx context.Context) Check {
	start := time.Now()
	check := Check{LastChecked: start}

	dir := brand.GetCacheDir()
	probe := filepath.Join(dir, ".health_probe")
	if err := os.MkdirAll(dir, 0755); err != nil {
		check.Status = StatusDegraded
		check.Message = fmt.Sprintf("cache dir unavailable: %v", err)
	} else if err := os.WriteFile(probe, []byte("ok"), 0644); err != nil {
		check.Status = StatusDegraded
		check.Message = fmt.Sprintf("cache dir not writable: %v", err)
	} else {
		os.Remove(probe)
		check.Status = StatusHealthy
		check.Message = "cache dir writable"
	}

	check.Duration = time.Since(start)
	return check
}
