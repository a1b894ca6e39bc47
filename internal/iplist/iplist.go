// Package iplist downloads, caches and parses country IP range lists
// (ipdeny-style zone files: one IP or CIDR per line, # comments).
package iplist

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"varg.is/gatewall/internal/brand"
	"varg.is/gatewall/internal/logging"
)

// maxListSize caps downloads at 10MB to prevent memory exhaustion.
const maxListSize = 10 * 1024 * 1024

// Manager downloads zone files with on-disk caching.
type Manager struct {
	cacheDir string
	maxAge   time.Duration
	client   *http.Client
	logger   *logging.Logger
}

// NewManager creates a zone list manager. maxAge controls how long cached
// downloads stay fresh.
func NewManager(cacheDir string, maxAge time.Duration, logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.Default().WithComponent("iplist")
	}
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	return &Manager{
		cacheDir: cacheDir,
		maxAge:   maxAge,
		client:   &http.Client{Timeout: 60 * time.Second},
		logger:   logger,
	}
}

// ZoneURL expands a base URL template for a country code. The literal
// "{cc}" is replaced with the lowercase code.
func ZoneURL(template, cc string) string {
	return strings.ReplaceAll(template, "{cc}", strings.ToLower(cc))
}

// FetchCountry downloads (or loads from cache) the zone file for a country.
func (m *Manager) FetchCountry(template, cc string) ([]string, error) {
	return m.FetchURL(ZoneURL(template, cc))
}

// FetchURL downloads an IP list from any URL with caching support.
func (m *Manager) FetchURL(url string) ([]string, error) {
	cacheKey := cacheKeyFor(url)

	if ips, err := m.loadFromCache(cacheKey); err == nil {
		m.logger.Debug("using cached list", "url", url, "entries", len(ips))
		return ips, nil
	}

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", brand.UserAgent(brand.Version))

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download %s: status %d", url, resp.StatusCode)
	}

	var reader io.Reader = resp.Body
	if strings.HasSuffix(url, ".gz") || resp.Header.Get("Content-Encoding") == "gzip" {
		gzReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer gzReader.Close()
		reader = gzReader
	}

	data, err := io.ReadAll(io.LimitReader(reader, maxListSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	ips, err := ParseIPList(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse IP list: %w", err)
	}
	if len(ips) == 0 {
		return nil, fmt.Errorf("list %s contained no usable entries", url)
	}

	if err := m.saveToCache(cacheKey, data, resp.Header.Get("ETag")); err != nil {
		m.logger.Warn("failed to cache list", "url", url, "error", err)
	}

	return ips, nil
}

// ParseIPList extracts IPs and CIDRs from a zone file, skipping comments
// and garbage lines.
func ParseIPList(r io.Reader) ([]string, error) {
	var ips []string
	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}

		if idx := strings.Index(line, "#"); idx != -1 {
			line = strings.TrimSpace(line[:idx])
		}
		if idx := strings.Index(line, ";"); idx != -1 {
			line = strings.TrimSpace(line[:idx])
		}

		if isValidIPOrCIDR(line) {
			ips = append(ips, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return ips, nil
}

// isValidIPOrCIDR checks if a string is a valid IP address or CIDR.
func isValidIPOrCIDR(s string) bool {
	if strings.Contains(s, "/") {
		_, _, err := net.ParseCIDR(s)
		return err == nil
	}
	return net.ParseIP(s) != nil
}
