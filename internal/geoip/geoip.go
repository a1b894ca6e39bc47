// Package geoip wraps an MMDB country database (MaxMind GeoLite2 or
// DB-IP lite) for lookups and for spot-checking downloaded zone files.
package geoip

import (
	"fmt"
	"net"
	"os"
	"strings"
	"sync"

	"github.com/oschwald/geoip2-golang"
)

// Resolver handles country lookups from MMDB databases.
type Resolver struct {
	mu     sync.RWMutex
	reader *geoip2.Reader
	path   string
}

// Open creates a resolver for the database at dbPath.
func Open(dbPath string) (*Resolver, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("no GeoIP database configured")
	}

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("GeoIP database not found at %s", dbPath)
	}

	reader, err := geoip2.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open GeoIP database: %w", err)
	}

	return &Resolver{
		reader: reader,
		path:   dbPath,
	}, nil
}

// LookupCountry returns the ISO 3166-1 alpha-2 country code for the given IP.
func (r *Resolver) LookupCountry(ip net.IP) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.reader == nil {
		return "", fmt.Errorf("GeoIP database not loaded")
	}

	record, err := r.reader.Country(ip)
	if err != nil {
		return "", fmt.Errorf("lookup failed for %s: %w", ip, err)
	}

	return record.Country.IsoCode, nil
}

// Close releases the database resources.
func (r *Resolver) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.reader != nil {
		return r.reader.Close()
	}
	return nil
}

// Reload reopens the database (for updates).
func (r *Resolver) Reload() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.reader != nil {
		r.reader.Close()
	}

	reader, err := geoip2.Open(r.path)
	if err != nil {
		return fmt.Errorf("failed to reload GeoIP database: %w", err)
	}

	r.reader = reader
	return nil
}

// DatabasePath returns the path to the loaded database.
func (r *Resolver) DatabasePath() string {
	return r.path
}

// VerifyResult summarizes a sample check of zone ranges against the database.
type VerifyResult struct {
	Sampled    int
	Matched    int
	Mismatched []string
}

// VerifyRanges looks up the first address of up to sampleSize entries and
// counts how many the database attributes to the expected country. Zone
// file and database vendors disagree at the edges, so a handful of
// mismatches is normal.
func (r *Resolver) VerifyRanges(entries []string, country string, sampleSize int) VerifyResult {
	want := strings.ToUpper(country)
	result := VerifyResult{}

	if sampleSize <= 0 {
		sampleSize = 100
	}

	step := 1
	if len(entries) > sampleSize {
		step = len(entries) / sampleSize
	}

	for i := 0; i < len(entries) && result.Sampled < sampleSize; i += step {
		ip := firstAddr(entries[i])
		if ip == nil {
			continue
		}
		result.Sampled++

		got, err := r.LookupCountry(ip)
		if err != nil || !strings.EqualFold(got, want) {
			result.Mismatched = append(result.Mismatched, entries[i])
			continue
		}
		result.Matched++
	}

	return result
}

func firstAddr(entry string) net.IP {
	if strings.Contains(entry, "/") {
		ip, _, err := net.ParseCIDR(entry)
		if err != nil {
			return nil
		}
		return ip
	}
	return net.ParseIP(entry)
}
