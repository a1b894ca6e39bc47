//go:build linux
// +build linux

package firewall

import (
	"fmt"
	"net"
	"sync"

	"github.com/google/nftables"
	"github.com/google/nftables/binaryutil"
)

// SetManager handles nftables set operations with the native library.
// Country and whitelist sets are interval sets, so every element is a
// [start, end) pair; the port set is a plain inet_service set.
type SetManager struct {
	conn      NFTablesConn
	tableName string
	table     *nftables.Table
	sets      map[string]*nftables.Set
	mu        sync.RWMutex
}

// NewSetManager creates a set manager bound to the given table.
func NewSetManager(conn NFTablesConn, tableName string) *SetManager {
	return &SetManager{
		conn:      conn,
		tableName: tableName,
		sets:      make(map[string]*nftables.Set),
	}
}

// Bind caches the table and set references created by the manager in
// the same transaction, so later reloads skip the kernel round trip.
func (m *SetManager) Bind(table *nftables.Table, sets ...*nftables.Set) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.table = table
	for _, s := range sets {
		m.sets[s.Name] = s
	}
}

func (m *SetManager) getTable() (*nftables.Table, error) {
	m.mu.RLock()
	if m.table != nil {
		t := m.table
		m.mu.RUnlock()
		return t, nil
	}
	m.mu.RUnlock()

	tables, err := m.conn.ListTables()
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}

	for _, t := range tables {
		if t.Name == m.tableName && t.Family == nftables.TableFamilyINet {
			m.mu.Lock()
			m.table = t
			m.mu.Unlock()
			return t, nil
		}
	}

	return nil, fmt.Errorf("table %s not found", m.tableName)
}

func (m *SetManager) getSet(name string) (*nftables.Set, error) {
	m.mu.RLock()
	if s, ok := m.sets[name]; ok {
		m.mu.RUnlock()
		return s, nil
	}
	m.mu.RUnlock()

	table, err := m.getTable()
	if err != nil {
		return nil, err
	}

	sets, err := m.conn.GetSets(table)
	if err != nil {
		return nil, fmt.Errorf("failed to get sets: %w", err)
	}

	for _, s := range sets {
		if s.Name == name {
			m.mu.Lock()
			m.sets[name] = s
			m.mu.Unlock()
			return s, nil
		}
	}

	return nil, fmt.Errorf("set %s not found", name)
}

// ReloadInterval atomically replaces an interval set's contents with
// the given IP/CIDR entries. Flush and add land in one transaction, so
// the set is never observed empty.
func (m *SetManager) ReloadInterval(name string, entries []string, ipv6 bool) error {
	if !isValidSetName(name) {
		return fmt.Errorf("invalid set name: %s", name)
	}

	set, err := m.getSet(name)
	if err != nil {
		return err
	}

	m.conn.FlushSet(set)

	elements := IntervalElements(entries, ipv6)
	if len(elements) > 0 {
		if err := m.conn.SetAddElements(set, elements); err != nil {
			return fmt.Errorf("failed to add elements to %s: %w", name, err)
		}
	}

	return m.conn.Flush()
}

// CountElements returns how many entries a set holds. Interval sets
// report pairs, so end markers are not counted.
func (m *SetManager) CountElements(name string) (int, error) {
	set, err := m.getSet(name)
	if err != nil {
		return 0, err
	}

	elements, err := m.conn.GetSetElements(set)
	if err != nil {
		return 0, fmt.Errorf("failed to get elements of %s: %w", name, err)
	}

	n := 0
	for _, e := range elements {
		if !e.IntervalEnd {
			n++
		}
	}
	return n, nil
}

// IntervalElements converts IP/CIDR strings to interval set elements.
// Each entry becomes a start element plus an exclusive-end marker.
// Entries of the wrong address family and garbage lines are skipped;
// zone files are external input and a single stray line must not sink
// the whole reload.
func IntervalElements(entries []string, ipv6 bool) []nftables.SetElement {
	elements := make([]nftables.SetElement, 0, len(entries)*2)

	for _, entry := range entries {
		ipnet := parseEntry(entry)
		if ipnet == nil {
			continue
		}
		if (ipnet.IP.To4() == nil) != ipv6 {
			continue
		}

		start := ipnet.IP
		if !ipv6 {
			start = start.To4()
		}

		end := make(net.IP, len(start))
		copy(end, start)
		for i := len(end) - 1; i >= 0; i-- {
			end[i] |= ^ipnet.Mask[i]
		}
		// Increment for the exclusive end of the interval.
		for i := len(end) - 1; i >= 0; i-- {
			end[i]++
			if end[i] != 0 {
				break
			}
		}

		elements = append(elements,
			nftables.SetElement{Key: start},
			nftables.SetElement{Key: end, IntervalEnd: true},
		)
	}

	return elements
}

// PortElements converts ports to inet_service set elements.
func PortElements(ports []uint16) []nftables.SetElement {
	elements := make([]nftables.SetElement, 0, len(ports))
	for _, p := range ports {
		elements = append(elements, nftables.SetElement{
			Key: binaryutil.BigEndian.PutUint16(p),
		})
	}
	return elements
}

// parseEntry accepts an IP or CIDR string and normalizes it to a net.
func parseEntry(entry string) *net.IPNet {
	if _, ipnet, err := net.ParseCIDR(entry); err == nil {
		return ipnet
	}

	ip := net.ParseIP(entry)
	if ip == nil {
		return nil
	}
	if ip4 := ip.To4(); ip4 != nil {
		return &net.IPNet{IP: ip4, Mask: net.CIDRMask(32, 32)}
	}
	return &net.IPNet{IP: ip, Mask: net.CIDRMask(128, 128)}
}
