//go:build linux
// +build linux

package firewall

import (
	"sync"

	"github.com/google/nftables"
)

// MockNFTablesConn is an in-memory NFTablesConn for tests. Staged
// operations only become visible after Flush, mirroring the batching
// behavior of the real connection.
type MockNFTablesConn struct {
	mu sync.Mutex

	FlushErr   error
	FlushCalls int

	tables   map[string]*nftables.Table
	chains   map[string]*nftables.Chain
	rules    map[string][]*nftables.Rule
	sets     map[string]*nftables.Set
	elements map[string][]nftables.SetElement

	pending []func()
}

// NewMockNFTablesConn creates an empty mock connection.
func NewMockNFTablesConn() *MockNFTablesConn {
	return &MockNFTablesConn{
		tables:   make(map[string]*nftables.Table),
		chains:   make(map[string]*nftables.Chain),
		rules:    make(map[string][]*nftables.Rule),
		sets:     make(map[string]*nftables.Set),
		elements: make(map[string][]nftables.SetElement),
	}
}

func (m *MockNFTablesConn) stage(op func()) {
	m.pending = append(m.pending, op)
}

func (m *MockNFTablesConn) AddTable(t *nftables.Table) *nftables.Table {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stage(func() { m.tables[t.Name] = t })
	return t
}

func (m *MockNFTablesConn) DelTable(t *nftables.Table) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stage(func() {
		delete(m.tables, t.Name)
		for key := range m.chains {
			if m.chains[key].Table.Name == t.Name {
				delete(m.chains, key)
			}
		}
		for name, s := range m.sets {
			if s.Table.Name == t.Name {
				delete(m.sets, name)
				delete(m.elements, name)
			}
		}
		for key := range m.rules {
			delete(m.rules, key)
		}
	})
}

func (m *MockNFTablesConn) ListTables() ([]*nftables.Table, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tables := make([]*nftables.Table, 0, len(m.tables))
	for _, t := range m.tables {
		tables = append(tables, t)
	}
	return tables, nil
}

func (m *MockNFTablesConn) AddChain(c *nftables.Chain) *nftables.Chain {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stage(func() { m.chains[c.Table.Name+"/"+c.Name] = c })
	return c
}

func (m *MockNFTablesConn) ListChains() ([]*nftables.Chain, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	chains := make([]*nftables.Chain, 0, len(m.chains))
	for _, c := range m.chains {
		chains = append(chains, c)
	}
	return chains, nil
}

func (m *MockNFTablesConn) AddRule(r *nftables.Rule) *nftables.Rule {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := r.Table.Name + "/" + r.Chain.Name
	m.stage(func() { m.rules[key] = append(m.rules[key], r) })
	return r
}

func (m *MockNFTablesConn) GetRules(t *nftables.Table, c *nftables.Chain) ([]*nftables.Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rules[t.Name+"/"+c.Name], nil
}

func (m *MockNFTablesConn) AddSet(s *nftables.Set, vals []nftables.SetElement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stage(func() {
		m.sets[s.Name] = s
		m.elements[s.Name] = append([]nftables.SetElement(nil), vals...)
	})
	return nil
}

func (m *MockNFTablesConn) GetSets(t *nftables.Table) ([]*nftables.Set, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sets := make([]*nftables.Set, 0, len(m.sets))
	for _, s := range m.sets {
		if s.Table.Name == t.Name {
			sets = append(sets, s)
		}
	}
	return sets, nil
}

func (m *MockNFTablesConn) GetSetElements(s *nftables.Set) ([]nftables.SetElement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.elements[s.Name], nil
}

func (m *MockNFTablesConn) SetAddElements(s *nftables.Set, vals []nftables.SetElement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stage(func() { m.elements[s.Name] = append(m.elements[s.Name], vals...) })
	return nil
}

func (m *MockNFTablesConn) FlushSet(s *nftables.Set) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stage(func() { m.elements[s.Name] = nil })
}

func (m *MockNFTablesConn) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FlushCalls++
	if m.FlushErr != nil {
		m.pending = nil
		return m.FlushErr
	}
	for _, op := range m.pending {
		op()
	}
	m.pending = nil
	return nil
}

// Helpers for test assertions.

func (m *MockNFTablesConn) TableCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tables)
}

func (m *MockNFTablesConn) RuleCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, rules := range m.rules {
		n += len(rules)
	}
	return n
}

func (m *MockNFTablesConn) Rules(table, chain string) []*nftables.Rule {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rules[table+"/"+chain]
}
