//go:build linux
// +build linux

package firewall

import (
	"fmt"
	"strings"

	"github.com/google/nftables"
	"github.com/google/nftables/binaryutil"
	"github.com/google/nftables/expr"

	"varg.is/gatewall/internal/logging"
)

const dropCounterMarker = "drop-counter"

// NFTManager is the Linux Manager implementation on top of the native
// nftables library.
type NFTManager struct {
	conn   NFTablesConn
	sets   *SetManager
	logger *logging.Logger
}

// NewManager connects to the kernel and returns the native manager.
func NewManager(logger *logging.Logger) (Manager, error) {
	conn, err := nftables.New()
	if err != nil {
		return nil, fmt.Errorf("failed to open nftables connection: %w", err)
	}
	return NewManagerWithConn(NewRealNFTablesConn(conn), logger), nil
}

// NewManagerWithConn builds a manager on an explicit connection.
func NewManagerWithConn(conn NFTablesConn, logger *logging.Logger) *NFTManager {
	if logger == nil {
		logger = logging.Default().WithComponent("firewall")
	}
	return &NFTManager{
		conn:   conn,
		sets:   NewSetManager(conn, TableName),
		logger: logger,
	}
}

// Sets exposes the set manager for incremental reloads in daemon mode.
func (m *NFTManager) Sets() *SetManager {
	return m.sets
}

// Apply replaces the whole policy in a single transaction: delete the
// old table, recreate table, chain, sets and rules, then commit. The
// kernel applies the batch atomically, so established connections never
// hit a half-built chain.
func (m *NFTManager) Apply(rs *Ruleset) error {
	if rs == nil {
		return fmt.Errorf("ruleset is required")
	}
	if len(rs.CountryV4) == 0 {
		return fmt.Errorf("refusing to apply an empty country list for %q", rs.Country)
	}

	m.logger.Info("applying ruleset",
		"country", rs.Country,
		"ranges_v4", len(rs.CountryV4),
		"ranges_v6", len(rs.CountryV6),
		"whitelist", len(rs.WhitelistV4)+len(rs.WhitelistV6),
		"ports", len(rs.Ports),
		"ipv6", rs.IPv6)

	// Drop any previous policy first. The delete has to land in its own
	// transaction; a missing table would otherwise fail the whole batch.
	stale := &nftables.Table{Name: TableName, Family: nftables.TableFamilyINet}
	if m.tableExists() {
		m.conn.DelTable(stale)
		if err := m.conn.Flush(); err != nil {
			return fmt.Errorf("failed to remove previous table: %w", err)
		}
	}

	table := m.conn.AddTable(&nftables.Table{
		Name:   TableName,
		Family: nftables.TableFamilyINet,
	})

	policy := nftables.ChainPolicyDrop
	input := m.conn.AddChain(&nftables.Chain{
		Name:     InputChainName,
		Table:    table,
		Type:     nftables.ChainTypeFilter,
		Hooknum:  nftables.ChainHookInput,
		Priority: nftables.ChainPriorityFilter,
		Policy:   &policy,
	})

	sets, err := m.createSets(table, rs)
	if err != nil {
		return err
	}

	m.addRules(table, input, rs)

	if err := m.conn.Flush(); err != nil {
		return fmt.Errorf("failed to commit ruleset: %w", err)
	}

	m.sets.Bind(table, sets...)
	m.logger.Info("ruleset applied", "country", rs.Country)
	return nil
}

// createSets stages all named sets with their initial contents.
func (m *NFTManager) createSets(table *nftables.Table, rs *Ruleset) ([]*nftables.Set, error) {
	type setSpec struct {
		set      *nftables.Set
		elements []nftables.SetElement
	}

	specs := []setSpec{
		{
			set:      &nftables.Set{Name: SetCountry4, Table: table, KeyType: nftables.TypeIPAddr, Interval: true},
			elements: IntervalElements(rs.CountryV4, false),
		},
		{
			set:      &nftables.Set{Name: SetWhitelist4, Table: table, KeyType: nftables.TypeIPAddr, Interval: true},
			elements: IntervalElements(rs.WhitelistV4, false),
		},
	}

	if rs.IPv6 {
		specs = append(specs,
			setSpec{
				set:      &nftables.Set{Name: SetCountry6, Table: table, KeyType: nftables.TypeIP6Addr, Interval: true},
				elements: IntervalElements(rs.CountryV6, true),
			},
			setSpec{
				set:      &nftables.Set{Name: SetWhitelist6, Table: table, KeyType: nftables.TypeIP6Addr, Interval: true},
				elements: IntervalElements(rs.WhitelistV6, true),
			},
		)
	}

	if len(rs.Ports) > 0 {
		specs = append(specs, setSpec{
			set:      &nftables.Set{Name: SetPorts, Table: table, KeyType: nftables.TypeInetService},
			elements: PortElements(rs.Ports),
		})
	}

	sets := make([]*nftables.Set, 0, len(specs))
	for _, spec := range specs {
		if err := m.conn.AddSet(spec.set, spec.elements); err != nil {
			return nil, fmt.Errorf("failed to create set %s: %w", spec.set.Name, err)
		}
		sets = append(sets, spec.set)
	}
	return sets, nil
}

// addRules stages the input chain rules in match order.
func (m *NFTManager) addRules(table *nftables.Table, input *nftables.Chain, rs *Ruleset) {
	addRule := func(userData string, groups ...[]expr.Any) {
		var exprs []expr.Any
		for _, g := range groups {
			exprs = append(exprs, g...)
		}
		m.conn.AddRule(&nftables.Rule{
			Table:    table,
			Chain:    input,
			Exprs:    exprs,
			UserData: []byte(userData),
		})
	}

	verdict := func(v expr.Any) []expr.Any { return []expr.Any{v} }

	addRule("loopback", matchInputInterface("lo"), verdict(accept()))
	addRule("ct-invalid", matchCtState(expr.CtStateBitINVALID), verdict(drop()))
	addRule("ct-established",
		matchCtState(expr.CtStateBitESTABLISHED|expr.CtStateBitRELATED),
		verdict(accept()))

	addRule("whitelist-v4", matchSaddrSet(SetWhitelist4, false), verdict(accept()))
	if rs.IPv6 {
		addRule("whitelist-v6", matchSaddrSet(SetWhitelist6, true), verdict(accept()))
		// ICMPv6 carries neighbour discovery; blocking it kills IPv6.
		addRule("icmpv6", matchL4Proto(protoICMPv6), verdict(accept()))
	}

	if rs.AllowPing {
		addRule("ping", matchL4Proto(protoICMP), limitExprs("10/second"), verdict(accept()))
	}

	limit := limitExprs(rs.Limit)

	if len(rs.Ports) > 0 {
		addRule("country-v4-tcp",
			matchSaddrSet(SetCountry4, false), matchL4Proto(protoTCP), matchDportSet(SetPorts),
			limit, verdict(&expr.Counter{}), verdict(accept()))
		addRule("country-v4-udp",
			matchSaddrSet(SetCountry4, false), matchL4Proto(protoUDP), matchDportSet(SetPorts),
			limit, verdict(&expr.Counter{}), verdict(accept()))
		if rs.IPv6 {
			addRule("country-v6-tcp",
				matchSaddrSet(SetCountry6, true), matchL4Proto(protoTCP), matchDportSet(SetPorts),
				limit, verdict(&expr.Counter{}), verdict(accept()))
			addRule("country-v6-udp",
				matchSaddrSet(SetCountry6, true), matchL4Proto(protoUDP), matchDportSet(SetPorts),
				limit, verdict(&expr.Counter{}), verdict(accept()))
		}
	} else {
		addRule("country-v4",
			matchSaddrSet(SetCountry4, false), limit,
			verdict(&expr.Counter{}), verdict(accept()))
		if rs.IPv6 {
			addRule("country-v6",
				matchSaddrSet(SetCountry6, true), limit,
				verdict(&expr.Counter{}), verdict(accept()))
		}
	}

	// Everything that reaches the end of the chain is dropped by the
	// chain policy; count it so Status can report it. The country code
	// rides along in the marker since the kernel has nowhere else to
	// keep it.
	marker := dropCounterMarker
	if rs.Country != "" {
		marker += " country=" + rs.Country
	}
	addRule(marker, verdict(&expr.Counter{}))
}

// Flush removes the policy table entirely.
func (m *NFTManager) Flush() error {
	if !m.tableExists() {
		m.logger.Info("no ruleset loaded, nothing to flush")
		return nil
	}

	m.conn.DelTable(&nftables.Table{Name: TableName, Family: nftables.TableFamilyINet})
	if err := m.conn.Flush(); err != nil {
		return fmt.Errorf("failed to flush ruleset: %w", err)
	}

	m.logger.Info("ruleset flushed")
	return nil
}

// Status inspects the loaded table and reports set sizes and the drop
// counter.
func (m *NFTManager) Status() (*Status, error) {
	table, err := m.findTable()
	if err != nil {
		return nil, err
	}
	if table == nil {
		return &Status{Active: false}, nil
	}

	st := &Status{Active: true}

	sets, err := m.conn.GetSets(table)
	if err != nil {
		return nil, fmt.Errorf("failed to list sets: %w", err)
	}

	for _, s := range sets {
		elements, err := m.conn.GetSetElements(s)
		if err != nil {
			return nil, fmt.Errorf("failed to read set %s: %w", s.Name, err)
		}
		switch s.Name {
		case SetCountry4:
			st.CountryEntries4 = countIntervals(elements)
		case SetCountry6:
			st.CountryEntries6 = countIntervals(elements)
		case SetWhitelist4, SetWhitelist6:
			st.WhitelistEntries += countIntervals(elements)
		case SetPorts:
			for _, e := range elements {
				if len(e.Key) == 2 {
					st.Ports = append(st.Ports, int(binaryutil.BigEndian.Uint16(e.Key)))
				}
			}
		}
	}

	rules, err := m.conn.GetRules(table, &nftables.Chain{Name: InputChainName, Table: table})
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	for _, r := range rules {
		ud := string(r.UserData)
		if !strings.HasPrefix(ud, dropCounterMarker) {
			continue
		}
		if rest, ok := strings.CutPrefix(ud, dropCounterMarker+" country="); ok {
			st.Country = rest
		}
		for _, e := range r.Exprs {
			if c, ok := e.(*expr.Counter); ok {
				st.DroppedPackets = c.Packets
				st.DroppedBytes = c.Bytes
			}
		}
	}

	return st, nil
}

func countIntervals(elements []nftables.SetElement) int {
	n := 0
	for _, e := range elements {
		if !e.IntervalEnd {
			n++
		}
	}
	return n
}

func (m *NFTManager) tableExists() bool {
	t, err := m.findTable()
	return err == nil && t != nil
}

func (m *NFTManager) findTable() (*nftables.Table, error) {
	tables, err := m.conn.ListTables()
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	for _, t := range tables {
		if t.Name == TableName && t.Family == nftables.TableFamilyINet {
			return t, nil
		}
	}
	return nil, nil
}
