//go:build linux
// +build linux

package firewall

import (
	"bytes"
	"testing"

	"github.com/google/nftables"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"varg.is/gatewall/internal/logging"
)

func quietTestLogger() *logging.Logger {
	return logging.New(logging.Config{Level: logging.LevelError, Output: &bytes.Buffer{}})
}

func testRuleset() *Ruleset {
	return &Ruleset{
		Country:     "is",
		CountryV4:   []string{"192.0.2.0/24", "198.51.100.0/24"},
		CountryV6:   []string{"2001:db8::/32"},
		WhitelistV4: []string{"203.0.113.7"},
		Ports:       []uint16{22, 443},
		Limit:       "50/second",
		AllowPing:   true,
		IPv6:        true,
	}
}

func ruleNames(rules []*nftables.Rule) []string {
	names := make([]string, 0, len(rules))
	for _, r := range rules {
		names = append(names, string(r.UserData))
	}
	return names
}

func TestApplyBuildsRuleset(t *testing.T) {
	conn := NewMockNFTablesConn()
	mgr := NewManagerWithConn(conn, quietTestLogger())

	require.NoError(t, mgr.Apply(testRuleset()))

	assert.Equal(t, 1, conn.TableCount())

	rules := conn.Rules(TableName, InputChainName)
	assert.Equal(t, []string{
		"loopback",
		"ct-invalid",
		"ct-established",
		"whitelist-v4",
		"whitelist-v6",
		"icmpv6",
		"ping",
		"country-v4-tcp",
		"country-v4-udp",
		"country-v6-tcp",
		"country-v6-udp",
		dropCounterMarker + " country=is",
	}, ruleNames(rules))
}

func TestApplyWithoutPortsAndIPv6(t *testing.T) {
	conn := NewMockNFTablesConn()
	mgr := NewManagerWithConn(conn, quietTestLogger())

	rs := &Ruleset{Country: "is", CountryV4: []string{"192.0.2.0/24"}}
	require.NoError(t, mgr.Apply(rs))

	rules := conn.Rules(TableName, InputChainName)
	assert.Equal(t, []string{
		"loopback",
		"ct-invalid",
		"ct-established",
		"whitelist-v4",
		"country-v4",
		dropCounterMarker + " country=is",
	}, ruleNames(rules))
}

func TestApplyRefusesEmptyCountryList(t *testing.T) {
	mgr := NewManagerWithConn(NewMockNFTablesConn(), quietTestLogger())

	err := mgr.Apply(&Ruleset{Country: "is"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty country list")
}

func TestApplyReplacesExistingRuleset(t *testing.T) {
	conn := NewMockNFTablesConn()
	mgr := NewManagerWithConn(conn, quietTestLogger())

	require.NoError(t, mgr.Apply(testRuleset()))
	firstRules := conn.RuleCount()

	rs := &Ruleset{Country: "is", CountryV4: []string{"192.0.2.0/24"}}
	require.NoError(t, mgr.Apply(rs))

	assert.Equal(t, 1, conn.TableCount())
	assert.Less(t, conn.RuleCount(), firstRules, "old rules must not accumulate")
}

func TestStatus(t *testing.T) {
	conn := NewMockNFTablesConn()
	mgr := NewManagerWithConn(conn, quietTestLogger())

	st, err := mgr.Status()
	require.NoError(t, err)
	assert.False(t, st.Active)

	require.NoError(t, mgr.Apply(testRuleset()))

	st, err = mgr.Status()
	require.NoError(t, err)
	assert.True(t, st.Active)
	assert.Equal(t, "is", st.Country)
	assert.Equal(t, 2, st.CountryEntries4)
	assert.Equal(t, 1, st.CountryEntries6)
	assert.Equal(t, 1, st.WhitelistEntries)
	assert.ElementsMatch(t, []int{22, 443}, st.Ports)
}

func TestFlush(t *testing.T) {
	conn := NewMockNFTablesConn()
	mgr := NewManagerWithConn(conn, quietTestLogger())

	// Flushing with nothing loaded is not an error.
	require.NoError(t, mgr.Flush())

	require.NoError(t, mgr.Apply(testRuleset()))
	require.NoError(t, mgr.Flush())

	assert.Equal(t, 0, conn.TableCount())

	st, err := mgr.Status()
	require.NoError(t, err)
	assert.False(t, st.Active)
}

func TestApplyCommitFailure(t *testing.T) {
	conn := NewMockNFTablesConn()
	conn.FlushErr = assert.AnError
	mgr := NewManagerWithConn(conn, quietTestLogger())

	err := mgr.Apply(testRuleset())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "commit")
}
