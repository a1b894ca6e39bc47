package probe

import (
	"context"
	"fmt"
	"time"

	"github.com/miekg/dns"
)

// DNSProber checks reachability by asking the target resolver for the
// root NS set. Any well-formed response counts as success; the watchdog
// only cares that the resolver answered, not what it said.
type DNSProber struct {
	Timeout time.Duration
}

// Probe sends a single query and waits for any response.
func (p *DNSProber) Probe(ctx context.Context, target Target) error {
	client := &dns.Client{Timeout: p.Timeout}

	msg := new(dns.Msg)
	msg.SetQuestion(".", dns.TypeNS)
	msg.RecursionDesired = false

	resp, _, err := client.ExchangeContext(ctx, msg, target.HostPort())
	if err != nil {
		return err
	}
	if resp == nil {
		return fmt.Errorf("empty response from %s", target.HostPort())
	}
	return nil
}
