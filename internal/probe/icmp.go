package probe

import (
	"context"
	"fmt"
	"time"

	probing "github.com/prometheus-community/pro-bing"
)

// ICMPProber checks reachability with a single echo request. Uses
// unprivileged UDP pings so it works without CAP_NET_RAW.
type ICMPProber struct {
	Timeout    time.Duration
	Privileged bool
}

// Probe sends one ping and waits for the reply.
func (p *ICMPProber) Probe(ctx context.Context, target Target) error {
	pinger, err := probing.NewPinger(target.Address)
	if err != nil {
		return fmt.Errorf("failed to create pinger: %w", err)
	}

	pinger.Count = 1
	pinger.Timeout = p.Timeout
	pinger.SetPrivileged(p.Privileged)

	if err := pinger.RunWithContext(ctx); err != nil {
		return err
	}

	if pinger.Statistics().PacketsRecv == 0 {
		return fmt.Errorf("no echo reply from %s", target.Address)
	}
	return nil
}
