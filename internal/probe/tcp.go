package probe

import (
	"context"
	"net"
	"time"
)

// TCPProber checks reachability with a plain connect attempt.
type TCPProber struct {
	Timeout time.Duration
}

// Probe dials the target and immediately closes the connection.
func (p *TCPProber) Probe(ctx context.Context, target Target) error {
	d := net.Dialer{Timeout: p.Timeout}
	conn, err := d.DialContext(ctx, "tcp", target.HostPort())
	if err != nil {
		return err
	}
	return conn.Close()
}
