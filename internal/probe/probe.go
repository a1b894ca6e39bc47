// Package probe implements single-shot reachability checks against a
// remote target. All failures are equivalent: a probe either succeeds
// within its timeout or the target counts as unreachable.
package probe

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"
)

// Target is a remote endpoint used purely as a reachability signal.
type Target struct {
	Name    string
	Address string
	Port    int
}

// HostPort returns the dialable address of the target.
func (t Target) HostPort() string {
	return net.JoinHostPort(t.Address, strconv.Itoa(t.Port))
}

func (t Target) String() string {
	if t.Name != "" {
		return t.Name
	}
	return t.HostPort()
}

// Prober performs a single reachability check. A nil error means the
// target answered within the timeout.
type Prober interface {
	Probe(ctx context.Context, target Target) error
}

// New returns a prober for the given method (tcp, icmp or dns).
func New(method string, timeout time.Duration) (Prober, error) {
	switch method {
	case "", "tcp":
		return &TCPProber{Timeout: timeout}, nil
	case "icmp":
		return &ICMPProber{Timeout: timeout}, nil
	case "dns":
		return &DNSProber{Timeout: timeout}, nil
	default:
		return nil, fmt.Errorf("unknown probe method %q", method)
	}
}
