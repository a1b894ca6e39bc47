//go:build !linux
// +build !linux

package firewall

import (
	"errors"

	"varg.is/gatewall/internal/logging"
)

// ErrNotSupported is returned on platforms without nftables.
var ErrNotSupported = errors.New("firewall management requires linux")

type stubManager struct{}

// NewManager returns a stub on non-Linux platforms.
func NewManager(logger *logging.Logger) (Manager, error) {
	if logger != nil {
		logger.Warn("nftables is not available on this platform")
	}
	return &stubManager{}, nil
}

func (s *stubManager) Apply(rs *Ruleset) error {
	return ErrNotSupported
}

func (s *stubManager) Flush() error {
	return ErrNotSupported
}

func (s *stubManager) Status() (*Status, error) {
	return nil, ErrNotSupported
}
