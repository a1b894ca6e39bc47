//go:build !linux
// +build !linux

package power

import (
	"fmt"
	"runtime"

	"varg.is/gatewall/internal/logging"
)

// ErrNotSupported is returned when power operations are attempted on
// non-Linux systems.
var ErrNotSupported = fmt.Errorf("power operations not supported on %s", runtime.GOOS)

// SystemController is a stub for non-Linux builds.
type SystemController struct{}

// NewSystemController creates the stub power controller.
func NewSystemController(logger *logging.Logger) *SystemController {
	return &SystemController{}
}

// PowerOff reports that power management is unavailable.
func (c *SystemController) PowerOff() error {
	return ErrNotSupported
}
