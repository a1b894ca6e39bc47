//go:build linux
// +build linux

package power

import (
	"os/exec"

	"varg.is/gatewall/internal/logging"
)

// SystemController powers off the host via the poweroff command.
type SystemController struct {
	logger *logging.Logger
}

// NewSystemController creates the production power controller.
func NewSystemController(logger *logging.Logger) *SystemController {
	if logger == nil {
		logger = logging.Default().WithComponent("power")
	}
	return &SystemController{logger: logger}
}

// PowerOff syncs filesystems and powers the host off. The forceful
// fallback covers init systems where plain poweroff needs a PID 1
// that is no longer responding.
func (c *SystemController) PowerOff() error {
	c.logger.Error("powering off host")

	exec.Command("sync").Run()

	if err := c.logged(exec.Command("poweroff")); err != nil {
		c.logger.Error("poweroff command failed, forcing", "error", err)
		return c.logged(exec.Command("poweroff", "-f"))
	}
	return nil
}

func (c *SystemController) logged(cmd *exec.Cmd) error {
	out, err := cmd.CombinedOutput()
	if len(out) > 0 {
		c.logger.Debug("poweroff output", "output", string(out))
	}
	return err
}
