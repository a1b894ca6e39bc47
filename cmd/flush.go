package cmd

import (
	"fmt"

	"varg.is/gatewall/internal/firewall"
)

// RunFlush removes the nftables ruleset entirely.
func RunFlush(configFile string) error {
	_, logger, err := loadConfig(configFile)
	if err != nil {
		return err
	}

	mgr, err := firewall.NewManager(logger.WithComponent("firewall"))
	if err != nil {
		return err
	}

	if err := mgr.Flush(); err != nil {
		return err
	}

	fmt.Println("Ruleset removed; all inbound traffic is now allowed.")
	return nil
}
