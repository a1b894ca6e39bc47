package cmd

import (
	"fmt"
	"path/filepath"

	"varg.is/gatewall/internal/brand"
	"varg.is/gatewall/internal/config"
)

// RunInit writes a commented default configuration file. An existing
// file is never overwritten.
func RunInit(configDir string) error {
	path := filepath.Join(configDir, brand.ConfigFileName)

	if err := config.WriteDefault(path); err != nil {
		return err
	}

	fmt.Printf("Wrote %s\n", path)
	fmt.Println("Edit the firewall country and watchdog targets, then run:")
	fmt.Printf("  %s check\n", brand.BinaryName)
	fmt.Printf("  %s apply\n", brand.BinaryName)
	return nil
}
