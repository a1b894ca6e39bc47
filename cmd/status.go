package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"varg.is/gatewall/internal/firewall"
	"varg.is/gatewall/internal/logging"
)

// RunStatus reports the currently loaded ruleset.
func RunStatus(jsonOut bool) error {
	mgr, err := firewall.NewManager(logging.WithComponent("firewall"))
	if err != nil {
		return err
	}

	st, err := mgr.Status()
	if err != nil {
		return err
	}

	if jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}

	if !st.Active {
		fmt.Println("Ruleset: not loaded")
		return nil
	}

	fmt.Println("Ruleset: active")
	if st.Country != "" {
		fmt.Printf("  country:           %s\n", strings.ToUpper(st.Country))
	}
	fmt.Printf("  country ranges:    %d IPv4, %d IPv6\n", st.CountryEntries4, st.CountryEntries6)
	fmt.Printf("  whitelist entries: %d\n", st.WhitelistEntries)
	if len(st.Ports) > 0 {
		ports := make([]string, len(st.Ports))
		for i, p := range st.Ports {
			ports[i] = fmt.Sprintf("%d", p)
		}
		fmt.Printf("  allowed ports:     %s\n", strings.Join(ports, ", "))
	}
	fmt.Printf("  dropped:           %d packets (%d bytes)\n", st.DroppedPackets, st.DroppedBytes)
	return nil
}
