// Package testutil holds shared test helpers.
package testutil

import (
	"os"
	"testing"
)

// RequireKernel skips the test unless the GATEWALL_KERNEL_TEST
// environment variable is set. Tests that talk to the real kernel
// (nftables, netlink) need root and a disposable netns, so they only
// run when asked for explicitly.
func RequireKernel(t *testing.T) {
	t.Helper()
	if os.Getenv("GATEWALL_KERNEL_TEST") == "" {
		t.Skip("skipping: set GATEWALL_KERNEL_TEST to run kernel tests")
	}
}
