//go:build !linux
// +build !linux

package health

import (
	"context"
	"time"
)

func registerPlatformChecks(c *Checker) {
	c.Register("platform", func(ctx context.Context) Check {
		return Check{
			Status:      StatusDegraded,
			Message:     "platform checks require linux",
			LastChecked: time.Now(),
		}
	})
}
