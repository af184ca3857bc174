// Package jobs runs periodic maintenance in the background of the server.
package jobs

import (
	"context"
	"time"

	"github.com/iliyamo/gym-management/internal/config"
)

// Expirer moves memberships past their end date to expired.
type Expirer interface {
	ExpireDue(ctx context.Context) (int, error)
}

// Logger is the subset of the application logger the jobs use.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

const expiryTimeout = 30 * time.Second

// StartMembershipExpiryJob sweeps expired memberships every
// cfg.ExpiryInterval until ctx is done. It returns immediately; the sweep
// runs on its own goroutine.
func StartMembershipExpiryJob(ctx context.Context, cfg config.JobConfig, memberships Expirer, log Logger) {
	if !cfg.ExpiryEnabled {
		return
	}
	if memberships == nil {
		log.Errorf("membership expiry job disabled: no membership service")
		return
	}
	interval := cfg.ExpiryInterval
	if interval <= 0 {
		interval = time.Hour
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				RunMembershipExpiry(ctx, memberships, log)
			}
		}
	}()
}

// RunMembershipExpiry performs a single sweep and returns how many
// memberships expired.
func RunMembershipExpiry(ctx context.Context, memberships Expirer, log Logger) int {
	tickCtx, cancel := context.WithTimeout(ctx, expiryTimeout)
	defer cancel()
	n, err := memberships.ExpireDue(tickCtx)
	if err != nil {
		log.Errorf("membership expiry job error: %v", err)
		return 0
	}
	if n > 0 {
		log.Infof("membership expiry job expired %d memberships", n)
	}
	return n
}
