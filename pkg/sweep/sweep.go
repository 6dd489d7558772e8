// Package sweep schedules the background expiry sweep that trims
// expired entries from a partition's unexpired-items index.
package sweep

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"

	"github.com/lnaie/sfAuction/pkg/logger"
)

// Runner is the partition operation the scheduler drives.
type Runner interface {
	SweepExpired(ctx context.Context) (int, error)
}

// DefaultCron runs the sweep every five minutes.
const DefaultCron = "*/5 * * * *"

// Start starts the sweep scheduler if enabled and returns a cancel
// func. The cron expression is validated up front; empty maps to
// DefaultCron.
func Start(ctx context.Context, enabled bool, cronExpr string, r Runner) (context.CancelFunc, error) {
	if !enabled {
		logger.Info("sweep_disabled")
		return func() {}, nil
	}
	if cronExpr == "" {
		cronExpr = DefaultCron
	}
	if !gronx.IsValid(cronExpr) {
		return nil, fmt.Errorf("invalid sweep cron expression: %s", cronExpr)
	}

	ctx2, cancel := context.WithCancel(ctx)
	go runScheduler(ctx2, cronExpr, r)
	logger.Info("sweep_scheduler_started", "cron", cronExpr)
	return cancel, nil
}

// runScheduler computes the next cron tick and sleeps until it, running
// one sweep per tick.
func runScheduler(ctx context.Context, cronExpr string, r Runner) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("sweep_scheduler_stopping")
			return
		default:
		}

		now := time.Now().UTC()
		next, err := gronx.NextTickAfter(cronExpr, now, false)
		if err != nil {
			logger.Error("sweep_nexttick_failed", "cron", cronExpr, "error", err)
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		select {
		case <-time.After(time.Until(next)):
		case <-ctx.Done():
			logger.Info("sweep_scheduler_stopping")
			return
		}

		if removed, err := r.SweepExpired(ctx); err != nil {
			logger.Error("sweep_run_failed", "error", err)
		} else {
			logger.Debug("sweep_run_done", "removed", removed)
		}
	}
}
