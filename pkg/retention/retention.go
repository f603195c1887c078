// Package retention runs the background sweeper: discussions every
// participant left are purged once they age past the configured
// period, and attachment files no message references anymore are
// removed from disk.
package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"

	"causerie/pkg/blob"
	"causerie/pkg/config"
	"causerie/pkg/logger"
	"causerie/pkg/models"
	"causerie/pkg/store"
)

var storedCfg *config.Config

// orphanGrace is the minimum age an unreferenced blob must reach
// before the sweep may remove it. A blob stored by an upload whose
// message record has not committed yet is unreferenced during the
// scan window; the grace keeps it until the next run.
var orphanGrace = 10 * time.Minute

// SetConfig stores the config so tests or admin triggers can invoke
// retention runs on demand.
func SetConfig(cfg *config.Config) {
	storedCfg = cfg
}

// RunImmediate triggers a single sweep using the stored config.
func RunImmediate() error {
	if storedCfg == nil {
		return fmt.Errorf("no config registered for retention run")
	}
	return runOnce(context.Background(), storedCfg)
}

// Start starts the scheduler if retention is enabled. Returns a cancel
// func.
func Start(ctx context.Context, cfg *config.Config) (context.CancelFunc, error) {
	if !cfg.Retention.Enabled {
		logger.Info("retention_disabled")
		return func() {}, nil
	}

	cronExpr := cfg.Retention.Cron
	if cronExpr == "" {
		cronExpr = "0 3 * * *"
	}
	if !gronx.IsValid(cronExpr) {
		logger.Error("retention_invalid_cron", "cron", cfg.Retention.Cron)
		return nil, fmt.Errorf("invalid retention cron expression: %s", cfg.Retention.Cron)
	}

	storedCfg = cfg
	logger.Info("retention_enabled", "cron", cronExpr, "period", cfg.Retention.Period)
	ctx2, cancel := context.WithCancel(ctx)
	go runScheduler(ctx2, cfg, cronExpr)
	return cancel, nil
}

// runScheduler computes the next tick with gronx and sleeps until then,
// so full cron syntax is supported.
func runScheduler(ctx context.Context, cfg *config.Config, cronExpr string) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("retention_scheduler_stopping")
			return
		default:
		}

		now := time.Now().UTC()
		next, err := gronx.NextTickAfter(cronExpr, now, false)
		if err != nil {
			logger.Error("retention_nexttick_failed", "cron", cronExpr, "error", err)
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		select {
		case <-time.After(time.Until(next)):
			if err := runOnce(ctx, cfg); err != nil {
				logger.Error("retention_run_error", "error", err)
			}
		case <-ctx.Done():
			logger.Info("retention_scheduler_stopping")
			return
		}
	}
}

// runOnce performs one sweep. Abandoned discussions are deleted along
// with their messages and attachments, then any blob no surviving
// message references is removed.
func runOnce(ctx context.Context, cfg *config.Config) error {
	period, err := time.ParseDuration(cfg.Retention.Period)
	if err != nil || period <= 0 {
		period = 30 * 24 * time.Hour
	}
	cutoff := time.Now().UTC().Add(-period).UnixNano()

	discussions, err := store.ScanDiscussions(func(models.Discussion) bool { return true })
	if err != nil {
		return fmt.Errorf("discussion scan failed: %w", err)
	}

	var purged int
	referenced := map[string]bool{}
	for _, d := range discussions {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if abandoned(d) && d.UpdatedTS < cutoff {
			removed, err := store.DeleteDiscussion(d.ID)
			if err != nil {
				logger.Error("retention_purge_failed", "discussion", d.ID, "error", err)
				continue
			}
			for _, m := range removed {
				if m.File != nil {
					_ = blob.Delete(m.File.Path)
				}
			}
			purged++
			continue
		}
		msgs, err := store.ListMessages(d.ID)
		if err != nil {
			logger.Error("retention_message_scan_failed", "discussion", d.ID, "error", err)
			continue
		}
		for _, m := range msgs {
			if m.File != nil {
				referenced[m.File.Path] = true
			}
		}
	}

	var orphans int
	paths, err := blob.ListPaths()
	if err != nil {
		logger.Error("retention_blob_scan_failed", "error", err)
	} else {
		for _, p := range paths {
			if referenced[p] {
				continue
			}
			if mt, err := blob.ModTime(p); err != nil || time.Since(mt) < orphanGrace {
				continue
			}
			if err := blob.Delete(p); err == nil {
				orphans++
			}
		}
	}

	logger.Info("retention_run_complete", "purged_discussions", purged, "orphan_blobs", orphans)
	return nil
}

// abandoned reports whether every participant has left the discussion.
func abandoned(d models.Discussion) bool {
	for _, p := range d.Participants {
		if !p.Removed {
			return false
		}
	}
	return len(d.Participants) > 0
}
