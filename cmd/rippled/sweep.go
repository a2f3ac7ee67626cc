package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/Priyanka-Singh27/Ripple-CIA/internal/models"
	"github.com/Priyanka-Singh27/Ripple-CIA/internal/review"
	"github.com/Priyanka-Singh27/Ripple-CIA/internal/storage"
)

var sweepInterval time.Duration

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Auto-confirm impacts past their deadline",
	Long: `Scans every change still in review and auto-confirms soft-mode
impacts whose acknowledgement window has expired. Safe to run
concurrently with the server; concurrent winners are skipped.`,
	RunE: runSweep,
}

func init() {
	sweepCmd.Flags().DurationVar(&sweepInterval, "interval", 0, "repeat the sweep at this interval (0 = run once)")
}

func runSweep(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	svc := review.NewService(store, review.NopSink{}, cfg.Review, slog.Default())

	if sweepInterval <= 0 {
		n, err := sweepOnce(ctx, store, svc)
		if err != nil {
			return err
		}
		logger.WithField("auto_confirmed", n).Info("sweep complete")
		return nil
	}

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := sweepOnce(ctx, store, svc)
			if err != nil {
				logger.WithError(err).Warn("sweep failed")
				continue
			}
			if n > 0 {
				logger.WithField("auto_confirmed", n).Info("sweep complete")
			}
		}
	}
}

// sweepOnce walks every in-review change across all projects.
func sweepOnce(ctx context.Context, store storage.Store, svc *review.Service) (int, error) {
	projects, err := store.ListProjects(ctx, "")
	if err != nil {
		return 0, err
	}
	total := 0
	for _, project := range projects {
		changes, err := store.ListChanges(ctx, project.ID)
		if err != nil {
			return total, err
		}
		for _, change := range changes {
			if change.Status != models.ChangeInReview {
				continue
			}
			n, err := svc.SweepAutoConfirm(ctx, change)
			if err != nil {
				return total, err
			}
			total += n
		}
	}
	return total, nil
}

// runSweepLoop is the in-process background sweep used by serve.
func runSweepLoop(ctx context.Context, store storage.Store, svc *review.Service) error {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := sweepOnce(ctx, store, svc); err != nil {
				logger.WithError(err).Debug("background sweep failed")
			}
		}
	}
}
