package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"price-anomaly-repair/internal/service"
	"price-anomaly-repair/internal/storage"
)

// Process runs the full validate-and-repair pipeline once and persists the
// outcome unless --dry-run is set.
func (a *App) Process(ctx context.Context, opts ProcessOptions) error {
	records, err := a.loadFeed(ctx, opts.FeedPath)
	if err != nil {
		return err
	}

	var store *storage.Store
	if !opts.DryRun {
		var closeStore func()
		store, closeStore, err = a.openStore(ctx)
		if err != nil {
			return err
		}
		if closeStore != nil {
			defer closeStore()
		}
	} else {
		a.Logger.Warn().Msg("dry-run：不会写入数据库或仪表盘文件")
	}

	detector := a.newDetector()
	svc := service.New(a.Config, service.Dependencies{
		Detector:     detector,
		Orchestrator: a.newOrchestrator(detector, a.newLookup()),
	}, a.Logger)

	cleaned, report, summary, err := svc.RunPipeline(ctx, records)
	if err != nil {
		return err
	}

	bucket := time.Now().UTC().Truncate(a.Config.Scheduler.Interval)
	if !opts.DryRun {
		if store != nil {
			if err := store.ReplaceCleanedRecords(ctx, bucket, cleaned); err != nil {
				return fmt.Errorf("persist cleaned batch: %w", err)
			}
			run, buildErr := storage.NewValidationRun(bucket, report, summary)
			if buildErr != nil {
				return buildErr
			}
			if _, err := store.UpsertValidationRun(ctx, run); err != nil {
				return fmt.Errorf("persist validation run: %w", err)
			}
		}
		if s := a.newSink(); s != nil {
			if err := s.WriteBatch(bucket, cleaned, report, summary); err != nil {
				return err
			}
		}
	}

	fmt.Fprintf(os.Stdout, "quality: %s\n", report.OverallQuality)
	fmt.Fprintf(os.Stdout, "input: %d records (%d malformed)\n", report.Counts.Total, report.Counts.Malformed)
	fmt.Fprintf(os.Stdout, "fixed=%d removed=%d manual_review=%d cleaned=%d\n",
		summary.Fixed, summary.Removed, summary.ManualReview, summary.Cleaned)
	return nil
}
