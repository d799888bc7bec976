package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"
)

// Show prints recent validation runs.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show runs")
	}
	if closeStore != nil {
		defer closeStore()
	}

	runs, err := store.ListRecentRuns(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(os.Stdout, "no validation runs found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tQuality\tTotal\tValid\tSuspicious\tDuplicate\tMalformed\tFixed\tRemoved\tReview")

	for _, run := range runs {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\n",
			run.Bucket.UTC().Format(time.RFC3339),
			run.OverallQuality,
			run.Total,
			run.Valid,
			run.Suspicious,
			run.Duplicate,
			run.Malformed,
			run.Fixed,
			run.Removed,
			run.ManualReview,
		)
	}

	writer.Flush()
	return nil
}
