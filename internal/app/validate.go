package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"price-anomaly-repair/internal/model"
	"price-anomaly-repair/internal/source"
)

// Validate runs the detector over one feed and prints the report. No repair,
// no persistence.
func (a *App) Validate(ctx context.Context, opts ValidateOptions) error {
	records, err := a.loadFeed(ctx, opts.FeedPath)
	if err != nil {
		return err
	}

	report := a.newDetector().Detect(records)

	fmt.Fprintf(os.Stdout, "batch: %d records, quality %s\n", report.Counts.Total, report.OverallQuality)
	fmt.Fprintf(os.Stdout, "valid=%d suspicious=%d duplicate=%d malformed=%d\n",
		report.Counts.Valid, report.Counts.Suspicious, report.Counts.Duplicate, report.Counts.Malformed)

	if len(report.Anomalies) == 0 {
		fmt.Fprintln(os.Stdout, "no anomalies found")
		return nil
	}

	anomalies := report.Anomalies
	if opts.Limit > 0 && len(anomalies) > opts.Limit {
		anomalies = anomalies[:opts.Limit]
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Severity\tProvider\tItem\tRegion\tField\tIssue\tRecommendation")
	for _, anomaly := range anomalies {
		rec := records[anomaly.RecordIndex]
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			anomaly.Severity,
			rec.Provider,
			rec.Item,
			rec.Region,
			anomaly.Field,
			anomaly.Issue,
			sanitizeInline(anomaly.Recommendation),
		)
	}
	writer.Flush()

	if opts.Limit > 0 && len(report.Anomalies) > opts.Limit {
		fmt.Fprintf(os.Stdout, "... and %d more\n", len(report.Anomalies)-opts.Limit)
	}
	return nil
}

// loadFeed reads records from an explicit feed file, falling back to the
// configured source when no path is given.
func (a *App) loadFeed(ctx context.Context, feedPath string) ([]model.Record, error) {
	if feedPath == "" {
		return a.newSource().FetchRecords(ctx)
	}

	dir, file := splitFeedPath(feedPath)
	src := source.NewFile(source.FileOptions{Dir: dir, Glob: file}, a.Logger)
	return src.FetchRecords(ctx)
}

func splitFeedPath(path string) (dir, file string) {
	idx := strings.LastIndexByte(path, '/')
	if idx < 0 {
		return ".", path
	}
	return path[:idx], path[idx+1:]
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
