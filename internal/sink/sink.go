package sink

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"price-anomaly-repair/internal/model"
)

// Options locate the dashboard output files.
type Options struct {
	Dir         string
	PricesFile  string
	ReportFile  string
	PrettyPrint bool
}

// Writer publishes the cleaned batch and run report as JSON files consumed by
// the dashboard frontend. Writes go through a temp file plus rename so readers
// never observe a half-written file.
type Writer struct {
	opts   Options
	logger zerolog.Logger
}

// NewWriter constructs the dashboard sink.
func NewWriter(opts Options, logger zerolog.Logger) *Writer {
	if opts.PricesFile == "" {
		opts.PricesFile = "prices.json"
	}
	if opts.ReportFile == "" {
		opts.ReportFile = "report.json"
	}
	return &Writer{opts: opts, logger: logger.With().Str("component", "sink").Logger()}
}

type pricesDocument struct {
	GeneratedAt time.Time      `json:"generated_at"`
	Records     []model.Record `json:"records"`
}

type reportDocument struct {
	GeneratedAt time.Time              `json:"generated_at"`
	Bucket      time.Time              `json:"bucket"`
	Report      model.ValidationReport `json:"report"`
	Summary     model.FixSummary       `json:"summary"`
}

// WriteBatch publishes both dashboard files for one run.
func (w *Writer) WriteBatch(bucket time.Time, records []model.Record, report model.ValidationReport, summary model.FixSummary) error {
	if w.opts.Dir == "" {
		return fmt.Errorf("sink.dir not configured")
	}
	if err := os.MkdirAll(w.opts.Dir, 0o755); err != nil {
		return fmt.Errorf("create sink dir: %w", err)
	}

	now := time.Now().UTC()

	prices := pricesDocument{GeneratedAt: now, Records: records}
	if err := w.writeJSON(filepath.Join(w.opts.Dir, w.opts.PricesFile), prices); err != nil {
		return err
	}

	doc := reportDocument{GeneratedAt: now, Bucket: bucket, Report: report, Summary: summary}
	if err := w.writeJSON(filepath.Join(w.opts.Dir, w.opts.ReportFile), doc); err != nil {
		return err
	}

	w.logger.Info().Int("records", len(records)).Str("quality", report.OverallQuality).
		Msg("dashboard files written")
	return nil
}

func (w *Writer) writeJSON(path string, value any) error {
	var payload []byte
	var err error
	if w.opts.PrettyPrint {
		payload, err = json.MarshalIndent(value, "", "  ")
	} else {
		payload, err = json.Marshal(value)
	}
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
