package sink

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"price-anomaly-repair/internal/model"
)

func TestWriteBatch(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(Options{Dir: dir, PrettyPrint: true}, zerolog.Nop())

	records := []model.Record{
		{
			Provider: "AWS",
			Item:     "H100",
			Category: "gpu_rental",
			Prices:   map[string]decimal.Decimal{model.FieldPrice: decimal.NewFromFloat(2.79)},
		},
	}
	report := model.ValidationReport{
		Counts:         model.ReportCounts{Total: 1, Valid: 1},
		OverallQuality: model.QualityGood,
	}
	bucket := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	if err := w.WriteBatch(bucket, records, report, model.FixSummary{Cleaned: 1}); err != nil {
		t.Fatalf("WriteBatch failed: %v", err)
	}

	var prices pricesDocument
	readJSON(t, filepath.Join(dir, "prices.json"), &prices)
	if len(prices.Records) != 1 || prices.Records[0].Provider != "AWS" {
		t.Fatalf("prices document mismatch: %+v", prices)
	}

	var doc reportDocument
	readJSON(t, filepath.Join(dir, "report.json"), &doc)
	if !doc.Bucket.Equal(bucket) {
		t.Fatalf("bucket mismatch: %s", doc.Bucket)
	}
	if doc.Report.OverallQuality != model.QualityGood || doc.Summary.Cleaned != 1 {
		t.Fatalf("report document mismatch: %+v", doc)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".tmp" {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
}

func TestWriteBatchRequiresDir(t *testing.T) {
	w := NewWriter(Options{}, zerolog.Nop())

	err := w.WriteBatch(time.Now(), nil, model.ValidationReport{}, model.FixSummary{})
	if err == nil {
		t.Fatal("expected error when sink dir is not configured")
	}
}

func readJSON(t *testing.T, path string, out any) {
	t.Helper()
	payload, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	if err := json.Unmarshal(payload, out); err != nil {
		t.Fatalf("parse %s: %v", path, err)
	}
}
