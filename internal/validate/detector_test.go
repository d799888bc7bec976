package validate

import (
	"reflect"
	"testing"

	"github.com/shopspring/decimal"

	"price-anomaly-repair/internal/config"
	"price-anomaly-repair/internal/model"
)

func testConfig() config.ValidationConfig {
	return config.ValidationConfig{
		Ranges: map[string]config.RangeConfig{
			"H100":      {Floor: 0.5, Ceiling: 5.0},
			"llm_token": {Floor: 0.1, Ceiling: 20.0},
		},
		Pairs: []config.PairConfig{
			{First: model.FieldInputPrice, Second: model.FieldOutputPrice},
		},
		HighMultiplier: 5.0,
	}
}

func gpuRecord(provider, region string, price float64) model.Record {
	return model.Record{
		Provider: provider,
		Item:     "H100",
		Region:   region,
		Category: "gpu_rental",
		Prices:   map[string]decimal.Decimal{model.FieldPrice: decimal.NewFromFloat(price)},
	}
}

func TestDetectEmptyBatch(t *testing.T) {
	report := NewDetector(testConfig()).Detect(nil)

	if report.Counts.Total != 0 {
		t.Fatalf("expected zero total, got %d", report.Counts.Total)
	}
	if report.OverallQuality != model.QualityUnknown {
		t.Fatalf("expected quality unknown, got %s", report.OverallQuality)
	}
	if len(report.Anomalies) != 0 {
		t.Fatalf("expected no anomalies, got %d", len(report.Anomalies))
	}
}

func TestDetectExtremeCeiling(t *testing.T) {
	records := []model.Record{
		gpuRecord("AWS", "", 2.79),
		gpuRecord("X", "", 27.78),
	}

	report := NewDetector(testConfig()).Detect(records)

	if len(report.Anomalies) != 1 {
		t.Fatalf("expected 1 anomaly, got %d: %+v", len(report.Anomalies), report.Anomalies)
	}
	a := report.Anomalies[0]
	if a.RecordIndex != 1 {
		t.Fatalf("anomaly should reference the second record, got index %d", a.RecordIndex)
	}
	if a.Issue != model.IssueAboveCeiling {
		t.Fatalf("expected above-ceiling issue, got %s", a.Issue)
	}
	if a.Severity != model.SeverityHigh {
		t.Fatalf("27.78 > 5x ceiling should be high severity, got %s", a.Severity)
	}
	if report.OverallQuality != model.QualityPoor {
		t.Fatalf("a high anomaly should roll up to poor, got %s", report.OverallQuality)
	}
}

func TestDetectModerateCeilingIsMedium(t *testing.T) {
	report := NewDetector(testConfig()).Detect([]model.Record{gpuRecord("AWS", "", 7.5)})

	if len(report.Anomalies) != 1 {
		t.Fatalf("expected 1 anomaly, got %d", len(report.Anomalies))
	}
	if report.Anomalies[0].Severity != model.SeverityMedium {
		t.Fatalf("7.5 is above ceiling but below 5x, expected medium, got %s", report.Anomalies[0].Severity)
	}
}

func TestDetectBelowFloor(t *testing.T) {
	report := NewDetector(testConfig()).Detect([]model.Record{gpuRecord("Cheap", "", 0.05)})

	if len(report.Anomalies) != 1 || report.Anomalies[0].Issue != model.IssueBelowFloor {
		t.Fatalf("expected below-floor anomaly, got %+v", report.Anomalies)
	}
	if report.Anomalies[0].Severity != model.SeverityMedium {
		t.Fatalf("below floor should be medium, got %s", report.Anomalies[0].Severity)
	}
}

func TestDetectNonPositivePriceIsHigh(t *testing.T) {
	for _, price := range []float64{0, -1.5} {
		report := NewDetector(testConfig()).Detect([]model.Record{gpuRecord("AWS", "", price)})

		if len(report.Anomalies) != 1 {
			t.Fatalf("price %v: expected 1 anomaly, got %d", price, len(report.Anomalies))
		}
		a := report.Anomalies[0]
		if a.Issue != model.IssueNonPositive || a.Severity != model.SeverityHigh {
			t.Fatalf("price %v: expected high non-positive anomaly, got %s/%s", price, a.Issue, a.Severity)
		}
	}
}

func TestDetectExactDuplicateIsLow(t *testing.T) {
	records := []model.Record{
		gpuRecord("AWS", "", 2.8),
		gpuRecord("AWS", "", 2.8),
	}

	report := NewDetector(testConfig()).Detect(records)

	if len(report.Anomalies) != 1 {
		t.Fatalf("two identical records should raise one anomaly, got %d", len(report.Anomalies))
	}
	a := report.Anomalies[0]
	if a.Issue != model.IssueRedundantEntry || a.Severity != model.SeverityLow {
		t.Fatalf("expected low redundant entry, got %s/%s", a.Issue, a.Severity)
	}
	if report.Counts.Duplicate != 1 {
		t.Fatalf("expected duplicate count 1, got %d", report.Counts.Duplicate)
	}
}

func TestDetectConflictingDuplicate(t *testing.T) {
	records := []model.Record{
		gpuRecord("AWS", "us-east", 2.8),
		gpuRecord("AWS", "us-east", 3.9),
	}

	report := NewDetector(testConfig()).Detect(records)

	if len(report.Anomalies) != 1 || report.Anomalies[0].Issue != model.IssueDuplicateConflict {
		t.Fatalf("expected duplicate-with-conflicting-price anomaly, got %+v", report.Anomalies)
	}
	if report.Anomalies[0].Severity != model.SeverityMedium {
		t.Fatalf("conflicting duplicate should be medium, got %s", report.Anomalies[0].Severity)
	}
}

func TestDetectIncompletePricing(t *testing.T) {
	records := []model.Record{
		{
			Provider: "Y",
			Item:     "GPT",
			Category: "llm_token",
			Prices:   map[string]decimal.Decimal{model.FieldInputPrice: decimal.NewFromFloat(2.0)},
		},
	}

	report := NewDetector(testConfig()).Detect(records)

	if len(report.Anomalies) != 1 {
		t.Fatalf("expected 1 anomaly, got %d: %+v", len(report.Anomalies), report.Anomalies)
	}
	a := report.Anomalies[0]
	if a.Issue != model.IssueIncompletePricing || a.Severity != model.SeverityMedium {
		t.Fatalf("expected medium incomplete pricing, got %s/%s", a.Issue, a.Severity)
	}
	if a.Field != model.FieldOutputPrice {
		t.Fatalf("anomaly should name the missing field, got %q", a.Field)
	}
}

func TestDetectUnverifiableCategory(t *testing.T) {
	records := []model.Record{
		{
			Provider: "NYSE",
			Item:     "ACME",
			Category: "equity",
			Prices:   map[string]decimal.Decimal{model.FieldPrice: decimal.NewFromFloat(123.45)},
		},
	}

	report := NewDetector(testConfig()).Detect(records)

	if len(report.Anomalies) != 1 {
		t.Fatalf("expected 1 anomaly, got %d", len(report.Anomalies))
	}
	a := report.Anomalies[0]
	if a.Issue != model.IssueUnverifiable || a.Severity != model.SeverityLow {
		t.Fatalf("missing range should yield low unverifiable, got %s/%s", a.Issue, a.Severity)
	}
}

func TestDetectMalformedCountedNotFlagged(t *testing.T) {
	records := []model.Record{
		{Item: "H100", Prices: map[string]decimal.Decimal{model.FieldPrice: decimal.NewFromFloat(2.8)}},
		gpuRecord("AWS", "", 2.8),
	}

	report := NewDetector(testConfig()).Detect(records)

	if report.Counts.Malformed != 1 {
		t.Fatalf("expected malformed count 1, got %d", report.Counts.Malformed)
	}
	if len(report.Anomalies) != 0 {
		t.Fatalf("malformed records must not produce anomalies, got %+v", report.Anomalies)
	}
	if report.Counts.Valid != 1 {
		t.Fatalf("expected valid count 1, got %d", report.Counts.Valid)
	}
}

func TestDetectOrderingAndIdempotence(t *testing.T) {
	records := []model.Record{
		gpuRecord("A", "", 0.05),  // medium, below floor
		gpuRecord("B", "", 27.78), // high
		gpuRecord("C", "", 2.8),
		gpuRecord("C", "", 2.8), // low, redundant
		gpuRecord("D", "", -1),  // high
	}

	detector := NewDetector(testConfig())
	first := detector.Detect(records)
	second := detector.Detect(records)

	if !reflect.DeepEqual(first, second) {
		t.Fatal("Detect must be idempotent over an untouched batch")
	}

	severities := make([]model.Severity, 0, len(first.Anomalies))
	for _, a := range first.Anomalies {
		severities = append(severities, a.Severity)
	}
	for i := 1; i < len(severities); i++ {
		if severities[i] > severities[i-1] {
			t.Fatalf("anomalies not ordered by descending severity: %v", severities)
		}
	}

	// Ties broken by input order: both high anomalies keep batch order.
	if first.Anomalies[0].RecordIndex != 1 || first.Anomalies[1].RecordIndex != 4 {
		t.Fatalf("stable tie-break violated: %+v", first.Anomalies[:2])
	}
}

func TestWithinRange(t *testing.T) {
	detector := NewDetector(testConfig())
	rec := gpuRecord("AWS", "", 2.8)

	if !detector.WithinRange(rec, decimal.NewFromFloat(3.0)) {
		t.Fatal("3.0 should be within the H100 range")
	}
	if detector.WithinRange(rec, decimal.NewFromFloat(9.9)) {
		t.Fatal("9.9 exceeds the H100 ceiling")
	}
	if detector.WithinRange(rec, decimal.Zero) {
		t.Fatal("zero is never acceptable")
	}

	unknown := model.Record{Provider: "NYSE", Item: "ACME", Prices: map[string]decimal.Decimal{}}
	if !unknown.Malformed() && !detector.WithinRange(unknown, decimal.NewFromFloat(1.0)) {
		t.Fatal("items without a range accept any positive value")
	}
}
