package validate

import (
	"sort"

	"github.com/shopspring/decimal"

	"price-anomaly-repair/internal/config"
	"price-anomaly-repair/internal/model"
)

// Detector scans record batches for implausible entries. It never mutates
// records; the range table is fixed at construction.
type Detector struct {
	ranges         map[string]model.PriceRange
	pairs          []config.PairConfig
	highMultiplier decimal.Decimal
}

// NewDetector builds a detector from validation configuration.
func NewDetector(cfg config.ValidationConfig) *Detector {
	ranges := make(map[string]model.PriceRange, len(cfg.Ranges))
	for category, rng := range cfg.Ranges {
		ranges[category] = model.PriceRange{
			Floor:   decimal.NewFromFloat(rng.Floor),
			Ceiling: decimal.NewFromFloat(rng.Ceiling),
		}
	}

	multiplier := decimal.NewFromFloat(cfg.HighMultiplier)
	if multiplier.LessThan(decimal.NewFromInt(1)) {
		multiplier = decimal.NewFromInt(5)
	}

	return &Detector{
		ranges:         ranges,
		pairs:          cfg.Pairs,
		highMultiplier: multiplier,
	}
}

// Detect scans one batch and produces an immutable validation report. The
// anomaly list is ordered by descending severity, ties broken by input order.
func (d *Detector) Detect(records []model.Record) model.ValidationReport {
	report := model.ValidationReport{
		Counts:         model.ReportCounts{Total: len(records)},
		OverallQuality: model.QualityUnknown,
	}
	if len(records) == 0 {
		report.Anomalies = []model.Anomaly{}
		return report
	}

	anomalies := make([]model.Anomaly, 0)
	firstSeen := make(map[string]int, len(records))
	flagged := make(map[int]model.Severity, len(records))
	duplicates := make(map[int]bool)

	note := func(a model.Anomaly) {
		anomalies = append(anomalies, a)
		if a.Severity > flagged[a.RecordIndex] {
			flagged[a.RecordIndex] = a.Severity
		}
	}

	for i, rec := range records {
		if rec.Malformed() {
			report.Counts.Malformed++
			continue
		}

		for _, a := range d.checkRanges(i, rec) {
			note(a)
		}
		for _, a := range d.checkPairs(i, rec) {
			note(a)
		}

		key := rec.Key()
		if prev, seen := firstSeen[key]; seen {
			duplicates[i] = true
			if model.SamePrices(records[prev], rec) {
				note(model.Anomaly{
					RecordIndex:    i,
					Issue:          model.IssueRedundantEntry,
					Severity:       model.SeverityLow,
					Recommendation: "drop duplicate entry",
				})
			} else {
				note(model.Anomaly{
					RecordIndex:    i,
					Issue:          model.IssueDuplicateConflict,
					Severity:       model.SeverityMedium,
					Recommendation: "reconcile conflicting prices for the same key",
				})
			}
		} else {
			firstSeen[key] = i
		}
	}

	sort.SliceStable(anomalies, func(a, b int) bool {
		return anomalies[a].Severity > anomalies[b].Severity
	})

	report.Anomalies = anomalies
	report.Counts.Duplicate = len(duplicates)
	for i, rec := range records {
		if rec.Malformed() {
			continue
		}
		severity, hasAnomaly := flagged[i]
		switch {
		case !hasAnomaly:
			report.Counts.Valid++
		case severity >= model.SeverityMedium:
			report.Counts.Suspicious++
		}
	}
	report.OverallQuality = rollupQuality(report.Counts, anomalies)

	return report
}

func (d *Detector) checkRanges(idx int, rec model.Record) []model.Anomaly {
	out := make([]model.Anomaly, 0, 2)

	rng, known := rec.RangeKey(d.ranges)

	fields := make([]string, 0, len(rec.Prices))
	for field := range rec.Prices {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	verifiable := false
	for _, field := range fields {
		value := rec.Prices[field]

		if value.Sign() <= 0 {
			out = append(out, model.Anomaly{
				RecordIndex:    idx,
				Field:          field,
				Issue:          model.IssueNonPositive,
				Severity:       model.SeverityHigh,
				Recommendation: "re-fetch price from an authoritative source",
			})
			continue
		}
		if !known {
			continue
		}
		verifiable = true

		switch {
		case value.GreaterThan(rng.Ceiling.Mul(d.highMultiplier)):
			out = append(out, model.Anomaly{
				RecordIndex:    idx,
				Field:          field,
				Issue:          model.IssueAboveCeiling,
				Severity:       model.SeverityHigh,
				Recommendation: "remove unless confirmed by the provider",
			})
		case value.GreaterThan(rng.Ceiling):
			out = append(out, model.Anomaly{
				RecordIndex:    idx,
				Field:          field,
				Issue:          model.IssueAboveCeiling,
				Severity:       model.SeverityMedium,
				Recommendation: "verify against the provider pricing page",
			})
		case value.LessThan(rng.Floor):
			out = append(out, model.Anomaly{
				RecordIndex:    idx,
				Field:          field,
				Issue:          model.IssueBelowFloor,
				Severity:       model.SeverityMedium,
				Recommendation: "possible but suspicious; verify manually",
			})
		}
	}

	if !known && !verifiable && len(fields) > 0 && len(out) == 0 {
		out = append(out, model.Anomaly{
			RecordIndex:    idx,
			Issue:          model.IssueUnverifiable,
			Severity:       model.SeverityLow,
			Recommendation: "no plausible range configured for this item",
		})
	}

	return out
}

func (d *Detector) checkPairs(idx int, rec model.Record) []model.Anomaly {
	out := make([]model.Anomaly, 0, 1)
	for _, pair := range d.pairs {
		_, hasFirst := rec.Prices[pair.First]
		_, hasSecond := rec.Prices[pair.Second]
		if hasFirst == hasSecond {
			continue
		}
		missing := pair.First
		if hasFirst {
			missing = pair.Second
		}
		out = append(out, model.Anomaly{
			RecordIndex:    idx,
			Field:          missing,
			Issue:          model.IssueIncompletePricing,
			Severity:       model.SeverityMedium,
			Recommendation: "fetch the missing half of the price pair",
		})
	}
	return out
}

// WithinRange re-applies the range check to a candidate corrected value.
// Items with no configured range accept any positive value.
func (d *Detector) WithinRange(rec model.Record, value decimal.Decimal) bool {
	if value.Sign() <= 0 {
		return false
	}
	rng, known := rec.RangeKey(d.ranges)
	if !known {
		return true
	}
	return !value.LessThan(rng.Floor) && !value.GreaterThan(rng.Ceiling)
}

func rollupQuality(counts model.ReportCounts, anomalies []model.Anomaly) string {
	if counts.Total == 0 {
		return model.QualityUnknown
	}
	worst := model.Severity(0)
	for _, a := range anomalies {
		if a.Severity > worst {
			worst = a.Severity
		}
	}
	switch {
	case worst >= model.SeverityHigh:
		return model.QualityPoor
	case worst >= model.SeverityMedium:
		return model.QualityFair
	default:
		return model.QualityGood
	}
}
