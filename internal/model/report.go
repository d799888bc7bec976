package model

// Quality is the batch-level rollup derived from the anomaly distribution.
const (
	QualityUnknown = "unknown"
	QualityGood    = "good"
	QualityFair    = "fair"
	QualityPoor    = "poor"
)

// ReportCounts summarises one validation run.
type ReportCounts struct {
	Total      int `json:"total"`
	Valid      int `json:"valid"`
	Suspicious int `json:"suspicious"`
	Duplicate  int `json:"duplicate"`
	Malformed  int `json:"malformed"`
}

// ValidationReport is the immutable outcome of one detector scan. Anomalies
// are ordered by descending severity with input order breaking ties.
type ValidationReport struct {
	Counts         ReportCounts `json:"counts"`
	OverallQuality string       `json:"overall_quality"`
	Anomalies      []Anomaly    `json:"anomalies"`
}

// FixSummary is the outcome of one repair run over a validated batch.
type FixSummary struct {
	Fixed        int `json:"fixed"`
	Removed      int `json:"removed"`
	ManualReview int `json:"manual_review"`
	Malformed    int `json:"malformed"`
	Cleaned      int `json:"cleaned"`
}
