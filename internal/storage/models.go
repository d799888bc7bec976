package storage

import (
	"encoding/json"
	"time"

	"price-anomaly-repair/internal/model"
)

// ValidationRun is one persisted validate-and-repair pass over a batch.
type ValidationRun struct {
	ID             int64
	Bucket         time.Time
	Total          int
	Valid          int
	Suspicious     int
	Duplicate      int
	Malformed      int
	Fixed          int
	Removed        int
	ManualReview   int
	Cleaned        int
	OverallQuality string
	Anomalies      json.RawMessage
	CreatedAt      time.Time
}

// NewValidationRun flattens a report and fix summary into a storable run.
func NewValidationRun(bucket time.Time, report model.ValidationReport, summary model.FixSummary) (ValidationRun, error) {
	anomalies, err := json.Marshal(report.Anomalies)
	if err != nil {
		return ValidationRun{}, err
	}
	return ValidationRun{
		Bucket:         bucket,
		Total:          report.Counts.Total,
		Valid:          report.Counts.Valid,
		Suspicious:     report.Counts.Suspicious,
		Duplicate:      report.Counts.Duplicate,
		Malformed:      report.Counts.Malformed,
		Fixed:          summary.Fixed,
		Removed:        summary.Removed,
		ManualReview:   summary.ManualReview,
		Cleaned:        summary.Cleaned,
		OverallQuality: report.OverallQuality,
		Anomalies:      anomalies,
	}, nil
}
