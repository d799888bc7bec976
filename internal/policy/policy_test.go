package policy

import (
	"testing"

	"price-anomaly-repair/internal/model"
)

func TestDecideTable(t *testing.T) {
	engine := NewEngine()

	cases := []struct {
		name    string
		anomaly model.Anomaly
		want    model.Disposition
	}{
		{"high above ceiling removes", model.Anomaly{Issue: model.IssueAboveCeiling, Severity: model.SeverityHigh}, model.DispositionRemove},
		{"high non-positive is repairable", model.Anomaly{Issue: model.IssueNonPositive, Severity: model.SeverityHigh}, model.DispositionFlagForReview},
		{"medium flags", model.Anomaly{Issue: model.IssueIncompletePricing, Severity: model.SeverityMedium}, model.DispositionFlagForReview},
		{"medium duplicate conflict flags", model.Anomaly{Issue: model.IssueDuplicateConflict, Severity: model.SeverityMedium}, model.DispositionFlagForReview},
		{"low redundant keeps", model.Anomaly{Issue: model.IssueRedundantEntry, Severity: model.SeverityLow}, model.DispositionKeep},
		{"low unverifiable keeps", model.Anomaly{Issue: model.IssueUnverifiable, Severity: model.SeverityLow}, model.DispositionKeep},
	}

	for _, tc := range cases {
		if got := engine.Decide(tc.anomaly); got != tc.want {
			t.Errorf("%s: expected %s, got %s", tc.name, tc.want, got)
		}
	}
}

func TestDecideIsDeterministic(t *testing.T) {
	engine := NewEngine()
	anomaly := model.Anomaly{Issue: model.IssueNonPositive, Severity: model.SeverityHigh}

	first := engine.Decide(anomaly)
	for i := 0; i < 10; i++ {
		if engine.Decide(anomaly) != first {
			t.Fatal("Decide must be a pure function")
		}
	}
}
