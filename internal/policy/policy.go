package policy

import (
	"price-anomaly-repair/internal/model"
)

// Engine maps anomalies to dispositions via a fixed table. High severity
// removes the record unless the issue is repairable, in which case it is
// routed to the repair lookup; medium flags for review; low keeps.
type Engine struct {
	repairable map[model.Issue]bool
}

// NewEngine constructs the default disposition policy.
func NewEngine() *Engine {
	return &Engine{
		repairable: map[model.Issue]bool{
			// A zeroed or negative price usually means the scraper tripped over
			// page markup; a live source can supply the real value.
			model.IssueNonPositive: true,
		},
	}
}

// Decide returns the action for one anomaly. Pure function over the table.
func (e *Engine) Decide(a model.Anomaly) model.Disposition {
	switch a.Severity {
	case model.SeverityHigh:
		if e.repairable[a.Issue] {
			return model.DispositionFlagForReview
		}
		return model.DispositionRemove
	case model.SeverityMedium:
		return model.DispositionFlagForReview
	default:
		return model.DispositionKeep
	}
}
