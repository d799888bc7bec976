package model

// Severity orders how serious a detected anomaly is.
type Severity int

const (
	SeverityLow Severity = iota + 1
	SeverityMedium
	SeverityHigh
)

// String renders the severity for reports and logs.
func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	default:
		return "unknown"
	}
}

// Issue is the categorical description of a detected defect.
type Issue string

const (
	IssueAboveCeiling      Issue = "price above known ceiling"
	IssueBelowFloor        Issue = "price below known floor"
	IssueNonPositive       Issue = "non-positive price"
	IssueIncompletePricing Issue = "incomplete pricing"
	IssueDuplicateConflict Issue = "duplicate with conflicting price"
	IssueRedundantEntry    Issue = "redundant entry"
	IssueUnverifiable      Issue = "unverifiable"
)

// Anomaly attaches one detected defect to a record. RecordIndex refers into
// the batch the anomaly was detected on; the record itself is never copied.
type Anomaly struct {
	RecordIndex    int      `json:"record_index"`
	Field          string   `json:"field,omitempty"`
	Issue          Issue    `json:"issue"`
	Severity       Severity `json:"severity"`
	Recommendation string   `json:"recommendation,omitempty"`
}

// Disposition is the action the policy assigns to an anomalous record.
type Disposition int

const (
	DispositionKeep Disposition = iota
	DispositionFlagForReview
	DispositionRemove
)

func (d Disposition) String() string {
	switch d {
	case DispositionKeep:
		return "keep"
	case DispositionFlagForReview:
		return "flag_for_review"
	case DispositionRemove:
		return "remove"
	default:
		return "unknown"
	}
}
