package repair

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"price-anomaly-repair/internal/model"
)

// ErrNotFound signals a lookup that completed normally without finding a
// corrected value. Implementations must return it (or wrap it) for ordinary
// not-found cases and reserve other errors for infrastructure failure.
var ErrNotFound = errors.New("repair: no corrected value found")

// Lookup attempts to fetch corrected price fields for one anomalous record
// from an authoritative source. At most one call is made per flagged record.
type Lookup interface {
	LookupPrices(ctx context.Context, rec model.Record, issue model.Issue) (map[string]decimal.Decimal, error)
}

// Decider assigns a disposition to one anomaly.
type Decider interface {
	Decide(a model.Anomaly) model.Disposition
}

// RangeChecker re-validates corrected values against the detector's table.
type RangeChecker interface {
	WithinRange(rec model.Record, value decimal.Decimal) bool
}

// LookupFunc adapts a plain function into a Lookup.
type LookupFunc func(ctx context.Context, rec model.Record, issue model.Issue) (map[string]decimal.Decimal, error)

// LookupPrices implements Lookup.
func (f LookupFunc) LookupPrices(ctx context.Context, rec model.Record, issue model.Issue) (map[string]decimal.Decimal, error) {
	return f(ctx, rec, issue)
}
