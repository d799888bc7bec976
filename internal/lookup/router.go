package lookup

import (
	"context"

	"github.com/shopspring/decimal"

	"price-anomaly-repair/internal/model"
	"price-anomaly-repair/internal/repair"
)

// Router picks one lookup source per record: items with a configured
// aggregator go on-chain, everything else to the HTTP endpoint. Exactly one
// source is consulted per record, never both.
type Router struct {
	onchain *Onchain
	http    *HTTP
}

// NewRouter wires the router; either source may be nil.
func NewRouter(onchain *Onchain, http *HTTP) *Router {
	return &Router{onchain: onchain, http: http}
}

// LookupPrices implements repair.Lookup.
func (r *Router) LookupPrices(ctx context.Context, rec model.Record, issue model.Issue) (map[string]decimal.Decimal, error) {
	if r.onchain != nil {
		if _, ok := r.onchain.opts.Aggregators[rec.Item]; ok {
			return r.onchain.LookupPrices(ctx, rec, issue)
		}
	}
	if r.http != nil {
		return r.http.LookupPrices(ctx, rec, issue)
	}
	return nil, repair.ErrNotFound
}

var _ repair.Lookup = (*Router)(nil)
