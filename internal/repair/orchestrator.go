package repair

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"price-anomaly-repair/internal/model"
)

// Options tune orchestrator behaviour.
type Options struct {
	LookupTimeout time.Duration
	Concurrency   int
}

// Orchestrator applies dispositions to a validated batch and drives the
// external repair lookup for flagged records. Lookup failures degrade to
// manual review; they never abort the batch.
type Orchestrator struct {
	policy  Decider
	lookup  Lookup
	checker RangeChecker
	opts    Options
	logger  zerolog.Logger
}

// NewOrchestrator wires the disposition policy, the repair lookup (may be
// nil, flagged records then go straight to manual review), and the range
// checker used to vet corrected values.
func NewOrchestrator(policy Decider, lookup Lookup, checker RangeChecker, opts Options, logger zerolog.Logger) *Orchestrator {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Orchestrator{
		policy:  policy,
		lookup:  lookup,
		checker: checker,
		opts:    opts,
		logger:  logger.With().Str("component", "repair_orchestrator").Logger(),
	}
}

type lookupTask struct {
	recordIndex int
	anomaly     model.Anomaly
}

type lookupResult struct {
	prices map[string]decimal.Decimal
	err    error
}

// Repair produces the cleaned batch and a fix summary. The governing anomaly
// per record is the first one in the severity-ordered anomaly list; records
// without anomalies pass through untouched. Output is deterministic: cleaned
// records keep input order and lookup results are merged by record index.
func (o *Orchestrator) Repair(ctx context.Context, records []model.Record, anomalies []model.Anomaly) ([]model.Record, model.FixSummary, error) {
	var summary model.FixSummary

	governing := make(map[int]model.Anomaly, len(anomalies))
	for _, a := range anomalies {
		if a.RecordIndex < 0 || a.RecordIndex >= len(records) {
			return nil, model.FixSummary{}, fmt.Errorf("anomaly references record %d outside batch of %d", a.RecordIndex, len(records))
		}
		if _, ok := governing[a.RecordIndex]; !ok {
			governing[a.RecordIndex] = a
		}
	}

	dispositions := make(map[int]model.Disposition, len(governing))
	tasks := make([]lookupTask, 0, len(governing))
	for i := range records {
		a, ok := governing[i]
		if !ok {
			continue
		}
		d := o.policy.Decide(a)
		dispositions[i] = d
		if d == model.DispositionFlagForReview {
			tasks = append(tasks, lookupTask{recordIndex: i, anomaly: a})
		}
	}

	results := o.runLookups(ctx, records, tasks)

	cleaned := make([]model.Record, 0, len(records))
	resultByRecord := make(map[int]lookupResult, len(tasks))
	for ti, task := range tasks {
		resultByRecord[task.recordIndex] = results[ti]
	}

	for i, rec := range records {
		if rec.Malformed() {
			summary.Malformed++
			continue
		}

		switch dispositions[i] {
		case model.DispositionRemove:
			summary.Removed++
			o.logger.Debug().Str("provider", rec.Provider).Str("item", rec.Item).
				Str("issue", string(governing[i].Issue)).Msg("record removed")

		case model.DispositionFlagForReview:
			res := resultByRecord[i]
			fixed, ok := o.applyCorrection(rec, res)
			if ok {
				cleaned = append(cleaned, fixed)
				summary.Fixed++
			} else {
				cleaned = append(cleaned, rec)
				summary.ManualReview++
			}

		default:
			cleaned = append(cleaned, rec)
		}
	}

	summary.Cleaned = len(cleaned)
	return cleaned, summary, nil
}

// runLookups issues at most one lookup per flagged record, optionally in
// parallel. Results land in a slice indexed by task so completion order never
// influences the outcome.
func (o *Orchestrator) runLookups(ctx context.Context, records []model.Record, tasks []lookupTask) []lookupResult {
	results := make([]lookupResult, len(tasks))
	if len(tasks) == 0 {
		return results
	}
	if o.lookup == nil {
		for i := range results {
			results[i] = lookupResult{err: ErrNotFound}
		}
		return results
	}

	sem := make(chan struct{}, o.opts.Concurrency)
	var wg sync.WaitGroup
	for ti := range tasks {
		wg.Add(1)
		go func(ti int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			task := tasks[ti]
			lookupCtx := ctx
			if o.opts.LookupTimeout > 0 {
				var cancel context.CancelFunc
				lookupCtx, cancel = context.WithTimeout(ctx, o.opts.LookupTimeout)
				defer cancel()
			}

			prices, err := o.lookup.LookupPrices(lookupCtx, records[task.recordIndex], task.anomaly.Issue)
			results[ti] = lookupResult{prices: prices, err: err}
		}(ti)
	}
	wg.Wait()

	for ti, res := range results {
		if res.err != nil && !errors.Is(res.err, ErrNotFound) {
			task := tasks[ti]
			o.logger.Warn().Err(res.err).
				Str("provider", records[task.recordIndex].Provider).
				Str("item", records[task.recordIndex].Item).
				Msg("repair lookup failed; record queued for manual review")
		}
	}

	return results
}

// applyCorrection merges looked-up prices into a copy of the record. Every
// returned value must pass the range check or the whole correction is
// discarded and the record falls through to manual review.
func (o *Orchestrator) applyCorrection(rec model.Record, res lookupResult) (model.Record, bool) {
	if res.err != nil || len(res.prices) == 0 {
		return model.Record{}, false
	}
	for _, value := range res.prices {
		if o.checker != nil && !o.checker.WithinRange(rec, value) {
			return model.Record{}, false
		}
	}

	fixed := rec.Clone()
	if fixed.Prices == nil {
		fixed.Prices = make(map[string]decimal.Decimal, len(res.prices))
	}
	for field, value := range res.prices {
		fixed.Prices[field] = value
	}
	return fixed, true
}
