package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"price-anomaly-repair/internal/model"
	"price-anomaly-repair/internal/repair"
	"price-anomaly-repair/internal/service"
	"price-anomaly-repair/internal/source"
)

// SimulateAnomaly 构造一批含异常的合成记录并驱动完整管线，用于验证告警链路。
// The repair lookup is replaced with a static source so no network is needed.
func (a *App) SimulateAnomaly(ctx context.Context, price float64) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting 未启用")
	}

	notifier := a.newNotifier()
	if notifier == nil {
		return errors.New("未配置任何告警通道")
	}

	bad := decimal.NewFromFloat(price)
	records := []model.Record{
		{Provider: "SimCloud", Item: "H100", Region: "us-east", Category: "gpu_rental",
			Prices: map[string]decimal.Decimal{model.FieldPrice: decimal.NewFromFloat(2.49)}},
		{Provider: "SimCloud", Item: "H100", Region: "eu-west", Category: "gpu_rental",
			Prices: map[string]decimal.Decimal{model.FieldPrice: bad}},
		{Provider: "SimAI", Item: "sim-large", Category: "llm_token",
			Prices: map[string]decimal.Decimal{model.FieldInputPrice: decimal.NewFromFloat(2.0)}},
	}

	detector := a.newDetector()
	deps := service.Dependencies{
		Records:      staticSource(records),
		Detector:     detector,
		Orchestrator: a.newOrchestrator(detector, staticLookup{}),
		Notifier:     notifier,
	}

	svc := service.New(a.Config, deps, a.Logger)

	bucket := time.Now().UTC().Truncate(a.Config.Scheduler.Interval)
	if err := svc.ProcessBucket(ctx, bucket); err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, "simulation complete; check the alert channel")
	return nil
}

// staticSource serves a fixed in-memory batch.
type staticSource []model.Record

func (s staticSource) FetchRecords(ctx context.Context) ([]model.Record, error) {
	return s, nil
}

// staticLookup answers every repair attempt with a plausible value.
type staticLookup struct{}

func (staticLookup) LookupPrices(ctx context.Context, rec model.Record, issue model.Issue) (map[string]decimal.Decimal, error) {
	if issue == model.IssueIncompletePricing {
		return map[string]decimal.Decimal{model.FieldOutputPrice: decimal.NewFromFloat(8.0)}, nil
	}
	return nil, repair.ErrNotFound
}

var _ source.RecordSource = (staticSource)(nil)
var _ repair.Lookup = staticLookup{}
