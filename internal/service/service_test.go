package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"price-anomaly-repair/internal/alerting"
	"price-anomaly-repair/internal/config"
	"price-anomaly-repair/internal/model"
	"price-anomaly-repair/internal/policy"
	"price-anomaly-repair/internal/repair"
	"price-anomaly-repair/internal/validate"
)

type fakeSource struct {
	records []model.Record
}

func (f *fakeSource) FetchRecords(ctx context.Context) ([]model.Record, error) {
	return f.records, nil
}

type recordingNotifier struct {
	notes []alerting.Notification
}

func (r *recordingNotifier) Notify(ctx context.Context, note alerting.Notification) error {
	r.notes = append(r.notes, note)
	return nil
}

func testBatch() []model.Record {
	return []model.Record{
		{
			Provider: "AWS",
			Item:     "H100",
			Category: "gpu_rental",
			Prices:   map[string]decimal.Decimal{model.FieldPrice: decimal.NewFromFloat(2.79)},
		},
		{
			Provider: "X",
			Item:     "H100",
			Category: "gpu_rental",
			Prices:   map[string]decimal.Decimal{model.FieldPrice: decimal.NewFromFloat(27.78)},
		},
	}
}

func newTestService(t *testing.T, src *fakeSource, notifier alerting.Notifier, alertCfg config.AlertingConfig) *Service {
	t.Helper()

	detector := validate.NewDetector(config.ValidationConfig{
		Ranges:         map[string]config.RangeConfig{"H100": {Floor: 0.5, Ceiling: 5.0}},
		HighMultiplier: 5.0,
	})
	orchestrator := repair.NewOrchestrator(policy.NewEngine(), nil, detector, repair.Options{}, zerolog.Nop())

	cfg := &config.Config{}
	cfg.Alerting = alertCfg

	return New(cfg, Dependencies{
		Records:      src,
		Detector:     detector,
		Orchestrator: orchestrator,
		Notifier:     notifier,
	}, zerolog.Nop())
}

func TestRunPipeline(t *testing.T) {
	svc := newTestService(t, nil, nil, config.AlertingConfig{})

	cleaned, report, summary, err := svc.RunPipeline(context.Background(), testBatch())
	if err != nil {
		t.Fatalf("RunPipeline failed: %v", err)
	}

	if report.OverallQuality != model.QualityPoor {
		t.Fatalf("expected poor quality, got %s", report.OverallQuality)
	}
	if summary.Removed != 1 || len(cleaned) != 1 {
		t.Fatalf("extreme record should be removed: %+v, %d cleaned", summary, len(cleaned))
	}
}

func TestProcessBucketDispatchesAlert(t *testing.T) {
	notifier := &recordingNotifier{}
	svc := newTestService(t, &fakeSource{records: testBatch()}, notifier, config.AlertingConfig{
		Enabled:       true,
		NotifyQuality: model.QualityPoor,
		Channels:      []string{"telegram"},
	})

	bucket := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	if err := svc.ProcessBucket(context.Background(), bucket); err != nil {
		t.Fatalf("ProcessBucket failed: %v", err)
	}

	if len(notifier.notes) != 1 {
		t.Fatalf("expected one alert, got %d", len(notifier.notes))
	}
	note := notifier.notes[0]
	if note.Quality != model.QualityPoor || !note.Bucket.Equal(bucket) {
		t.Fatalf("alert payload mismatch: %+v", note)
	}
}

func TestProcessBucketRemovedThresholdAlert(t *testing.T) {
	notifier := &recordingNotifier{}
	svc := newTestService(t, &fakeSource{records: testBatch()}, notifier, config.AlertingConfig{
		Enabled:          true,
		NotifyQuality:    model.QualityUnknown,
		RemovedThreshold: 1,
	})

	if err := svc.ProcessBucket(context.Background(), time.Now().UTC()); err != nil {
		t.Fatalf("ProcessBucket failed: %v", err)
	}
	if len(notifier.notes) != 1 {
		t.Fatalf("removed threshold should trigger an alert, got %d", len(notifier.notes))
	}
}

func TestProcessBucketAlertsDisabled(t *testing.T) {
	notifier := &recordingNotifier{}
	svc := newTestService(t, &fakeSource{records: testBatch()}, notifier, config.AlertingConfig{
		Enabled:       false,
		NotifyQuality: model.QualityPoor,
	})

	if err := svc.ProcessBucket(context.Background(), time.Now().UTC()); err != nil {
		t.Fatalf("ProcessBucket failed: %v", err)
	}
	if len(notifier.notes) != 0 {
		t.Fatalf("alerts disabled, got %d notifications", len(notifier.notes))
	}
}
