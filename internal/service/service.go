package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"price-anomaly-repair/internal/alerting"
	"price-anomaly-repair/internal/config"
	"price-anomaly-repair/internal/model"
	"price-anomaly-repair/internal/repair"
	"price-anomaly-repair/internal/scheduler"
	"price-anomaly-repair/internal/sink"
	"price-anomaly-repair/internal/source"
	"price-anomaly-repair/internal/storage"
	"price-anomaly-repair/internal/validate"
)

// Service orchestrates one validate-and-repair pipeline per bucket: source
// fetch, anomaly detection, disposition/repair, persistence, alerting.
type Service struct {
	scheduler    *scheduler.Scheduler
	records      source.RecordSource
	detector     *validate.Detector
	orchestrator *repair.Orchestrator
	recordStore  storage.RecordStore
	runStore     storage.RunStore
	sink         *sink.Writer
	notifier     alerting.Notifier
	logger       zerolog.Logger

	alertsOn         bool
	notifyQuality    string
	removedThreshold int
	channels         []string
	locker           storage.AdvisoryLocker
	lockKey          int64
}

// Dependencies carry the collaborators wired by the app layer. Store, sink,
// and notifier are optional; the pipeline itself always runs.
type Dependencies struct {
	Scheduler    *scheduler.Scheduler
	Records      source.RecordSource
	Detector     *validate.Detector
	Orchestrator *repair.Orchestrator
	RecordStore  storage.RecordStore
	RunStore     storage.RunStore
	Sink         *sink.Writer
	Notifier     alerting.Notifier
}

// New constructs the pipeline service.
func New(cfg *config.Config, deps Dependencies, logger zerolog.Logger) *Service {
	var locker storage.AdvisoryLocker
	if l, ok := deps.RecordStore.(storage.AdvisoryLocker); ok {
		locker = l
	}

	return &Service{
		scheduler:        deps.Scheduler,
		records:          deps.Records,
		detector:         deps.Detector,
		orchestrator:     deps.Orchestrator,
		recordStore:      deps.RecordStore,
		runStore:         deps.RunStore,
		sink:             deps.Sink,
		notifier:         deps.Notifier,
		logger:           logger.With().Str("component", "service").Logger(),
		alertsOn:         cfg.Alerting.Enabled,
		notifyQuality:    cfg.Alerting.NotifyQuality,
		removedThreshold: cfg.Alerting.RemovedThreshold,
		channels:         cfg.Alerting.Channels,
		locker:           locker,
		lockKey:          cfg.Scheduler.AdvisoryLockKey,
	}
}

// Run begins the aligned validation loop.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.scheduler.Run(ctx, s.ProcessBucket)
}

// ProcessBucket 执行单个时间桶的校验与修复流程。
func (s *Service) ProcessBucket(ctx context.Context, bucket time.Time) error {
	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		s.logger.Debug().Time("bucket", bucket).Msg("skip bucket because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	return s.executeBucket(ctx, bucket)
}

func (s *Service) executeBucket(ctx context.Context, bucket time.Time) error {
	records, err := s.records.FetchRecords(ctx)
	if err != nil {
		return fmt.Errorf("fetch records: %w", err)
	}

	cleaned, report, summary, err := s.RunPipeline(ctx, records)
	if err != nil {
		return err
	}

	if s.recordStore != nil {
		if err := s.recordStore.ReplaceCleanedRecords(ctx, bucket, cleaned); err != nil {
			s.logger.Error().Err(err).Time("bucket", bucket).Msg("failed to persist cleaned batch")
		}
	}
	if s.runStore != nil {
		run, buildErr := storage.NewValidationRun(bucket, report, summary)
		if buildErr != nil {
			s.logger.Error().Err(buildErr).Time("bucket", bucket).Msg("failed to build validation run")
		} else if _, err := s.runStore.UpsertValidationRun(ctx, run); err != nil {
			s.logger.Error().Err(err).Time("bucket", bucket).Msg("failed to persist validation run")
		}
	}
	if s.sink != nil {
		if err := s.sink.WriteBatch(bucket, cleaned, report, summary); err != nil {
			s.logger.Error().Err(err).Time("bucket", bucket).Msg("failed to write dashboard files")
		}
	}

	s.logger.Info().Time("bucket", bucket).
		Str("quality", report.OverallQuality).
		Int("total", report.Counts.Total).
		Int("fixed", summary.Fixed).
		Int("removed", summary.Removed).
		Int("manual_review", summary.ManualReview).
		Msg("batch processed")

	s.maybeAlert(ctx, bucket, report, summary)
	return nil
}

// RunPipeline executes detect and repair over one in-memory batch. It never
// fails for data-quality reasons; the returned error covers contract
// violations only.
func (s *Service) RunPipeline(ctx context.Context, records []model.Record) ([]model.Record, model.ValidationReport, model.FixSummary, error) {
	report := s.detector.Detect(records)

	cleaned, summary, err := s.orchestrator.Repair(ctx, records, report.Anomalies)
	if err != nil {
		return nil, model.ValidationReport{}, model.FixSummary{}, fmt.Errorf("repair batch: %w", err)
	}
	return cleaned, report, summary, nil
}

func (s *Service) maybeAlert(ctx context.Context, bucket time.Time, report model.ValidationReport, summary model.FixSummary) {
	if !s.alertsOn || s.notifier == nil {
		return
	}

	trigger := report.OverallQuality == s.notifyQuality
	if !trigger && s.removedThreshold > 0 && summary.Removed >= s.removedThreshold {
		trigger = true
	}
	if !trigger {
		return
	}

	note := alerting.Notification{
		Bucket:   bucket,
		Quality:  report.OverallQuality,
		Counts:   report.Counts,
		Summary:  summary,
		Channels: s.channels,
	}
	if err := s.notifier.Notify(ctx, note); err != nil {
		s.logger.Error().Err(err).Time("bucket", bucket).Msg("failed to dispatch alert")
	}
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.lockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
