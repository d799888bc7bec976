package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"price-anomaly-repair/internal/model"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	upsertPriceRecordSQL = `INSERT INTO price_records (
        bucket_ts,
        provider,
        item,
        region,
        category,
        prices,
        metadata
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7
    )
    ON CONFLICT (bucket_ts, provider, item, region) DO UPDATE
    SET
        category = EXCLUDED.category,
        prices   = EXCLUDED.prices,
        metadata = EXCLUDED.metadata;`

	deletePriceRecordsForBucketSQL = `DELETE FROM price_records WHERE bucket_ts = $1;`

	insertValidationRunSQL = `INSERT INTO validation_runs (
        bucket_ts,
        total,
        valid,
        suspicious,
        duplicate,
        malformed,
        fixed,
        removed,
        manual_review,
        cleaned,
        overall_quality,
        anomalies
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
    )
    ON CONFLICT (bucket_ts) DO UPDATE
    SET total           = EXCLUDED.total,
        valid           = EXCLUDED.valid,
        suspicious      = EXCLUDED.suspicious,
        duplicate       = EXCLUDED.duplicate,
        malformed       = EXCLUDED.malformed,
        fixed           = EXCLUDED.fixed,
        removed         = EXCLUDED.removed,
        manual_review   = EXCLUDED.manual_review,
        cleaned         = EXCLUDED.cleaned,
        overall_quality = EXCLUDED.overall_quality,
        anomalies       = EXCLUDED.anomalies
    RETURNING id, created_at;`

	listRecentRunsSQL = `SELECT
        id,
        bucket_ts,
        total,
        valid,
        suspicious,
        duplicate,
        malformed,
        fixed,
        removed,
        manual_review,
        cleaned,
        overall_quality,
        anomalies,
        created_at
    FROM validation_runs
    ORDER BY bucket_ts DESC
    LIMIT $1;`

	listRunsBetweenSQL = `SELECT
        id,
        bucket_ts,
        total,
        valid,
        suspicious,
        duplicate,
        malformed,
        fixed,
        removed,
        manual_review,
        cleaned,
        overall_quality,
        anomalies,
        created_at
    FROM validation_runs
    WHERE bucket_ts >= $1
      AND bucket_ts < $2
    ORDER BY bucket_ts;`

	countRunsSQL = `SELECT COUNT(*) FROM validation_runs;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// RecordStore defines persistence of cleaned batches.
type RecordStore interface {
	ReplaceCleanedRecords(ctx context.Context, bucket time.Time, records []model.Record) error
}

// RunStore defines persistence of validation run reports.
type RunStore interface {
	UpsertValidationRun(ctx context.Context, run ValidationRun) (ValidationRun, error)
	ListRecentRuns(ctx context.Context, limit int) ([]ValidationRun, error)
	ListRunsBetween(ctx context.Context, from, to time.Time) ([]ValidationRun, error)
	CountRuns(ctx context.Context) (int64, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to cleaned records and validation runs.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := conn.Exec(ctxUnlock, advisoryUnlockSQL, key); err != nil {
			// unlock best effort; log omitted in storage package
		}
		conn.Release()
	}
	return unlock, true, nil
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// ReplaceCleanedRecords swaps the stored batch for a bucket in one transaction.
func (s *Store) ReplaceCleanedRecords(ctx context.Context, bucket time.Time, records []model.Record) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin replace batch: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, deletePriceRecordsForBucketSQL, bucket); err != nil {
		return fmt.Errorf("clear bucket records: %w", err)
	}

	for _, rec := range records {
		prices, err := json.Marshal(rec.Prices)
		if err != nil {
			return fmt.Errorf("marshal prices: %w", err)
		}
		var metadata []byte
		if rec.Metadata != nil {
			metadata, err = json.Marshal(rec.Metadata)
			if err != nil {
				return fmt.Errorf("marshal metadata: %w", err)
			}
		}

		if _, err := tx.Exec(ctx, upsertPriceRecordSQL,
			bucket,
			rec.Provider,
			rec.Item,
			rec.Region,
			rec.Category,
			prices,
			metadata,
		); err != nil {
			return fmt.Errorf("upsert price record: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit replace batch: %w", err)
	}
	return nil
}

// UpsertValidationRun persists or updates one validation run.
func (s *Store) UpsertValidationRun(ctx context.Context, run ValidationRun) (ValidationRun, error) {
	pool, err := s.getPool()
	if err != nil {
		return ValidationRun{}, err
	}

	anomalies := run.Anomalies
	if anomalies == nil {
		anomalies = json.RawMessage("[]")
	}

	row := pool.QueryRow(ctx, insertValidationRunSQL,
		run.Bucket,
		run.Total,
		run.Valid,
		run.Suspicious,
		run.Duplicate,
		run.Malformed,
		run.Fixed,
		run.Removed,
		run.ManualReview,
		run.Cleaned,
		run.OverallQuality,
		[]byte(anomalies),
	)

	stored := run
	if scanErr := row.Scan(&stored.ID, &stored.CreatedAt); scanErr != nil {
		return ValidationRun{}, fmt.Errorf("upsert validation run: %w", scanErr)
	}
	return stored, nil
}

// ListRecentRuns lists the most recent runs ordered by descending bucket.
func (s *Store) ListRecentRuns(ctx context.Context, limit int) ([]ValidationRun, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentRunsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent runs: %w", queryErr)
	}
	defer rows.Close()

	return collectRuns(rows, limit)
}

// ListRunsBetween lists runs within a time window.
func (s *Store) ListRunsBetween(ctx context.Context, from, to time.Time) ([]ValidationRun, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRunsBetweenSQL, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list runs between: %w", queryErr)
	}
	defer rows.Close()

	return collectRuns(rows, 0)
}

// CountRuns counts stored validation runs.
func (s *Store) CountRuns(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countRunsSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count runs: %w", scanErr)
	}
	return count, nil
}

func collectRuns(rows pgx.Rows, hint int) ([]ValidationRun, error) {
	if hint < 0 {
		hint = 0
	}
	runs := make([]ValidationRun, 0, hint)
	for rows.Next() {
		run, scanErr := scanValidationRun(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		runs = append(runs, run)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return runs, nil
}

func scanValidationRun(rows pgx.Rows) (ValidationRun, error) {
	var run ValidationRun
	var anomalies []byte

	if err := rows.Scan(
		&run.ID,
		&run.Bucket,
		&run.Total,
		&run.Valid,
		&run.Suspicious,
		&run.Duplicate,
		&run.Malformed,
		&run.Fixed,
		&run.Removed,
		&run.ManualReview,
		&run.Cleaned,
		&run.OverallQuality,
		&anomalies,
		&run.CreatedAt,
	); err != nil {
		return ValidationRun{}, err
	}

	run.Anomalies = json.RawMessage(anomalies)
	return run, nil
}
