package source

import (
	"context"

	"price-anomaly-repair/internal/model"
)

// RecordSource yields raw candidate records for one validation run. No
// ordering guarantee is required from the source.
type RecordSource interface {
	FetchRecords(ctx context.Context) ([]model.Record, error)
}
