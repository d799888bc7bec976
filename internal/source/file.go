package source

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog"

	"price-anomaly-repair/internal/model"
)

// FileOptions parameterise the feed-file source.
type FileOptions struct {
	Dir  string
	Glob string
}

// File reads scraper output from JSON feed files in a directory. Each file
// holds either a bare array of records or an object with a "records" key.
type File struct {
	opts   FileOptions
	logger zerolog.Logger
}

// NewFile constructs a feed-file source.
func NewFile(opts FileOptions, logger zerolog.Logger) *File {
	if opts.Glob == "" {
		opts.Glob = "*.json"
	}
	return &File{opts: opts, logger: logger.With().Str("component", "file_source").Logger()}
}

type feedEnvelope struct {
	Records []model.Record `json:"records"`
}

// FetchRecords loads every matching feed file. Files are visited in sorted
// path order so a batch is reproducible.
func (f *File) FetchRecords(ctx context.Context) ([]model.Record, error) {
	if f.opts.Dir == "" {
		return nil, fmt.Errorf("source.dir not configured")
	}

	pattern := filepath.Join(f.opts.Dir, f.opts.Glob)
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("glob feed files: %w", err)
	}
	sort.Strings(paths)

	records := make([]model.Record, 0)
	for _, path := range paths {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		batch, err := readFeedFile(path)
		if err != nil {
			return nil, fmt.Errorf("read feed %s: %w", path, err)
		}
		f.logger.Debug().Str("path", path).Int("records", len(batch)).Msg("feed file loaded")
		records = append(records, batch...)
	}

	return records, nil
}

func readFeedFile(path string) ([]model.Record, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var direct []model.Record
	if err := json.Unmarshal(payload, &direct); err == nil {
		return direct, nil
	}

	var envelope feedEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	return envelope.Records, nil
}

var _ RecordSource = (*File)(nil)
