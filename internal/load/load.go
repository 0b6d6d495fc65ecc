package load

import (
	"context"
	"log/slog"
	"time"

	"github.com/rickgao/crypto-etl/internal/model"
	"github.com/rickgao/crypto-etl/internal/storage"
)

// defaultBatchSize caps rows per transaction when the config leaves it unset.
const defaultBatchSize = 50

// Loader partitions transformed records into batches and upserts each batch
// in its own transaction.
type Loader struct {
	backend   storage.Backend
	batchSize int
	logger    *slog.Logger
}

// NewLoader creates a Loader writing through the given backend.
func NewLoader(backend storage.Backend, batchSize int, logger *slog.Logger) *Loader {
	if batchSize < 1 {
		batchSize = defaultBatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Loader{
		backend:   backend,
		batchSize: batchSize,
		logger:    logger.With("component", "loader"),
	}
}

// Load persists records batch by batch and reports what happened. A failed
// batch marks its rows failed and moves on; the error surfaces in the
// summary counts and the log, never as a returned error.
func (l *Loader) Load(ctx context.Context, records []model.TransformedRecord) model.LoadSummary {
	start := time.Now()
	summary := model.LoadSummary{Total: len(records)}

	for offset := 0; offset < len(records); offset += l.batchSize {
		end := min(offset+l.batchSize, len(records))
		chunk := records[offset:end]

		n, err := l.backend.UpsertBatch(ctx, chunk)
		if err != nil {
			summary.Failed += len(chunk)
			l.logger.Error("batch upsert failed",
				"offset", offset,
				"size", len(chunk),
				"error", err)
			continue
		}
		summary.Upserted += int(n)
	}

	summary.Elapsed = time.Since(start)
	l.logger.Info("load finished",
		"backend", l.backend.Name(),
		"total", summary.Total,
		"upserted", summary.Upserted,
		"failed", summary.Failed,
		"elapsed", summary.Elapsed)
	return summary
}
