package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rickgao/crypto-etl/internal/config"
	"github.com/rickgao/crypto-etl/internal/model"
)

// probeTimeout bounds the Postgres reachability check at startup.
const probeTimeout = 5 * time.Second

// Dialect-neutral queries shared by both backends.
const (
	countQuery = `SELECT COUNT(*) FROM crypto_market`

	latestSnapshotQuery = `
	SELECT entity_id, symbol, name, current_price, market_cap, total_volume,
	       price_change_pct, rank, volatility_score, extracted_at
	FROM crypto_market
	WHERE extracted_at = (SELECT MAX(extracted_at) FROM crypto_market)
	ORDER BY rank`
)

// Row is one query result row keyed by column name.
type Row map[string]any

// Tx executes statements inside one transaction.
type Tx interface {
	Exec(ctx context.Context, query string, args ...any) error
}

// Backend is the persistence contract shared by the Postgres and SQLite
// implementations. A record is keyed by (entity_id, extracted_at); upserting
// the same key is idempotent.
type Backend interface {
	// Name identifies the backend ("postgres" or "sqlite").
	Name() string

	// CreateSchema creates the table and indexes if missing. Idempotent.
	CreateSchema(ctx context.Context) error

	// UpsertBatch writes records in one transaction and returns the number
	// persisted. All-or-nothing: a failed statement rolls back the batch.
	UpsertBatch(ctx context.Context, records []model.TransformedRecord) (int64, error)

	// WithTx runs fn inside a transaction, committing on nil and rolling
	// back on error.
	WithTx(ctx context.Context, fn func(Tx) error) error

	// Query runs an arbitrary statement and returns rows as column-keyed maps.
	Query(ctx context.Context, query string, args ...any) ([]Row, error)

	// RowCount returns the total number of persisted records.
	RowCount(ctx context.Context) (int64, error)

	// LatestSnapshot returns the rows of the most recent extraction,
	// ordered by rank.
	LatestSnapshot(ctx context.Context) ([]Row, error)

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases the underlying connections.
	Close()
}

// Open selects the storage backend: Postgres when reachable, otherwise the
// embedded SQLite fallback. The choice is probed once and fixed for the
// process lifetime; the schema is created on the winner.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "storage")

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	pg, err := NewPostgres(probeCtx, cfg.Postgres)
	if err == nil {
		if err := pg.CreateSchema(ctx); err != nil {
			pg.Close()
			return nil, fmt.Errorf("create postgres schema: %w", err)
		}
		logger.Info("storage backend selected",
			"backend", pg.Name(),
			"host", cfg.Postgres.Host,
			"database", cfg.Postgres.Name)
		return pg, nil
	}

	logger.Warn("postgres unavailable, falling back to sqlite",
		"error", err,
		"path", cfg.SQLite.Path)

	lite, err := NewSQLite(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite fallback: %w", err)
	}
	if err := lite.CreateSchema(ctx); err != nil {
		lite.Close()
		return nil, fmt.Errorf("create sqlite schema: %w", err)
	}
	logger.Info("storage backend selected",
		"backend", lite.Name(),
		"path", cfg.SQLite.Path)
	return lite, nil
}
