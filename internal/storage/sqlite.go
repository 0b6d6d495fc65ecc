package storage

import (
	"context"
	"database/sql"
	"fmt"

	// Registers the sqlite3 driver.
	_ "github.com/mattn/go-sqlite3"

	"github.com/rickgao/crypto-etl/internal/model"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS crypto_market (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		entity_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		name TEXT NOT NULL,
		current_price REAL NOT NULL,
		market_cap REAL NOT NULL,
		total_volume REAL NOT NULL,
		price_change_pct REAL NOT NULL,
		rank INTEGER NOT NULL,
		volatility_score REAL NOT NULL,
		extracted_at TIMESTAMP NOT NULL,
		UNIQUE (entity_id, extracted_at)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_crypto_market_entity ON crypto_market (entity_id)`,
	`CREATE INDEX IF NOT EXISTS idx_crypto_market_extracted ON crypto_market (extracted_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_crypto_market_entity_extracted ON crypto_market (entity_id, extracted_at DESC)`,
}

const sqliteUpsert = `
	INSERT INTO crypto_market
		(entity_id, symbol, name, current_price, market_cap, total_volume,
		 price_change_pct, rank, volatility_score, extracted_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (entity_id, extracted_at) DO UPDATE SET
		symbol = excluded.symbol,
		name = excluded.name,
		current_price = excluded.current_price,
		market_cap = excluded.market_cap,
		total_volume = excluded.total_volume,
		price_change_pct = excluded.price_change_pct,
		rank = excluded.rank,
		volatility_score = excluded.volatility_score
`

// SQLite is the embedded fallback backend, used when Postgres is unreachable.
type SQLite struct {
	db   *sql.DB
	path string
}

// NewSQLite opens the database file, creating it if needed, with WAL and
// synchronous=NORMAL.
func NewSQLite(path string) (*SQLite, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL", path)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite allows one writer at a time; a single pooled connection keeps
	// the pipeline and the ops server from tripping SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLite{db: db, path: path}, nil
}

// Name identifies the backend.
func (s *SQLite) Name() string { return "sqlite" }

// CreateSchema creates the table and indexes if missing.
func (s *SQLite) CreateSchema(ctx context.Context) error {
	for _, stmt := range sqliteSchema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

// UpsertBatch writes records in one transaction. Timestamps are stored in
// UTC so the (entity_id, extracted_at) key stays stable across runs.
func (s *SQLite) UpsertBatch(ctx context.Context, records []model.TransformedRecord) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	err := s.WithTx(ctx, func(tx Tx) error {
		for _, r := range records {
			err := tx.Exec(ctx, sqliteUpsert,
				r.EntityID, r.Symbol, r.Name,
				r.CurrentPrice, r.MarketCap, r.TotalVolume, r.PriceChangePct,
				r.Rank, r.VolatilityScore, r.ExtractedAt.UTC())
			if err != nil {
				return fmt.Errorf("upsert %s: %w", r.EntityID, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return int64(len(records)), nil
}

// WithTx runs fn inside a transaction.
func (s *SQLite) WithTx(ctx context.Context, fn func(Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}

	if err := fn(&sqlTx{tx: tx}); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

type sqlTx struct {
	tx *sql.Tx
}

func (t *sqlTx) Exec(ctx context.Context, query string, args ...any) error {
	_, err := t.tx.ExecContext(ctx, query, args...)
	return err
}

// Query runs a statement and returns rows keyed by column name.
func (s *SQLite) Query(ctx context.Context, query string, args ...any) ([]Row, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	var out []Row
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}

		row := make(Row, len(cols))
		for i, col := range cols {
			// TEXT columns surface as []byte; keep them as strings so
			// JSON rendering does not base64 them.
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// RowCount returns the total number of persisted records.
func (s *SQLite) RowCount(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, countQuery).Scan(&n); err != nil {
		return 0, fmt.Errorf("count rows: %w", err)
	}
	return n, nil
}

// LatestSnapshot returns the rows of the most recent extraction.
func (s *SQLite) LatestSnapshot(ctx context.Context) ([]Row, error) {
	return s.Query(ctx, latestSnapshotQuery)
}

// Ping verifies the database handle is healthy.
func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database handle.
func (s *SQLite) Close() {
	s.db.Close()
}
