package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rickgao/crypto-etl/internal/config"
	"github.com/rickgao/crypto-etl/internal/model"
)

// pgSchema is executed statement by statement; pgx's extended protocol does
// not accept multi-statement strings.
var pgSchema = []string{
	`CREATE TABLE IF NOT EXISTS crypto_market (
		id BIGSERIAL PRIMARY KEY,
		entity_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		name TEXT NOT NULL,
		current_price DOUBLE PRECISION NOT NULL,
		market_cap DOUBLE PRECISION NOT NULL,
		total_volume DOUBLE PRECISION NOT NULL,
		price_change_pct DOUBLE PRECISION NOT NULL,
		rank INTEGER NOT NULL,
		volatility_score DOUBLE PRECISION NOT NULL,
		extracted_at TIMESTAMPTZ NOT NULL,
		UNIQUE (entity_id, extracted_at)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_crypto_market_entity ON crypto_market (entity_id)`,
	`CREATE INDEX IF NOT EXISTS idx_crypto_market_extracted ON crypto_market (extracted_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_crypto_market_entity_extracted ON crypto_market (entity_id, extracted_at DESC)`,
}

const pgUpsert = `
	INSERT INTO crypto_market
		(entity_id, symbol, name, current_price, market_cap, total_volume,
		 price_change_pct, rank, volatility_score, extracted_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (entity_id, extracted_at) DO UPDATE SET
		symbol = EXCLUDED.symbol,
		name = EXCLUDED.name,
		current_price = EXCLUDED.current_price,
		market_cap = EXCLUDED.market_cap,
		total_volume = EXCLUDED.total_volume,
		price_change_pct = EXCLUDED.price_change_pct,
		rank = EXCLUDED.rank,
		volatility_score = EXCLUDED.volatility_score
`

// Postgres is the primary storage backend, backed by a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a connection pool and verifies it with a ping.
func NewPostgres(ctx context.Context, cfg config.DBConfig) (*Postgres, error) {
	connStr := BuildConnString(cfg)

	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	if cfg.MinConns > 0 {
		poolCfg.MinConns = int32(cfg.MinConns)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Postgres{pool: pool}, nil
}

// Name identifies the backend.
func (p *Postgres) Name() string { return "postgres" }

// CreateSchema creates the table and indexes if missing.
func (p *Postgres) CreateSchema(ctx context.Context) error {
	for _, stmt := range pgSchema {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

// UpsertBatch writes records in one transaction via a pipelined batch.
func (p *Postgres) UpsertBatch(ctx context.Context, records []model.TransformedRecord) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(pgUpsert,
			r.EntityID, r.Symbol, r.Name,
			r.CurrentPrice, r.MarketCap, r.TotalVolume, r.PriceChangePct,
			r.Rank, r.VolatilityScore, r.ExtractedAt)
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	results := tx.SendBatch(ctx, batch)
	for range records {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return 0, fmt.Errorf("upsert batch: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return 0, fmt.Errorf("close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return int64(len(records)), nil
}

// WithTx runs fn inside a transaction.
func (p *Postgres) WithTx(ctx context.Context, fn func(Tx) error) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&pgxTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type pgxTx struct {
	tx pgx.Tx
}

func (t *pgxTx) Exec(ctx context.Context, query string, args ...any) error {
	_, err := t.tx.Exec(ctx, query, args...)
	return err
}

// Query runs a statement and returns rows keyed by column name.
func (p *Postgres) Query(ctx context.Context, query string, args ...any) ([]Row, error) {
	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	var out []Row
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		row := make(Row, len(fields))
		for i, fd := range fields {
			row[fd.Name] = values[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// RowCount returns the total number of persisted records.
func (p *Postgres) RowCount(ctx context.Context) (int64, error) {
	var n int64
	if err := p.pool.QueryRow(ctx, countQuery).Scan(&n); err != nil {
		return 0, fmt.Errorf("count rows: %w", err)
	}
	return n, nil
}

// LatestSnapshot returns the rows of the most recent extraction.
func (p *Postgres) LatestSnapshot(ctx context.Context) ([]Row, error) {
	return p.Query(ctx, latestSnapshotQuery)
}

// Ping verifies the pool is healthy.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close closes the connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}
