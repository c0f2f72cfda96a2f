package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"lendingScope/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS asset_prices (
	chain_id     BIGINT      NOT NULL,
	oracle       TEXT        NOT NULL,
	asset        TEXT        NOT NULL,
	as_of        TIMESTAMPTZ NOT NULL,
	price        NUMERIC,
	error        TEXT,
	block_number BIGINT,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (chain_id, oracle, asset, as_of)
);

CREATE TABLE IF NOT EXISTS deposits (
	id           TEXT PRIMARY KEY,
	chain_id     BIGINT      NOT NULL,
	action       TEXT        NOT NULL,
	owner        TEXT        NOT NULL,
	token        TEXT,
	pool         TEXT        NOT NULL,
	amount       NUMERIC     NOT NULL,
	state        TEXT        NOT NULL,
	failure_kind TEXT,
	reason       TEXT,
	approval_tx  TEXT,
	deposit_tx   TEXT,
	withdraw_tx  TEXT,
	started_at   TIMESTAMPTZ NOT NULL,
	finished_at  TIMESTAMPTZ NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

ALTER TABLE deposits ADD COLUMN IF NOT EXISTS withdraw_tx TEXT;
`

// Store provides Postgres persistence for price reads and deposit history.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Migrate creates the history tables when missing.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// PutPrices inserts or updates oracle reads.
func (s *Store) PutPrices(ctx context.Context, prices []model.PriceRecord) error {
	if len(prices) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, p := range prices {
		asOf, err := parseTime(p.AsOf)
		if err != nil {
			return fmt.Errorf("price %s: %w", p.Asset, err)
		}
		batch.Queue(`
			INSERT INTO asset_prices (chain_id, oracle, asset, as_of, price, error, block_number)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (chain_id, oracle, asset, as_of)
			DO UPDATE SET
				price = EXCLUDED.price,
				error = EXCLUDED.error,
				block_number = EXCLUDED.block_number
		`,
			int64(p.ChainID),
			p.Oracle,
			p.Asset,
			asOf,
			nullable(p.Price),
			nullable(p.Error),
			nullableBlock(p.BlockNumber),
		)
	}
	return s.sendBatch(ctx, batch)
}

// PutDeposits inserts or updates deposit and withdraw outcomes keyed by request ID.
func (s *Store) PutDeposits(ctx context.Context, deposits []model.DepositRecord) error {
	if len(deposits) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, d := range deposits {
		started, err := parseTime(d.StartedAt)
		if err != nil {
			return fmt.Errorf("deposit %s: %w", d.ID, err)
		}
		finished, err := parseTime(d.FinishedAt)
		if err != nil {
			return fmt.Errorf("deposit %s: %w", d.ID, err)
		}
		batch.Queue(`
			INSERT INTO deposits (
				id, chain_id, action, owner, token, pool, amount, state, failure_kind, reason,
				approval_tx, deposit_tx, withdraw_tx, started_at, finished_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,now())
			ON CONFLICT (id)
			DO UPDATE SET
				state = EXCLUDED.state,
				failure_kind = EXCLUDED.failure_kind,
				reason = EXCLUDED.reason,
				approval_tx = EXCLUDED.approval_tx,
				deposit_tx = EXCLUDED.deposit_tx,
				withdraw_tx = EXCLUDED.withdraw_tx,
				finished_at = EXCLUDED.finished_at,
				updated_at = now()
		`,
			d.ID,
			int64(d.ChainID),
			d.Action,
			d.Owner,
			nullable(d.Token),
			d.Pool,
			d.Amount,
			d.State,
			nullable(d.FailureKind),
			nullable(d.Reason),
			nullable(d.ApprovalTx),
			nullable(d.DepositTx),
			nullable(d.WithdrawTx),
			started,
			finished,
		)
	}
	return s.sendBatch(ctx, batch)
}

func (s *Store) sendBatch(ctx context.Context, batch *pgx.Batch) error {
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

func parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("timestamp is required")
	}
	ts, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", value, err)
	}
	return ts, nil
}

func nullable(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func nullableBlock(block uint64) *int64 {
	if block == 0 {
		return nil
	}
	v := int64(block)
	return &v
}
