package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore persists escrow records in Postgres.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore connects and initializes the schema.
func NewPGStore(ctx context.Context, dsn string) (*PGStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s := &PGStore{pool: pool}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PGStore) initSchema(ctx context.Context) error {
	schema := `
CREATE TABLE IF NOT EXISTS escrow_records (
  escrow_address TEXT PRIMARY KEY,
  manifest_cid TEXT NOT NULL,
  results_cid TEXT,
  status TEXT NOT NULL,
  amount NUMERIC(78,0) NOT NULL DEFAULT 0,
  paid_total NUMERIC(78,0) NOT NULL DEFAULT 0,
  gas_payer TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_escrow_records_status ON escrow_records(status);
`
	_, err := s.pool.Exec(ctx, schema)
	return err
}

func (s *PGStore) Put(ctx context.Context, rec Record) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO escrow_records (escrow_address, manifest_cid, results_cid, status, amount, paid_total, gas_payer)
VALUES ($1, $2, NULLIF($3, ''), $4, $5::numeric, $6::numeric, $7)
ON CONFLICT (escrow_address) DO UPDATE SET
  manifest_cid = EXCLUDED.manifest_cid,
  results_cid = EXCLUDED.results_cid,
  status = EXCLUDED.status,
  amount = EXCLUDED.amount,
  paid_total = EXCLUDED.paid_total,
  updated_at = now()`,
		strings.ToLower(rec.EscrowAddress), rec.ManifestCID, rec.ResultsCID,
		rec.Status, zeroIfEmpty(rec.Amount), zeroIfEmpty(rec.PaidTotal), rec.GasPayer)
	if err != nil {
		return fmt.Errorf("put escrow record: %w", err)
	}
	return nil
}

func (s *PGStore) Get(ctx context.Context, escrowAddress string) (Record, error) {
	row := s.pool.QueryRow(ctx, `
SELECT escrow_address, manifest_cid, COALESCE(results_cid, ''), status, amount::text, paid_total::text, gas_payer, created_at, updated_at
FROM escrow_records WHERE escrow_address = $1`, strings.ToLower(escrowAddress))

	var rec Record
	err := row.Scan(&rec.EscrowAddress, &rec.ManifestCID, &rec.ResultsCID, &rec.Status,
		&rec.Amount, &rec.PaidTotal, &rec.GasPayer, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("get escrow record: %w", err)
	}
	return rec, nil
}

func (s *PGStore) List(ctx context.Context) ([]Record, error) {
	rows, err := s.pool.Query(ctx, `
SELECT escrow_address, manifest_cid, COALESCE(results_cid, ''), status, amount::text, paid_total::text, gas_payer, created_at, updated_at
FROM escrow_records ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list escrow records: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.EscrowAddress, &rec.ManifestCID, &rec.ResultsCID, &rec.Status,
			&rec.Amount, &rec.PaidTotal, &rec.GasPayer, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan escrow record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close releases the connection pool.
func (s *PGStore) Close() {
	s.pool.Close()
}

func zeroIfEmpty(v string) string {
	if v == "" {
		return "0"
	}
	return v
}
