package store

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/glazecorp/glaze-engine/internal/model"
)

// Schema creates the glaze history table. Amounts are NUMERIC(78,0) so any
// uint256 wei value fits exactly.
const Schema = `
CREATE TABLE IF NOT EXISTS glazes (
	id          TEXT PRIMARY KEY,
	epoch_id    BIGINT NOT NULL UNIQUE,
	miner       TEXT NOT NULL,
	uri         TEXT NOT NULL DEFAULT '',
	init_price  NUMERIC(78,0) NOT NULL,
	start_time  BIGINT NOT NULL,
	recorded_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS glazes_miner_idx ON glazes (miner);
`

// uniqueViolation is the PostgreSQL SQLSTATE for a unique constraint.
const uniqueViolation = "23505"

// PostgresStore implements Store using PostgreSQL as the source of truth.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate applies Schema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("migrate glazes: %w", err)
	}
	return nil
}

func (s *PostgresStore) RecordGlaze(ctx context.Context, rec *model.GlazeRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO glazes (id, epoch_id, miner, uri, init_price, start_time, recorded_at)
		 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6, $7)`,
		rec.ID, int64(rec.EpochID), rec.Miner, rec.URI,
		numeric(rec.InitPrice), rec.StartTime, rec.RecordedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicate
	}
	return err
}

func (s *PostgresStore) GetGlaze(ctx context.Context, epochID uint64) (*model.GlazeRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, epoch_id, miner, uri, init_price::TEXT, start_time, recorded_at
		 FROM glazes WHERE epoch_id = $1`, int64(epochID))
	rec, err := scanGlaze(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get glaze %d: %w", epochID, err)
	}
	return rec, nil
}

func (s *PostgresStore) ListGlazes(ctx context.Context, limit int) ([]model.GlazeRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, epoch_id, miner, uri, init_price::TEXT, start_time, recorded_at
		 FROM glazes ORDER BY epoch_id DESC LIMIT $1`, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.GlazeRecord
	for rows.Next() {
		rec, err := scanGlaze(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func scanGlaze(row pgx.Row) (*model.GlazeRecord, error) {
	var rec model.GlazeRecord
	var epochID int64
	var initPrice string
	if err := row.Scan(&rec.ID, &epochID, &rec.Miner, &rec.URI, &initPrice, &rec.StartTime, &rec.RecordedAt); err != nil {
		return nil, err
	}
	rec.EpochID = uint64(epochID)
	v, ok := new(big.Int).SetString(initPrice, 10)
	if !ok {
		return nil, fmt.Errorf("glaze %d: bad init_price %q", epochID, initPrice)
	}
	rec.InitPrice = v
	return &rec, nil
}

func numeric(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
