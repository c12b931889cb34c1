// Package postgres implements store.Snapshots on PostgreSQL.
//
// The Store accepts an externally-owned *pgxpool.Pool via constructor
// injection. The caller creates and closes the pool.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nevindra/mural/store"
)

// Store implements store.Snapshots backed by a room_snapshots table.
type Store struct {
	pool *pgxpool.Pool
}

var _ store.Snapshots = (*Store)(nil)

// New creates a Store using an existing pgxpool.Pool.
// The caller owns the pool and is responsible for closing it.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Name() string { return "postgres" }

// Init creates the snapshot table if needed.
func (s *Store) Init(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS room_snapshots (
			room_id    TEXT PRIMARY KEY,
			snapshot   BYTEA NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("postgres: init schema: %w", err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context, roomID string) ([]byte, error) {
	var snapshot []byte
	err := s.pool.QueryRow(ctx,
		`SELECT snapshot FROM room_snapshots WHERE room_id = $1`, roomID,
	).Scan(&snapshot)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: load snapshot: %w", err)
	}
	return snapshot, nil
}

func (s *Store) Save(ctx context.Context, roomID string, snapshot []byte) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO room_snapshots (room_id, snapshot, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (room_id) DO UPDATE
		SET snapshot = EXCLUDED.snapshot, updated_at = now()`,
		roomID, snapshot)
	if err != nil {
		return fmt.Errorf("postgres: save snapshot: %w", err)
	}
	return nil
}

// Close is a no-op; the pool is owned by the caller.
func (s *Store) Close() error { return nil }
