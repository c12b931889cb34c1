// Package sqlite implements store.Snapshots using pure-Go SQLite.
// Zero CGO required.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nevindra/mural/store"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// Store implements store.Snapshots backed by a local SQLite file.
type Store struct {
	db *sql.DB
}

var _ store.Snapshots = (*Store)(nil)

// New creates a Store using a local SQLite file at dbPath.
// It opens a single shared connection pool with SetMaxOpenConns(1) so that
// all goroutines serialize through one connection, eliminating SQLITE_BUSY
// errors caused by concurrent writers opening independent connections.
func New(dbPath string) *Store {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		// sql.Open only fails when the driver is not registered; with the
		// blank import above that never happens.
		panic(fmt.Sprintf("sqlite: open driver: %v", err))
	}
	db.SetMaxOpenConns(1)
	return &Store{db: db}
}

func (s *Store) Name() string { return "sqlite" }

// Init creates the snapshot table if needed.
func (s *Store) Init(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS room_snapshots (
			room_id    TEXT PRIMARY KEY,
			snapshot   BLOB NOT NULL,
			updated_at TEXT NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("sqlite: init schema: %w", err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context, roomID string) ([]byte, error) {
	var snapshot []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT snapshot FROM room_snapshots WHERE room_id = ?`, roomID,
	).Scan(&snapshot)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: load snapshot: %w", err)
	}
	return snapshot, nil
}

func (s *Store) Save(ctx context.Context, roomID string, snapshot []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO room_snapshots (room_id, snapshot, updated_at) VALUES (?, ?, ?)`,
		roomID, snapshot, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("sqlite: save snapshot: %w", err)
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }
