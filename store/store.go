// Package store defines the snapshot persistence contract for room
// documents and hosts its backends (postgres, sqlite, redis).
//
// Snapshots are opaque bytes: encoding and decoding belong to the document
// layer, and a backend never inspects what it stores. Persistence is
// best-effort by design — a room whose snapshot fails to save stays
// authoritative in memory and retries on the next tick.
package store

import "context"

// Snapshots is the adapter every backend implements. Save is an idempotent
// upsert keyed by room id; last write wins. Load returns (nil, nil) for a
// room that was never saved — a missing row is a valid empty state.
type Snapshots interface {
	// Init prepares backend schema or connectivity. Called once at startup.
	Init(ctx context.Context) error
	// Load fetches the most recent snapshot for a room, or (nil, nil).
	Load(ctx context.Context, roomID string) ([]byte, error)
	// Save upserts the snapshot for a room.
	Save(ctx context.Context, roomID string, snapshot []byte) error
	// Name identifies the backend ("postgres", "sqlite", "redis").
	Name() string
	Close() error
}
