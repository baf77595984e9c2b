package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq"
)

// PostgresStore is the durable alternative to the single-file Store for
// operators who want crash recovery backed by a real database rather than
// a local JSON file (spec §4.9 "optional Postgres-backed mode"). It
// persists the whole Snapshot as one row, keyed by routerId, matching the
// file store's single-blob shape rather than normalizing into per-entity
// tables — the snapshot is only ever read back whole, at startup.
type PostgresStore struct {
	db       *sql.DB
	routerID string
}

// OpenPostgresStore connects and ensures the snapshots table exists.
func OpenPostgresStore(ctx context.Context, dsn, routerID string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	const ddl = `
		CREATE TABLE IF NOT EXISTS router_snapshots (
			router_id    TEXT PRIMARY KEY,
			snapshot     JSONB NOT NULL,
			updated_at_ms BIGINT NOT NULL
		)
	`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		db.Close()
		return nil, fmt.Errorf("create snapshots table: %w", err)
	}
	return &PostgresStore{db: db, routerID: routerID}, nil
}

func (p *PostgresStore) Close() error {
	return p.db.Close()
}

// Save upserts the current snapshot for this router.
func (p *PostgresStore) Save(ctx context.Context, snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	const query = `
		INSERT INTO router_snapshots (router_id, snapshot, updated_at_ms)
		VALUES ($1, $2, $3)
		ON CONFLICT (router_id) DO UPDATE SET snapshot = $2, updated_at_ms = $3
	`
	if _, err := p.db.ExecContext(ctx, query, p.routerID, data, snap.TimestampMs); err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}
	return nil
}

// Load returns the most recently saved snapshot for this router, if any.
func (p *PostgresStore) Load(ctx context.Context) (Snapshot, bool, error) {
	const query = `SELECT snapshot FROM router_snapshots WHERE router_id = $1`
	var data []byte
	err := p.db.QueryRowContext(ctx, query, p.routerID).Scan(&data)
	if err == sql.ErrNoRows {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("query snapshot: %w", err)
	}
	snap, err := Unmarshal(data)
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, true, nil
}
