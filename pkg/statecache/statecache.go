// Copyright 2025 Lattice Relay
//
// State cache: the optional last-observed-height-per-source store (spec.md
// §6, "Optional: a last-observed height per source may be cached to skip
// re-scanning"). Grounded on the teacher's pkg/database/client.go for
// connection-pool setup over lib/pq, and repository_anchor.go for the
// upsert-by-primary-key query shape, scaled down to this cache's single
// table.

package statecache

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq"
)

// Store caches the last source height a relay direction has fully scanned,
// keyed by (source chain name, destination chain name).
type Store struct {
	db     *sql.DB
	logger *log.Logger
}

// Open connects to postgresURL and ensures the backing table exists.
func Open(ctx context.Context, postgresURL string) (*Store, error) {
	if postgresURL == "" {
		return nil, fmt.Errorf("statecache: postgres url is empty")
	}
	db, err := sql.Open("postgres", postgresURL)
	if err != nil {
		return nil, fmt.Errorf("statecache: open: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("statecache: ping: %w", err)
	}

	s := &Store{db: db, logger: log.New(log.Writer(), "[StateCache] ", log.LstdFlags)}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS relay_scan_positions (
	source_chain      TEXT NOT NULL,
	destination_chain TEXT NOT NULL,
	revision_number   BIGINT NOT NULL,
	revision_height   BIGINT NOT NULL,
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (source_chain, destination_chain)
);`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("statecache: migrate: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error { return s.db.Close() }

// LastScanned returns the cached scan position for a (source, destination)
// pair, and false if none is recorded yet.
func (s *Store) LastScanned(ctx context.Context, source, destination string) (revisionNumber, revisionHeight uint64, ok bool, err error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT revision_number, revision_height FROM relay_scan_positions WHERE source_chain = $1 AND destination_chain = $2`,
		source, destination)
	var rn, rh int64
	switch err := row.Scan(&rn, &rh); err {
	case nil:
		return uint64(rn), uint64(rh), true, nil
	case sql.ErrNoRows:
		return 0, 0, false, nil
	default:
		return 0, 0, false, fmt.Errorf("statecache: query: %w", err)
	}
}

// RecordScanned upserts the scan position for a (source, destination) pair.
func (s *Store) RecordScanned(ctx context.Context, source, destination string, revisionNumber, revisionHeight uint64) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO relay_scan_positions (source_chain, destination_chain, revision_number, revision_height, updated_at)
VALUES ($1, $2, $3, $4, now())
ON CONFLICT (source_chain, destination_chain)
DO UPDATE SET revision_number = EXCLUDED.revision_number, revision_height = EXCLUDED.revision_height, updated_at = now()`,
		source, destination, int64(revisionNumber), int64(revisionHeight))
	if err != nil {
		return fmt.Errorf("statecache: upsert: %w", err)
	}
	return nil
}
