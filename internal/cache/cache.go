// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package cache stores adapter search results in SQLite so repeated
// sub-queries within the TTL window skip the network. Caching is off unless
// a cache path is configured; research state itself is never persisted.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/deep-research/internal/source"
	"github.com/pdiddy/deep-research/pkg/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS adapter_results (
	adapter    TEXT NOT NULL,
	query      TEXT NOT NULL,
	findings   TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	PRIMARY KEY (adapter, query)
);`

// Store is a SQLite-backed result cache keyed by (adapter, query).
type Store struct {
	db *sql.DB
}

// Open creates or opens the cache database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening cache db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating cache schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// Get returns cached findings for (adapter, query) if an entry exists and is
// younger than ttl.
func (s *Store) Get(adapter, query string, ttl time.Duration) ([]types.Finding, bool, error) {
	var raw string
	var createdAt int64
	err := s.db.QueryRow(
		`SELECT findings, created_at FROM adapter_results WHERE adapter = ? AND query = ?`,
		adapter, query,
	).Scan(&raw, &createdAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading cache: %w", err)
	}

	if time.Since(time.Unix(createdAt, 0)) > ttl {
		return nil, false, nil
	}

	var findings []types.Finding
	if err := json.Unmarshal([]byte(raw), &findings); err != nil {
		return nil, false, fmt.Errorf("decoding cached findings: %w", err)
	}
	return findings, true, nil
}

// Put stores findings for (adapter, query), replacing any prior entry.
func (s *Store) Put(adapter, query string, findings []types.Finding) error {
	raw, err := json.Marshal(findings)
	if err != nil {
		return fmt.Errorf("encoding findings: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO adapter_results (adapter, query, findings, created_at) VALUES (?, ?, ?, ?)`,
		adapter, query, string(raw), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("writing cache: %w", err)
	}
	return nil
}

// Prune deletes entries older than ttl.
func (s *Store) Prune(ttl time.Duration) error {
	cutoff := time.Now().Add(-ttl).Unix()
	if _, err := s.db.Exec(`DELETE FROM adapter_results WHERE created_at < ?`, cutoff); err != nil {
		return fmt.Errorf("pruning cache: %w", err)
	}
	return nil
}

// cachedAdapter decorates a source adapter with read-through caching.
type cachedAdapter struct {
	inner source.Adapter
	store *Store
	ttl   time.Duration
}

// Wrap returns an adapter that serves cached results when fresh and falls
// through to the wrapped adapter otherwise. Cache failures are invisible to
// the caller: a broken cache degrades to direct searches.
func Wrap(inner source.Adapter, store *Store, ttl time.Duration) source.Adapter {
	if store == nil || ttl <= 0 {
		return inner
	}
	return &cachedAdapter{inner: inner, store: store, ttl: ttl}
}

func (c *cachedAdapter) Name() string           { return c.inner.Name() }
func (c *cachedAdapter) Type() types.SourceType { return c.inner.Type() }

func (c *cachedAdapter) Search(ctx context.Context, query string, cfg types.SourceConfig) ([]types.Finding, error) {
	if findings, hit, err := c.store.Get(c.inner.Name(), query, c.ttl); err == nil && hit {
		return findings, nil
	}

	findings, err := c.inner.Search(ctx, query, cfg)
	if err != nil {
		return nil, err
	}
	// Best effort; a full disk or locked db must not fail the search.
	_ = c.store.Put(c.inner.Name(), query, findings)
	return findings, nil
}
