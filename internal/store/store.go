// Package store keeps an optional audit log of analyses in PostgreSQL.
//
// One row is written per completed analysis. The full response is kept as
// JSONB so that later schema changes on the wire types need no migration.
//
// Usage:
//
//	s, err := store.New(ctx, dsn)
//	if err != nil { … }
//	defer s.Close()
//	_ = s.Record(ctx, store.Entry{Kind: "grammar", Original: o, Corrected: c, Payload: resp})
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MaxRecent caps [Store.Recent].
const MaxRecent = 500

// Entry is one audit row.
type Entry struct {
	ID          uuid.UUID       `json:"id"`
	CreatedAt   time.Time       `json:"createdAt"`
	Kind        string          `json:"kind"`
	Original    string          `json:"original"`
	Corrected   string          `json:"corrected"`
	ChangeCount int             `json:"changeCount"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

// NewEntry builds an Entry with a fresh ID, marshalling payload to JSON.
func NewEntry(kind, original, corrected string, changeCount int, payload any) (Entry, error) {
	e := Entry{
		ID:          uuid.New(),
		CreatedAt:   time.Now().UTC(),
		Kind:        kind,
		Original:    original,
		Corrected:   corrected,
		ChangeCount: changeCount,
	}
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return Entry{}, fmt.Errorf("store: marshal payload: %w", err)
		}
		e.Payload = b
	}
	return e, nil
}

// Store is the PostgreSQL-backed audit log. It is safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to dsn, verifies the connection and runs [Migrate].
func New(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("store: parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("store: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the connection pool.
func (s *Store) Close() { s.pool.Close() }

// Ping checks connectivity; used by the readiness check.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Record inserts e. A zero ID or CreatedAt is filled in.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	payload := "null"
	if len(e.Payload) > 0 {
		payload = string(e.Payload)
	}

	const q = `
		INSERT INTO analyses (id, created_at, kind, original, corrected, change_count, payload)
		VALUES ($1::uuid, $2, $3, $4, $5, $6, $7::jsonb)`

	if _, err := s.pool.Exec(ctx, q,
		e.ID.String(), e.CreatedAt, e.Kind, e.Original, e.Corrected, e.ChangeCount, payload,
	); err != nil {
		return fmt.Errorf("store: record: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first. limit is clamped to
// [1, MaxRecent].
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	limit = min(max(limit, 1), MaxRecent)

	const q = `
		SELECT id::text, created_at, kind, original, corrected, change_count, payload::text
		FROM   analyses
		ORDER  BY created_at DESC
		LIMIT  $1`

	rows, err := s.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("store: recent: %w", err)
	}
	entries, err := pgx.CollectRows(rows, scanEntry)
	if err != nil {
		return nil, fmt.Errorf("store: recent: %w", err)
	}
	return entries, nil
}

// Get returns the entry with the given id, or [ErrNotFound].
func (s *Store) Get(ctx context.Context, id uuid.UUID) (Entry, error) {
	const q = `
		SELECT id::text, created_at, kind, original, corrected, change_count, payload::text
		FROM   analyses
		WHERE  id = $1::uuid`

	rows, err := s.pool.Query(ctx, q, id.String())
	if err != nil {
		return Entry{}, fmt.Errorf("store: get: %w", err)
	}
	e, err := pgx.CollectExactlyOneRow(rows, scanEntry)
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("store: get: %w", err)
	}
	return e, nil
}

// ErrNotFound is returned by [Store.Get] for an unknown id.
var ErrNotFound = errors.New("store: entry not found")

func scanEntry(row pgx.CollectableRow) (Entry, error) {
	var (
		e       Entry
		id      string
		payload *string
	)
	if err := row.Scan(&id, &e.CreatedAt, &e.Kind, &e.Original, &e.Corrected, &e.ChangeCount, &payload); err != nil {
		return Entry{}, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return Entry{}, fmt.Errorf("parse id %q: %w", id, err)
	}
	e.ID = parsed
	if payload != nil && *payload != "null" {
		e.Payload = json.RawMessage(*payload)
	}
	return e, nil
}
