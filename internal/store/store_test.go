package store_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/scrivener/internal/store"
)

// testDSN returns the test database DSN from the environment, or skips the
// test if SCRIVENER_TEST_POSTGRES_DSN is not set.
func testDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("SCRIVENER_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("SCRIVENER_TEST_POSTGRES_DSN not set, skipping PostgreSQL integration tests")
	}
	return dsn
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	dsn := testDSN(t)
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	if _, err := pool.Exec(ctx, "DROP TABLE IF EXISTS analyses CASCADE"); err != nil {
		t.Fatalf("drop: %v", err)
	}
	pool.Close()

	s, err := store.New(ctx, dsn)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestNewEntry(t *testing.T) {
	t.Parallel()

	e, err := store.NewEntry("grammar", "an eror", "an error", 1, map[string]int{"n": 1})
	if err != nil {
		t.Fatalf("NewEntry: %v", err)
	}
	if e.ID == uuid.Nil {
		t.Error("ID not set")
	}
	if e.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}
	if string(e.Payload) != `{"n":1}` {
		t.Errorf("Payload = %s", e.Payload)
	}

	if _, err := store.NewEntry("grammar", "", "", 0, func() {}); err == nil {
		t.Error("expected error for unmarshalable payload")
	}
}

func TestStore_RecordAndRecent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Millisecond)
	for i, kind := range []string{"grammar", "insights", "both"} {
		e, err := store.NewEntry(kind, "text", "text", i, map[string]string{"kind": kind})
		if err != nil {
			t.Fatalf("NewEntry: %v", err)
		}
		e.CreatedAt = base.Add(time.Duration(i) * time.Second)
		if err := s.Record(ctx, e); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	got, err := s.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Recent returned %d entries, want 2", len(got))
	}
	if got[0].Kind != "both" || got[1].Kind != "insights" {
		t.Errorf("order = [%s %s], want [both insights]", got[0].Kind, got[1].Kind)
	}
	var payload map[string]string
	if err := json.Unmarshal(got[0].Payload, &payload); err != nil || payload["kind"] != "both" {
		t.Errorf("payload = %s (%v)", got[0].Payload, err)
	}

	one, err := s.Get(ctx, got[1].ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if one.ChangeCount != 1 {
		t.Errorf("ChangeCount = %d, want 1", one.ChangeCount)
	}
}

func TestStore_GetNotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Get(context.Background(), uuid.New()); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestStore_RecordNilPayload(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Record(ctx, store.Entry{Kind: "grammar", Original: "x"}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	got, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 1 || got[0].Payload != nil {
		t.Fatalf("Recent = %+v, want one entry without payload", got)
	}
}
