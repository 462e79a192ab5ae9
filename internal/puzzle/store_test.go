package puzzle

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/charadle/charadle/internal/catalog"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	schema, err := os.ReadFile("../../sql/0001_init.sql")
	if err != nil {
		t.Fatalf("read schema: %v", err)
	}
	if _, err := db.Exec(string(schema)); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return db
}

func seedCharacters(t *testing.T, db *sql.DB, names ...string) {
	t.Helper()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, name := range names {
		created := base.Add(time.Duration(i) * time.Minute).Format(time.RFC3339Nano)
		if _, err := db.Exec(`INSERT INTO characters (id, name, created_at) VALUES (?,?,?)`,
			"id-"+name, name, created); err != nil {
			t.Fatalf("seed %s: %v", name, err)
		}
	}
}

func TestResolveDeterministic(t *testing.T) {
	db := newTestDB(t)
	seedCharacters(t, db, "alpha", "beta", "gamma")
	store := NewStore(db, catalog.NewStore(db))
	ctx := context.Background()

	first, err := store.Resolve(ctx, "2024-01-05")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	second, err := store.Resolve(ctx, "2024-01-05")
	if err != nil {
		t.Fatalf("resolve again: %v", err)
	}
	if first != second {
		t.Fatalf("resolution not stable: %s vs %s", first, second)
	}
	// Day 5, index 5 % 3 = 2, third character by creation order.
	if first != "id-gamma" {
		t.Fatalf("target = %s, want id-gamma", first)
	}
}

func TestResolveSurvivesCatalogGrowth(t *testing.T) {
	db := newTestDB(t)
	seedCharacters(t, db, "alpha", "beta")
	store := NewStore(db, catalog.NewStore(db))
	ctx := context.Background()

	assigned, err := store.Resolve(ctx, "2024-02-01")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	seedCharacters(t, db, "gamma", "delta", "epsilon")
	after, err := store.Resolve(ctx, "2024-02-01")
	if err != nil {
		t.Fatalf("resolve after growth: %v", err)
	}
	if after != assigned {
		t.Fatalf("existing assignment must be authoritative: %s vs %s", after, assigned)
	}
}

func TestResolveEmptyCatalog(t *testing.T) {
	db := newTestDB(t)
	store := NewStore(db, catalog.NewStore(db))

	_, err := store.Resolve(context.Background(), "2024-01-01")
	if _, ok := err.(*NotFoundError); !ok {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestResolveCharacterDeletedTarget(t *testing.T) {
	db := newTestDB(t)
	seedCharacters(t, db, "alpha")
	store := NewStore(db, catalog.NewStore(db))
	ctx := context.Background()

	if _, err := store.Resolve(ctx, "2024-01-01"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if _, err := db.Exec(`DELETE FROM characters WHERE id='id-alpha'`); err != nil {
		t.Fatalf("delete: %v", err)
	}

	_, err := store.ResolveCharacter(ctx, "2024-01-01")
	if _, ok := err.(*NotFoundError); !ok {
		t.Fatalf("expected NotFoundError for dangling target, got %v", err)
	}
}
