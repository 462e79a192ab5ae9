package puzzle

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/charadle/charadle/internal/catalog"
)

// Store persists date→character assignments. Assignments are created lazily,
// exactly once per date, and never mutated.
type Store struct {
	db      *sql.DB
	catalog *catalog.Store
}

func NewStore(db *sql.DB, cat *catalog.Store) *Store {
	return &Store{db: db, catalog: cat}
}

// Resolve returns the target character id for a date key, creating the
// assignment on first call. An existing assignment is authoritative even if
// the catalog has changed since.
//
// INSERT OR IGNORE keeps concurrent first callers consistent: both compute
// the same deterministic id, and whichever insert lands first wins while the
// other reads it back.
func (s *Store) Resolve(ctx context.Context, dateKey string) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT character_id FROM daily_puzzles WHERE date=?`, dateKey).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return "", fmt.Errorf("query daily puzzle: %w", err)
	}

	date, err := ParseDate(dateKey)
	if err != nil {
		return "", err
	}
	roster, err := s.catalog.Characters(ctx, false)
	if err != nil {
		return "", err
	}
	if len(roster) == 0 {
		return "", &NotFoundError{Date: dateKey, Reason: "empty catalog"}
	}
	id = roster[IndexForDate(date, len(roster))].ID

	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO daily_puzzles (date, character_id, created_at) VALUES (?,?,?)`,
		dateKey, id, now); err != nil {
		return "", fmt.Errorf("insert daily puzzle: %w", err)
	}

	// Read back in case a concurrent caller inserted first.
	if err := s.db.QueryRowContext(ctx, `SELECT character_id FROM daily_puzzles WHERE date=?`, dateKey).Scan(&id); err != nil {
		return "", fmt.Errorf("reread daily puzzle: %w", err)
	}
	return id, nil
}

// ResolveCharacter resolves the date's assignment and loads the full target
// record, surfacing a NotFoundError when the assigned id no longer resolves.
func (s *Store) ResolveCharacter(ctx context.Context, dateKey string) (*catalog.Character, error) {
	id, err := s.Resolve(ctx, dateKey)
	if err != nil {
		return nil, err
	}
	c, err := s.catalog.Character(ctx, id)
	if err == catalog.ErrNotFound {
		return nil, &NotFoundError{Date: dateKey, Reason: "target character deleted"}
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}
