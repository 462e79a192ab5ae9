package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a character or lookup id does not exist.
var ErrNotFound = errors.New("not found")

// joinTables maps each multi-valued taxonomy to its join table and fk column.
var joinTables = map[Kind][2]string{
	KindClass:       {"character_classes", "class_id"},
	KindRace:        {"character_races", "race_id"},
	KindOccupation:  {"character_occupations", "occupation_id"},
	KindAssociation: {"character_associations", "association_id"},
	KindPlace:       {"character_places", "place_id"},
}

// Store provides SQLite-backed access to characters and lookups.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// Characters returns the full roster ordered by creation order (ascending by
// default, descending when desc is true), with all lookups inlined.
func (s *Store) Characters(ctx context.Context, desc bool) ([]Character, error) {
	dir := "ASC"
	if desc {
		dir = "DESC"
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.name, c.description, c.image_url, c.age,
		       COALESCE(st.id, ''), COALESCE(st.name, '')
		FROM characters c
		LEFT JOIN states st ON st.id = c.state_id
		ORDER BY c.created_at `+dir+`, c.id `+dir)
	if err != nil {
		return nil, fmt.Errorf("query characters: %w", err)
	}
	defer rows.Close()

	var out []Character
	index := map[string]int{}
	for rows.Next() {
		var c Character
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.ImageURL, &c.Age, &c.State.ID, &c.State.Name); err != nil {
			return nil, err
		}
		c.Classes = []Lookup{}
		c.Races = []Lookup{}
		c.Occupations = []Lookup{}
		c.Associations = []Lookup{}
		c.Places = []Lookup{}
		index[c.ID] = len(out)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for kind, jt := range joinTables {
		if err := s.attach(ctx, out, index, kind, jt[0], jt[1]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// attach inlines one multi-valued taxonomy into the roster slice.
func (s *Store) attach(ctx context.Context, roster []Character, index map[string]int, kind Kind, joinTable, fk string) error {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT j.character_id, l.id, l.name
		FROM %s j JOIN %s l ON l.id = j.%s
		ORDER BY l.name`, joinTable, kind, fk))
	if err != nil {
		return fmt.Errorf("query %s: %w", joinTable, err)
	}
	defer rows.Close()

	for rows.Next() {
		var charID string
		var l Lookup
		if err := rows.Scan(&charID, &l.ID, &l.Name); err != nil {
			return err
		}
		i, ok := index[charID]
		if !ok {
			continue
		}
		switch kind {
		case KindClass:
			roster[i].Classes = append(roster[i].Classes, l)
		case KindRace:
			roster[i].Races = append(roster[i].Races, l)
		case KindOccupation:
			roster[i].Occupations = append(roster[i].Occupations, l)
		case KindAssociation:
			roster[i].Associations = append(roster[i].Associations, l)
		case KindPlace:
			roster[i].Places = append(roster[i].Places, l)
		}
	}
	return rows.Err()
}

// Character loads a single roster entry with lookups inlined.
func (s *Store) Character(ctx context.Context, id string) (*Character, error) {
	roster, err := s.Characters(ctx, false)
	if err != nil {
		return nil, err
	}
	if c := FindByID(roster, id); c != nil {
		return c, nil
	}
	return nil, ErrNotFound
}

// Lookups returns all entries of one taxonomy ordered by name.
func (s *Store) Lookups(ctx context.Context, kind Kind) ([]Lookup, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT id, name FROM %s ORDER BY name`, kind))
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", kind, err)
	}
	defer rows.Close()

	out := []Lookup{}
	for rows.Next() {
		var l Lookup
		if err := rows.Scan(&l.ID, &l.Name); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// EnsureLookup returns the id of the named lookup entry, inserting it first
// when missing. Names are matched case-insensitively.
func (s *Store) EnsureLookup(ctx context.Context, kind Kind, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("empty lookup name")
	}
	var id string
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT id FROM %s WHERE name=?`, kind), name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return "", err
	}
	id = uuid.NewString()
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`INSERT INTO %s (id, name) VALUES (?,?)`, kind), id, name); err != nil {
		return "", fmt.Errorf("insert %s: %w", kind, err)
	}
	return id, nil
}

// CharacterInput carries the admin-facing shape for creating or updating a
// character: lookups are referenced by name and created on demand.
type CharacterInput struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	ImageURL     string   `json:"imageUrl"`
	Age          int      `json:"age"`
	State        string   `json:"state"`
	Classes      []string `json:"classes"`
	Races        []string `json:"races"`
	Occupations  []string `json:"occupations"`
	Associations []string `json:"associations"`
	Places       []string `json:"places"`
}

// CreateCharacter inserts a character and its attribute links. Returns the
// new id.
func (s *Store) CreateCharacter(ctx context.Context, in CharacterInput) (string, error) {
	id := uuid.NewString()
	if err := s.writeCharacter(ctx, id, in, false); err != nil {
		return "", err
	}
	return id, nil
}

// UpdateCharacter rewrites a character row and replaces its attribute links.
func (s *Store) UpdateCharacter(ctx context.Context, id string, in CharacterInput) error {
	return s.writeCharacter(ctx, id, in, true)
}

func (s *Store) writeCharacter(ctx context.Context, id string, in CharacterInput, update bool) error {
	if strings.TrimSpace(in.Name) == "" {
		return errors.New("character name required")
	}
	var stateID any
	if in.State != "" {
		sid, err := s.EnsureLookup(ctx, KindState, in.State)
		if err != nil {
			return err
		}
		stateID = sid
	}

	links := map[Kind][]string{
		KindClass:       in.Classes,
		KindRace:        in.Races,
		KindOccupation:  in.Occupations,
		KindAssociation: in.Associations,
		KindPlace:       in.Places,
	}
	resolved := map[Kind][]string{}
	for kind, names := range links {
		for _, n := range names {
			lid, err := s.EnsureLookup(ctx, kind, n)
			if err != nil {
				return err
			}
			resolved[kind] = append(resolved[kind], lid)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if update {
		res, err := tx.ExecContext(ctx, `UPDATE characters SET name=?, description=?, image_url=?, age=?, state_id=? WHERE id=?`,
			in.Name, in.Description, in.ImageURL, in.Age, stateID, id)
		if err != nil {
			return fmt.Errorf("update character: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		for _, jt := range joinTables {
			if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE character_id=?`, jt[0]), id); err != nil {
				return err
			}
		}
	} else {
		now := time.Now().UTC().Format(time.RFC3339Nano)
		if _, err := tx.ExecContext(ctx, `INSERT INTO characters (id, name, description, image_url, age, state_id, created_at)
			VALUES (?,?,?,?,?,?,?)`, id, in.Name, in.Description, in.ImageURL, in.Age, stateID, now); err != nil {
			return fmt.Errorf("insert character: %w", err)
		}
	}

	for kind, ids := range resolved {
		jt := joinTables[kind]
		for _, lid := range ids {
			if _, err := tx.ExecContext(ctx, fmt.Sprintf(`INSERT OR IGNORE INTO %s (character_id, %s) VALUES (?,?)`, jt[0], jt[1]), id, lid); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

// DeleteCharacter removes a character and, via cascade, its attribute links.
// Daily puzzle assignments referencing the id are left in place; resolution
// surfaces those as "puzzle unavailable".
func (s *Store) DeleteCharacter(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM characters WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
