// Package catalog defines the character roster and its lookup taxonomies.
//
// All wire and database shapes are normalized into the fixed Character record
// at the boundary; nothing downstream sees partial joins or raw rows.
package catalog

import "strings"

// Lookup is a small named entity (state, class, race, occupation,
// association, place). Each kind lives in its own table but shares this shape.
type Lookup struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Character is a fully-inlined roster entry. Immutable during a game session;
// mutated only through admin operations.
type Character struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description,omitempty"`
	ImageURL     string   `json:"imageUrl,omitempty"`
	Age          int      `json:"age,omitempty"`
	State        Lookup   `json:"state"`
	Classes      []Lookup `json:"classes"`
	Races        []Lookup `json:"races"`
	Occupations  []Lookup `json:"occupations"`
	Associations []Lookup `json:"associations"`
	Places       []Lookup `json:"places"`
}

// Kind names the six lookup taxonomies. Used to address admin CRUD and the
// per-kind tables without six copies of every helper.
type Kind string

const (
	KindState       Kind = "states"
	KindClass       Kind = "classes"
	KindRace        Kind = "races"
	KindOccupation  Kind = "occupations"
	KindAssociation Kind = "associations"
	KindPlace       Kind = "places"
)

// Kinds lists all taxonomies in a stable order.
var Kinds = []Kind{KindState, KindClass, KindRace, KindOccupation, KindAssociation, KindPlace}

// FindByName resolves a free-text token against the roster by case-insensitive
// exact name match. Returns nil when no entry matches.
func FindByName(roster []Character, token string) *Character {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}
	for i := range roster {
		if strings.EqualFold(roster[i].Name, token) {
			return &roster[i]
		}
	}
	return nil
}

// FindByID resolves a character id against the roster. Returns nil when the
// id no longer resolves (e.g. the character was deleted after assignment).
func FindByID(roster []Character, id string) *Character {
	for i := range roster {
		if roster[i].ID == id {
			return &roster[i]
		}
	}
	return nil
}
