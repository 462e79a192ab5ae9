package game

import "github.com/charadle/charadle/internal/catalog"

// ItemMatch is the verdict for one item of a multi-valued attribute: whether
// this item of the guess also appears in the target's set for that attribute.
type ItemMatch struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Match bool   `json:"match"`
}

// Feedback is the per-attribute comparison of a guessed character against the
// target. Single-valued attributes are exact-match booleans; multi-valued
// attributes carry one independent verdict per item of the guess, so partial
// overlap stays visible instead of collapsing into a score.
type Feedback struct {
	Correct      bool        `json:"correct"`
	State        bool        `json:"state"`
	Age          bool        `json:"age"`
	Classes      []ItemMatch `json:"classes"`
	Races        []ItemMatch `json:"races"`
	Occupations  []ItemMatch `json:"occupations"`
	Associations []ItemMatch `json:"associations"`
	Places       []ItemMatch `json:"places"`
}

// Compare computes the feedback for guess G against target T.
//
// Pure and idempotent: identical (G, T) always produce identical output,
// independent of call order, prior guesses, or the order items were added to
// either set.
func Compare(guess, target catalog.Character) Feedback {
	return Feedback{
		Correct:      guess.ID == target.ID,
		State:        guess.State.ID != "" && guess.State.ID == target.State.ID,
		Age:          guess.Age == target.Age,
		Classes:      matchItems(guess.Classes, target.Classes),
		Races:        matchItems(guess.Races, target.Races),
		Occupations:  matchItems(guess.Occupations, target.Occupations),
		Associations: matchItems(guess.Associations, target.Associations),
		Places:       matchItems(guess.Places, target.Places),
	}
}

// matchItems flags each guess item that is present in the target set.
func matchItems(guess, target []catalog.Lookup) []ItemMatch {
	set := make(map[string]struct{}, len(target))
	for _, l := range target {
		set[l.ID] = struct{}{}
	}
	out := make([]ItemMatch, 0, len(guess))
	for _, l := range guess {
		_, ok := set[l.ID]
		out = append(out, ItemMatch{ID: l.ID, Name: l.Name, Match: ok})
	}
	return out
}
