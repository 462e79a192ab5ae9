// Package game holds the pure rules of a charadle play-through: the attempt
// state machine and the per-attribute feedback computation. No I/O.
package game

// MaxLives is the default number of lives per attempt.
const MaxLives = 10

// State is the coarse lifecycle of an attempt.
type State string

const (
	// StateFresh: no guesses yet.
	StateFresh State = "fresh"
	// StateInProgress: at least one guess, not over.
	StateInProgress State = "in_progress"
	// StateWon: target found on the current day.
	StateWon State = "won"
	// StateFoundNotWon: target found while replaying a past date.
	StateFoundNotWon State = "found"
	// StateLost: lives exhausted without finding the target.
	StateLost State = "lost"
)

// Attempt is one user's progress for one date. Guesses are character ids in
// insertion order; duplicates are permitted.
type Attempt struct {
	Guesses []string `json:"guesses"`
	Lives   int      `json:"lives"`
	Found   bool     `json:"found"`
	Won     bool     `json:"won"`
}

// NewAttempt returns a fresh attempt with the given number of lives
// (MaxLives when lives <= 0).
func NewAttempt(lives int) Attempt {
	if lives <= 0 {
		lives = MaxLives
	}
	return Attempt{Guesses: []string{}, Lives: lives}
}

// State derives the lifecycle state from the record.
func (a *Attempt) State() State {
	switch {
	case a.Found && a.Won:
		return StateWon
	case a.Found:
		return StateFoundNotWon
	case a.Lives <= 0:
		return StateLost
	case len(a.Guesses) == 0:
		return StateFresh
	default:
		return StateInProgress
	}
}

// Over reports whether the attempt is terminal: target found or lives gone.
func (a *Attempt) Over() bool {
	return a.Found || a.Lives <= 0
}

// RecordCorrect marks the target found. Won is set only when the play date is
// the real-world current date; found never reverts.
func (a *Attempt) RecordCorrect(today bool) {
	a.Found = true
	if today {
		a.Won = true
	}
}

// RecordIncorrect burns one life, floor zero.
func (a *Attempt) RecordIncorrect() {
	if a.Lives > 0 {
		a.Lives--
	}
}
