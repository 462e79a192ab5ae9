// Package session owns the lifecycle of a single (user, date) play-through:
// resolving the day's target character, reconciling previously saved
// progress, applying guesses, and persisting updated state.
//
// All remote collaborators are consumed through small interfaces so the
// session logic stays transport-agnostic; the HTTP implementations live in
// internal/apiclient.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/charadle/charadle/internal/catalog"
	"github.com/charadle/charadle/internal/game"
	"github.com/charadle/charadle/internal/localcache"
	"github.com/charadle/charadle/internal/puzzle"
)

// CatalogSource fetches the full character roster.
type CatalogSource interface {
	Characters(ctx context.Context) ([]catalog.Character, error)
}

// TargetResolver resolves (or lazily creates) the target character id for a
// date. Idempotent: every caller for the same date sees the same id.
type TargetResolver interface {
	ResolveTarget(ctx context.Context, date string) (string, error)
}

// GuessValidator checks a guess against the day's target. A nil verdict means
// the check was inconclusive and the caller should fall back to local
// comparison.
type GuessValidator interface {
	ValidateGuess(ctx context.Context, characterID, date string) (*bool, error)
}

// Revealer returns the true target id after a defeat. The returned id may be
// one the client never held before.
type Revealer interface {
	RevealTarget(ctx context.Context, date string) (string, error)
}

// AttemptStore reads and upserts the durable per-(user, date) progress
// record. Get returns (nil, nil) when no record exists.
type AttemptStore interface {
	GetAttempt(ctx context.Context, date string) (*game.Attempt, error)
	PutAttempt(ctx context.Context, date string, a game.Attempt) error
}

// StatsSink receives fire-and-forget counter increments.
type StatsSink interface {
	IncrGamesPlayed(ctx context.Context) error
	IncrWins(ctx context.Context) error
}

// Backend bundles the remote collaborators. Attempts and Stats are nil for
// anonymous play, which is then local-only.
type Backend struct {
	Catalog   CatalogSource
	Resolver  TargetResolver
	Validator GuessValidator
	Revealer  Revealer
	Attempts  AttemptStore
	Stats     StatsSink
}

// Options tune a session.
type Options struct {
	// Cache mirrors progress across restarts. Optional.
	Cache *localcache.Cache
	// Clock supplies "now" for the won-implies-today rule. Defaults to
	// time.Now.
	Clock func() time.Time
	// Lives overrides game.MaxLives for fresh attempts when > 0.
	Lives int
	// Logger receives diagnostics for best-effort failures.
	Logger zerolog.Logger
}

var (
	// ErrNotLoaded is returned by Submit before a Load has committed.
	ErrNotLoaded = errors.New("session not loaded")
	// ErrSuperseded is returned by a Load whose result arrived after a newer
	// Load already committed. The newer state stands.
	ErrSuperseded = errors.New("load superseded")
)

// Session is the state machine for one play-through. Safe for use from
// multiple goroutines; remote verdicts are fetched outside the lock and
// applied atomically.
type Session struct {
	backend Backend
	opts    Options

	mu         sync.Mutex
	seq        uint64
	loaded     bool
	date       string
	roster     []catalog.Character
	target     catalog.Character
	attempt    game.Attempt
	revealedID string
}

// Snapshot is a read-only view of session state.
type Snapshot struct {
	Date       string
	Target     *catalog.Character
	Attempt    game.Attempt
	State      game.State
	RevealedID string
}

// New builds a session over the given collaborators.
func New(backend Backend, opts Options) *Session {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Session{backend: backend, opts: opts}
}

// authenticated reports whether a durable attempt store is available.
func (s *Session) authenticated() bool { return s.backend.Attempts != nil }

// Peek returns any locally cached progress for a date without touching the
// network, so a caller can render immediately while Load runs. The returned
// snapshot is optimistic: it must be replaced once Load commits, and Submit
// refuses to act on it.
func (s *Session) Peek(date string) (Snapshot, bool) {
	if s.opts.Cache == nil {
		return Snapshot{}, false
	}
	var e localcache.AttemptEntry
	if ok, _ := s.opts.Cache.GetStale(localcache.AttemptKey(date), &e); !ok {
		return Snapshot{}, false
	}
	return Snapshot{Date: date, Attempt: e.Attempt, State: e.Attempt.State()}, true
}

// Load resolves the target character for date (defaulting to today), merges
// any existing progress, and commits the result. A Load superseded by a newer
// one returns ErrSuperseded and leaves the newer state untouched.
func (s *Session) Load(ctx context.Context, date string) (Snapshot, error) {
	if date == "" {
		date = puzzle.DateKey(s.opts.Clock())
	}
	if _, err := puzzle.ParseDate(date); err != nil {
		return Snapshot{}, err
	}

	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.mu.Unlock()

	roster, target, err := s.resolveTarget(ctx, date)
	if err != nil {
		return Snapshot{}, err
	}

	attempt, err := s.mergeProgress(ctx, date, target.ID)
	if err != nil {
		return Snapshot{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seq != seq {
		return s.snapshotLocked(), ErrSuperseded
	}
	s.loaded = true
	s.date = date
	s.roster = roster
	s.target = *target
	s.attempt = attempt
	s.revealedID = ""
	s.mirrorLocked()
	return s.snapshotLocked(), nil
}

// resolveTarget fetches the roster and the day's target id concurrently
// (they have no data dependency) and resolves the id against the roster.
func (s *Session) resolveTarget(ctx context.Context, date string) ([]catalog.Character, *catalog.Character, error) {
	var (
		wg        sync.WaitGroup
		roster    []catalog.Character
		rosterErr error
		targetID  string
		targetErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		roster, rosterErr = s.fetchRoster(ctx)
	}()
	go func() {
		defer wg.Done()
		targetID, targetErr = s.backend.Resolver.ResolveTarget(ctx, date)
	}()
	wg.Wait()

	if rosterErr != nil {
		return nil, nil, rosterErr
	}
	if targetErr != nil {
		return nil, nil, targetErr
	}
	if len(roster) == 0 {
		return nil, nil, &puzzle.NotFoundError{Date: date, Reason: "empty catalog"}
	}
	target := catalog.FindByID(roster, targetID)
	if target == nil {
		// A cached roster may simply predate the target; refetch once.
		fresh, err := s.backend.Catalog.Characters(ctx)
		if err == nil {
			s.cacheRoster(fresh)
			roster = fresh
			target = catalog.FindByID(roster, targetID)
		}
	}
	if target == nil {
		return nil, nil, &puzzle.NotFoundError{Date: date, Reason: "target character not in catalog"}
	}
	return roster, target, nil
}

// fetchRoster serves a fresh cached roster when available, falling back to
// the remote catalog (and refreshing the cache on success).
func (s *Session) fetchRoster(ctx context.Context) ([]catalog.Character, error) {
	if s.opts.Cache != nil {
		var cached []catalog.Character
		if s.opts.Cache.Get(localcache.CatalogKey, &cached) && len(cached) > 0 {
			return cached, nil
		}
	}
	roster, err := s.backend.Catalog.Characters(ctx)
	if err != nil {
		return nil, err
	}
	s.cacheRoster(roster)
	return roster, nil
}

func (s *Session) cacheRoster(roster []catalog.Character) {
	if s.opts.Cache == nil || len(roster) == 0 {
		return
	}
	if err := s.opts.Cache.Set(localcache.CatalogKey, roster, localcache.CatalogTTL); err != nil {
		s.opts.Logger.Warn().Err(err).Msg("cache roster")
	}
}

// mergeProgress applies the source-precedence rules: durable remote attempt
// when authenticated, else a local cache entry whose stored target id matches
// the freshly resolved target, else a fresh attempt.
func (s *Session) mergeProgress(ctx context.Context, date, targetID string) (game.Attempt, error) {
	if s.authenticated() {
		remote, err := s.backend.Attempts.GetAttempt(ctx, date)
		if err != nil {
			return game.Attempt{}, err
		}
		if remote != nil {
			return *remote, nil
		}
	}
	if s.opts.Cache != nil {
		var e localcache.AttemptEntry
		if ok, _ := s.opts.Cache.GetStale(localcache.AttemptKey(date), &e); ok && e.TargetID == targetID {
			return e.Attempt, nil
		}
	}
	return game.NewAttempt(s.opts.Lives), nil
}

// Result reports the outcome of one Submit call.
type Result struct {
	// Matched is false when the token resolved to no character; nothing
	// changed and the input should simply be cleared.
	Matched bool
	// Ignored is true when the attempt was already over; terminal states
	// silently swallow resubmissions.
	Ignored bool
	// Guess and Feedback are set for every accepted guess.
	Guess    *catalog.Character
	Feedback *game.Feedback
	// Attempt and State reflect the session after the guess.
	Attempt game.Attempt
	State   game.State
	// RevealedID (and Revealed when the id is in the roster) carry the
	// server-disclosed answer after a defeat.
	RevealedID string
	Revealed   *catalog.Character
}

// Submit resolves a free-text token against the roster and, on a match,
// plays it as a guess: correctness comes from the remote validator with a
// local exact-match fallback, lives and found/won evolve per the state
// machine, and the updated attempt is mirrored to cache and persisted
// best-effort.
func (s *Session) Submit(ctx context.Context, token string) (Result, error) {
	s.mu.Lock()
	if !s.loaded {
		s.mu.Unlock()
		return Result{}, ErrNotLoaded
	}
	if s.attempt.Over() {
		res := Result{Ignored: true, Attempt: s.attempt, State: s.attempt.State()}
		s.mu.Unlock()
		return res, nil
	}
	seq := s.seq
	date := s.date
	target := s.target
	roster := s.roster
	firstGuess := len(s.attempt.Guesses) == 0
	s.mu.Unlock()

	guess := catalog.FindByName(roster, token)
	if guess == nil {
		snap := s.snapshot()
		return Result{Matched: false, Attempt: snap.Attempt, State: snap.State}, nil
	}

	isToday := date == puzzle.DateKey(s.opts.Clock())
	if firstGuess && isToday {
		s.fireAndForget("games played", func(ctx context.Context) error {
			return s.backend.Stats.IncrGamesPlayed(ctx)
		})
	}

	// One remote verdict, fetched outside the lock; everything else is
	// already-validated local state.
	correct := s.validate(ctx, guess.ID, date, guess.ID == target.ID)

	s.mu.Lock()
	if s.seq != seq || s.attempt.Over() {
		// A newer Load (or a racing guess that ended the game) won; drop
		// this guess rather than apply it to superseded state.
		res := Result{Ignored: true, Attempt: s.attempt, State: s.attempt.State()}
		s.mu.Unlock()
		return res, nil
	}
	s.attempt.Guesses = append(s.attempt.Guesses, guess.ID)
	if correct {
		s.attempt.RecordCorrect(isToday)
	} else {
		s.attempt.RecordIncorrect()
	}
	lost := !s.attempt.Found && s.attempt.Lives == 0
	won := s.attempt.Won
	attempt := s.attempt
	s.mirrorLocked()
	s.mu.Unlock()

	fb := game.Compare(*guess, target)
	res := Result{
		Matched:  true,
		Guess:    guess,
		Feedback: &fb,
		Attempt:  attempt,
		State:    attempt.State(),
	}

	if won {
		s.fireAndForget("wins", func(ctx context.Context) error {
			return s.backend.Stats.IncrWins(ctx)
		})
	}
	if lost {
		res.RevealedID, res.Revealed = s.reveal(ctx, date, roster)
		s.mu.Lock()
		s.revealedID = res.RevealedID
		s.mu.Unlock()
	}

	s.persist(ctx, date, attempt)
	return res, nil
}

// validate asks the remote validator for a verdict, falling back to the local
// exact-match result when the check errors out or is inconclusive. The
// fallback keeps the game playable through backend hiccups; the server
// remains the source of truth for scoring.
func (s *Session) validate(ctx context.Context, characterID, date string, local bool) bool {
	if s.backend.Validator == nil {
		return local
	}
	verdict, err := s.backend.Validator.ValidateGuess(ctx, characterID, date)
	if err != nil {
		s.opts.Logger.Debug().Err(err).Msg("guess validation failed, using local fallback")
		return local
	}
	if verdict == nil {
		s.opts.Logger.Debug().Msg("guess validation inconclusive, using local fallback")
		return local
	}
	return *verdict
}

// reveal obtains the true answer after a defeat. The protocol call is issued
// even though this client resolved the target itself; the returned id is
// displayed verbatim and may not be in the local roster.
func (s *Session) reveal(ctx context.Context, date string, roster []catalog.Character) (string, *catalog.Character) {
	if s.backend.Revealer == nil {
		return "", nil
	}
	id, err := s.backend.Revealer.RevealTarget(ctx, date)
	if err != nil {
		s.opts.Logger.Warn().Err(err).Msg("reveal target")
		return "", nil
	}
	return id, catalog.FindByID(roster, id)
}

// persist upserts the attempt when authenticated and at least one guess
// exists. Failures are logged only; the next guess tries again.
func (s *Session) persist(ctx context.Context, date string, a game.Attempt) {
	if !s.authenticated() || len(a.Guesses) == 0 {
		return
	}
	if err := s.backend.Attempts.PutAttempt(ctx, date, a); err != nil {
		s.opts.Logger.Warn().Err(err).Str("date", date).Msg("persist attempt")
	}
}

// fireAndForget runs a best-effort side effect off the guess path. Failure is
// logged, never propagated.
func (s *Session) fireAndForget(name string, fn func(context.Context) error) {
	if s.backend.Stats == nil {
		return
	}
	logger := s.opts.Logger
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := fn(ctx); err != nil {
			logger.Warn().Err(err).Str("counter", name).Msg("stat increment failed")
		}
	}()
}

// mirrorLocked writes the current attempt into the local cache, keyed by
// (date, target id). Caller holds the lock.
func (s *Session) mirrorLocked() {
	if s.opts.Cache == nil {
		return
	}
	e := localcache.AttemptEntry{TargetID: s.target.ID, Attempt: s.attempt}
	if err := s.opts.Cache.Set(localcache.AttemptKey(s.date), e, 48*time.Hour); err != nil {
		s.opts.Logger.Warn().Err(err).Msg("cache attempt")
	}
}

// Snapshot returns the current committed state.
func (s *Session) Snapshot() Snapshot { return s.snapshot() }

func (s *Session) snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		Date:       s.date,
		Attempt:    s.attempt,
		State:      s.attempt.State(),
		RevealedID: s.revealedID,
	}
	if s.loaded {
		t := s.target
		snap.Target = &t
	}
	return snap
}

// Suggestions returns roster names matching a prefix, with already-guessed
// characters suppressed. Case-insensitive. Submitting a suppressed name is
// still accepted; this only trims the hint list.
func (s *Session) Suggestions(prefix string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	guessed := make(map[string]struct{}, len(s.attempt.Guesses))
	for _, id := range s.attempt.Guesses {
		guessed[id] = struct{}{}
	}
	var out []string
	for _, c := range s.roster {
		if _, done := guessed[c.ID]; done {
			continue
		}
		if prefix == "" || hasFoldPrefix(c.Name, prefix) {
			out = append(out, c.Name)
		}
	}
	return out
}

func hasFoldPrefix(name, prefix string) bool {
	return len(name) >= len(prefix) && strings.EqualFold(name[:len(prefix)], prefix)
}
