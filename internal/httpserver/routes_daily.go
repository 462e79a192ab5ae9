// HTTP routes for the daily puzzle and its supporting reads.
//
//   - GET  /characters      → full roster with lookups inlined (order flag)
//   - GET  /lookups         → all six taxonomies
//   - POST /daily/target    → resolve-or-create the day's target (id only)
//   - POST /daily/validate  → verdict for a guessed character id
//   - POST /daily/reveal    → disclose the answer after a defeat
//   - GET  /share/qr        → QR code for the configured site URL
//
// Attempt persistence (auth gated, mounted in server.go):
//   - GET  /attempts/{date}
//   - PUT  /attempts/{date}  (upsert, conflict key = user+date)

package httpserver

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/charadle/charadle/internal/catalog"
	"github.com/charadle/charadle/internal/game"
	"github.com/charadle/charadle/internal/puzzle"
)

// mountGame registers the catalog and daily puzzle routes.
func (s *Server) mountGame(r chi.Router) {
	r.Get("/characters", s.handleCatalog)
	r.Get("/lookups", s.handleLookups)
	r.Route("/daily", func(r chi.Router) {
		r.Post("/target", s.handleTarget)
		r.Post("/validate", s.handleValidate)
		r.Post("/reveal", s.handleReveal)
	})
	r.Get("/share/qr", s.handleShareQR)
}

// handleCatalog returns the roster in creation order; ?order=desc reverses.
func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	desc := r.URL.Query().Get("order") == "desc"
	roster, err := s.catalog.Characters(r.Context(), desc)
	if err != nil {
		log.Error().Err(err).Msg("load catalog")
		http.Error(w, `{"error":"db_error"}`, http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(roster)
}

// handleLookups returns every taxonomy keyed by kind.
func (s *Server) handleLookups(w http.ResponseWriter, r *http.Request) {
	out := map[catalog.Kind][]catalog.Lookup{}
	for _, kind := range catalog.Kinds {
		ls, err := s.catalog.Lookups(r.Context(), kind)
		if err != nil {
			log.Error().Err(err).Str("kind", string(kind)).Msg("load lookups")
			http.Error(w, `{"error":"db_error"}`, http.StatusInternalServerError)
			return
		}
		out[kind] = ls
	}
	_ = json.NewEncoder(w).Encode(out)
}

// dateReq is shared by the daily endpoints; date defaults to today.
type dateReq struct {
	Date string `json:"date"`
}

func (s *Server) dateOrToday(r *http.Request) (string, error) {
	var body dateReq
	_ = json.NewDecoder(r.Body).Decode(&body)
	if body.Date == "" {
		return puzzle.DateKey(time.Now()), nil
	}
	if _, err := puzzle.ParseDate(body.Date); err != nil {
		return "", err
	}
	return body.Date, nil
}

// handleTarget resolves (or lazily creates) the target assignment for a date.
// Idempotent: the first caller performs the deterministic selection, everyone
// else reads the same id back.
func (s *Server) handleTarget(w http.ResponseWriter, r *http.Request) {
	date, err := s.dateOrToday(r)
	if err != nil {
		http.Error(w, `{"error":"bad_date"}`, http.StatusBadRequest)
		return
	}
	id, err := s.puzzles.Resolve(r.Context(), date)
	if err != nil {
		s.puzzleError(w, err, "resolve target")
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"characterId": id, "date": date})
}

type validateReq struct {
	CharacterID string `json:"characterId"`
	Date        string `json:"date"`
}

// handleValidate checks a guessed character id against the date's target. An
// unresolvable puzzle yields a null verdict rather than an error, which the
// client treats as inconclusive.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var body validateReq
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.CharacterID == "" {
		http.Error(w, `{"error":"bad_request"}`, http.StatusBadRequest)
		return
	}
	date := body.Date
	if date == "" {
		date = puzzle.DateKey(time.Now())
	}
	targetID, err := s.puzzles.Resolve(r.Context(), date)
	if err != nil {
		var nf *puzzle.NotFoundError
		if errors.As(err, &nf) {
			_ = json.NewEncoder(w).Encode(map[string]any{"correct": nil})
			return
		}
		log.Error().Err(err).Msg("validate guess")
		http.Error(w, `{"error":"db_error"}`, http.StatusInternalServerError)
		return
	}
	correct := body.CharacterID == targetID
	_ = json.NewEncoder(w).Encode(map[string]any{"correct": correct})
}

// handleReveal discloses the date's target id. Issued by clients after a
// defeat; also covers deployments where the target is withheld pre-defeat.
func (s *Server) handleReveal(w http.ResponseWriter, r *http.Request) {
	date, err := s.dateOrToday(r)
	if err != nil {
		http.Error(w, `{"error":"bad_date"}`, http.StatusBadRequest)
		return
	}
	id, err := s.puzzles.Resolve(r.Context(), date)
	if err != nil {
		s.puzzleError(w, err, "reveal target")
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"characterId": id, "date": date})
}

// puzzleError maps puzzle resolution failures: NotFoundError → 404 ("puzzle
// unavailable", not retryable), anything else → 500.
func (s *Server) puzzleError(w http.ResponseWriter, err error, op string) {
	var nf *puzzle.NotFoundError
	if errors.As(err, &nf) {
		http.Error(w, `{"error":"puzzle_unavailable"}`, http.StatusNotFound)
		return
	}
	log.Error().Err(err).Msg(op)
	http.Error(w, `{"error":"db_error"}`, http.StatusInternalServerError)
}

// ------------------------------ attempts -----------------------------------

// attemptRow mirrors the attempts table; guesses are stored as a JSON array.
type attemptRow struct {
	Guesses string
	Lives   int
	Found   bool
	Won     bool
}

// handleGetAttempt returns the caller's attempt for a date, 404 when absent.
func (s *Server) handleGetAttempt(w http.ResponseWriter, r *http.Request) {
	me, _ := r.Context().Value(ctxUserKey{}).(*authUser)
	date := chi.URLParam(r, "date")
	if _, err := puzzle.ParseDate(date); err != nil {
		http.Error(w, `{"error":"bad_date"}`, http.StatusBadRequest)
		return
	}
	a, err := s.loadAttempt(r, me.ID, date)
	if err == sql.ErrNoRows {
		http.Error(w, `{"error":"not_found"}`, http.StatusNotFound)
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("load attempt")
		http.Error(w, `{"error":"db_error"}`, http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(a)
}

func (s *Server) loadAttempt(r *http.Request, userID, date string) (*game.Attempt, error) {
	var row attemptRow
	err := s.db.QueryRowContext(r.Context(),
		`SELECT guesses, lives, found, won FROM attempts WHERE user_id=? AND date=?`,
		userID, date).Scan(&row.Guesses, &row.Lives, &row.Found, &row.Won)
	if err != nil {
		return nil, err
	}
	a := game.Attempt{Lives: row.Lives, Found: row.Found, Won: row.Won, Guesses: []string{}}
	if err := json.Unmarshal([]byte(row.Guesses), &a.Guesses); err != nil {
		return nil, fmt.Errorf("decode guesses: %w", err)
	}
	return &a, nil
}

// handlePutAttempt upserts the caller's attempt for a date.
//
// Concurrent tabs race to persist; both derive state from monotonic
// operations, so the merge keeps whichever side has progressed further:
// longest guess list, lowest lives, found/won never revert. The server also
// refuses a won flag it cannot verify: won requires found, the date being
// today, and the day's target among the guesses.
func (s *Server) handlePutAttempt(w http.ResponseWriter, r *http.Request) {
	me, _ := r.Context().Value(ctxUserKey{}).(*authUser)
	date := chi.URLParam(r, "date")
	if _, err := puzzle.ParseDate(date); err != nil {
		http.Error(w, `{"error":"bad_date"}`, http.StatusBadRequest)
		return
	}
	var in game.Attempt
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, `{"error":"bad_json"}`, http.StatusBadRequest)
		return
	}
	if in.Lives < 0 {
		in.Lives = 0
	}
	if in.Lives > game.MaxLives {
		in.Lives = game.MaxLives
	}

	merged := in
	existingWon := false
	if existing, err := s.loadAttempt(r, me.ID, date); err == nil {
		existingWon = existing.Won
		if len(existing.Guesses) > len(merged.Guesses) {
			merged.Guesses = existing.Guesses
		}
		if existing.Lives < merged.Lives {
			merged.Lives = existing.Lives
		}
		merged.Found = merged.Found || existing.Found
		merged.Won = merged.Won || existing.Won
	} else if err != sql.ErrNoRows {
		log.Error().Err(err).Msg("load attempt for merge")
		http.Error(w, `{"error":"db_error"}`, http.StatusInternalServerError)
		return
	}

	// Only a newly claimed win needs verification; an already stored one
	// was verified when it happened.
	if merged.Won && !existingWon && !s.verifyWin(r, date, merged) {
		merged.Won = false
	}
	merged.Won = merged.Won && merged.Found

	raw, _ := json.Marshal(merged.Guesses)
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(r.Context(), `
		INSERT INTO attempts (user_id, date, guesses, lives, found, won, updated_at)
		VALUES (?,?,?,?,?,?,?)
		ON CONFLICT(user_id, date) DO UPDATE SET
			guesses=excluded.guesses, lives=excluded.lives,
			found=excluded.found, won=excluded.won, updated_at=excluded.updated_at`,
		me.ID, date, string(raw), merged.Lives, merged.Found, merged.Won, now)
	if err != nil {
		log.Error().Err(err).Msg("upsert attempt")
		http.Error(w, `{"error":"db_error"}`, http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(merged)
}

// verifyWin re-checks a claimed win: only today's puzzle can be won, and the
// day's target must be among the guesses.
func (s *Server) verifyWin(r *http.Request, date string, a game.Attempt) bool {
	if date != puzzle.DateKey(time.Now()) {
		return false
	}
	targetID, err := s.puzzles.Resolve(r.Context(), date)
	if err != nil {
		// Benefit of the doubt on a transient failure; found still gates it.
		return true
	}
	for _, id := range a.Guesses {
		if id == targetID {
			return true
		}
	}
	return false
}

// ------------------------------ share QR -----------------------------------

// handleShareQR serves a PNG QR code pointing at the configured site URL.
func (s *Server) handleShareQR(w http.ResponseWriter, r *http.Request) {
	url := s.cfg.SiteURL
	if url == "" {
		url = "http://localhost:5175"
	}
	png, err := qrcode.Encode(url, qrcode.Medium, 256)
	if err != nil {
		http.Error(w, `{"error":"qr_failed"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}
