package httpserver

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/charadle/charadle/internal/game"
	"github.com/charadle/charadle/internal/puzzle"
)

func newTestServer(t *testing.T) *Server {
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
	return New(db, Config{JWTSecret: "test_secret", SiteURL: "http://example.test"})
}

func seedRoster(t *testing.T, s *Server, names ...string) {
	t.Helper()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, name := range names {
		created := base.Add(time.Duration(i) * time.Minute).Format(time.RFC3339Nano)
		if _, err := s.db.Exec(`INSERT INTO characters (id, name, created_at) VALUES (?,?,?)`,
			"id-"+name, name, created); err != nil {
			t.Fatalf("seed %s: %v", name, err)
		}
	}
}

func signupUser(t *testing.T, s *Server, username string) string {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"Username": username, "Password": "password123"})
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/signup", bytes.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("signup: status %d: %s", rec.Code, rec.Body.String())
	}
	var res struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil || res.Token == "" {
		t.Fatalf("signup response missing token: %s", rec.Body.String())
	}
	return res.Token
}

func doJSON(t *testing.T, s *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		rd = bytes.NewReader(raw)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestTargetResolutionIsIdempotent(t *testing.T) {
	s := newTestServer(t)
	seedRoster(t, s, "alpha", "beta", "gamma")

	first := doJSON(t, s, http.MethodPost, "/daily/target", "", map[string]string{"date": "2024-04-10"})
	second := doJSON(t, s, http.MethodPost, "/daily/target", "", map[string]string{"date": "2024-04-10"})
	if first.Code != http.StatusOK || second.Code != http.StatusOK {
		t.Fatalf("status %d / %d", first.Code, second.Code)
	}
	if first.Body.String() != second.Body.String() {
		t.Fatalf("resolution not idempotent: %s vs %s", first.Body.String(), second.Body.String())
	}
}

func TestTargetEmptyCatalogIsUnavailable(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s, http.MethodPost, "/daily/target", "", map[string]string{"date": "2024-04-10"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestValidateVerdicts(t *testing.T) {
	s := newTestServer(t)
	seedRoster(t, s, "alpha", "beta")

	var target struct {
		CharacterID string `json:"characterId"`
	}
	rec := doJSON(t, s, http.MethodPost, "/daily/target", "", map[string]string{"date": "2024-04-02"})
	_ = json.Unmarshal(rec.Body.Bytes(), &target)

	rec = doJSON(t, s, http.MethodPost, "/daily/validate", "",
		map[string]string{"characterId": target.CharacterID, "date": "2024-04-02"})
	var verdict struct {
		Correct *bool `json:"correct"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &verdict)
	if verdict.Correct == nil || !*verdict.Correct {
		t.Fatalf("target guess should validate true: %s", rec.Body.String())
	}

	rec = doJSON(t, s, http.MethodPost, "/daily/validate", "",
		map[string]string{"characterId": "id-nope", "date": "2024-04-02"})
	_ = json.Unmarshal(rec.Body.Bytes(), &verdict)
	if verdict.Correct == nil || *verdict.Correct {
		t.Fatalf("wrong guess should validate false: %s", rec.Body.String())
	}
}

func TestValidateInconclusiveOnEmptyCatalog(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s, http.MethodPost, "/daily/validate", "",
		map[string]string{"characterId": "x", "date": "2024-04-02"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var verdict struct {
		Correct *bool `json:"correct"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &verdict)
	if verdict.Correct != nil {
		t.Fatalf("unresolvable puzzle should yield a null verdict: %s", rec.Body.String())
	}
}

func TestStatIncrementsAreAtomicUpdates(t *testing.T) {
	s := newTestServer(t)
	tok := signupUser(t, s, "player1")

	for i := 0; i < 3; i++ {
		if rec := doJSON(t, s, http.MethodPost, "/stats/won", tok, nil); rec.Code != http.StatusOK {
			t.Fatalf("increment: status %d", rec.Code)
		}
	}
	if rec := doJSON(t, s, http.MethodPost, "/stats/played", tok, nil); rec.Code != http.StatusOK {
		t.Fatalf("increment: status %d", rec.Code)
	}

	rec := doJSON(t, s, http.MethodGet, "/stats/me", tok, nil)
	var stats struct {
		Wins        int `json:"wins"`
		GamesPlayed int `json:"gamesPlayed"`
		Rank        int `json:"rank"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &stats)
	if stats.Wins != 3 || stats.GamesPlayed != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	if stats.Rank != 1 {
		t.Fatalf("rank = %d, want 1", stats.Rank)
	}
}

func TestRankOrdersByWins(t *testing.T) {
	s := newTestServer(t)
	tok1 := signupUser(t, s, "first")
	signupUser(t, s, "second")

	if rec := doJSON(t, s, http.MethodPost, "/stats/won", tok1, nil); rec.Code != http.StatusOK {
		t.Fatalf("increment: status %d", rec.Code)
	}

	rec := doJSON(t, s, http.MethodGet, "/rank", "", nil)
	var board []struct {
		Username string `json:"username"`
		Wins     int    `json:"wins"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &board)
	if len(board) != 2 || board[0].Username != "first" || board[0].Wins != 1 {
		t.Fatalf("leaderboard = %+v", board)
	}
}

func TestStatsRequireAuth(t *testing.T) {
	s := newTestServer(t)
	if rec := doJSON(t, s, http.MethodPost, "/stats/won", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestAttemptUpsertAndFetch(t *testing.T) {
	s := newTestServer(t)
	seedRoster(t, s, "alpha", "beta")
	tok := signupUser(t, s, "player1")

	if rec := doJSON(t, s, http.MethodGet, "/attempts/2024-04-02", tok, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("absent attempt: status %d, want 404", rec.Code)
	}

	a := game.Attempt{Guesses: []string{"id-alpha"}, Lives: 9}
	if rec := doJSON(t, s, http.MethodPut, "/attempts/2024-04-02", tok, a); rec.Code != http.StatusOK {
		t.Fatalf("upsert: status %d: %s", rec.Code, rec.Body.String())
	}

	rec := doJSON(t, s, http.MethodGet, "/attempts/2024-04-02", tok, nil)
	var got game.Attempt
	_ = json.Unmarshal(rec.Body.Bytes(), &got)
	if len(got.Guesses) != 1 || got.Lives != 9 {
		t.Fatalf("fetched attempt = %+v", got)
	}
}

func TestAttemptMergeKeepsProgress(t *testing.T) {
	s := newTestServer(t)
	seedRoster(t, s, "alpha", "beta")
	tok := signupUser(t, s, "player1")

	ahead := game.Attempt{Guesses: []string{"id-alpha", "id-beta"}, Lives: 8, Found: true}
	if rec := doJSON(t, s, http.MethodPut, "/attempts/2024-04-02", tok, ahead); rec.Code != http.StatusOK {
		t.Fatalf("upsert: status %d", rec.Code)
	}

	// A stale tab writes an older view; the merge must not lose progress.
	stale := game.Attempt{Guesses: []string{"id-alpha"}, Lives: 9}
	rec := doJSON(t, s, http.MethodPut, "/attempts/2024-04-02", tok, stale)
	var merged game.Attempt
	_ = json.Unmarshal(rec.Body.Bytes(), &merged)
	if len(merged.Guesses) != 2 || merged.Lives != 8 || !merged.Found {
		t.Fatalf("merge lost progress: %+v", merged)
	}
}

func TestAttemptWonRejectedForPastDate(t *testing.T) {
	s := newTestServer(t)
	seedRoster(t, s, "alpha", "beta")
	tok := signupUser(t, s, "player1")

	claim := game.Attempt{Guesses: []string{"id-alpha"}, Lives: 10, Found: true, Won: true}
	rec := doJSON(t, s, http.MethodPut, "/attempts/2020-01-01", tok, claim)
	var stored game.Attempt
	_ = json.Unmarshal(rec.Body.Bytes(), &stored)
	if !stored.Found {
		t.Fatalf("found should persist: %+v", stored)
	}
	if stored.Won {
		t.Fatalf("won must be refused for a past date: %+v", stored)
	}
}

func TestAttemptWonAcceptedForTodayWithTargetGuessed(t *testing.T) {
	s := newTestServer(t)
	seedRoster(t, s, "alpha", "beta")
	tok := signupUser(t, s, "player1")

	today := puzzle.DateKey(time.Now())
	var target struct {
		CharacterID string `json:"characterId"`
	}
	rec := doJSON(t, s, http.MethodPost, "/daily/target", "", map[string]string{"date": today})
	_ = json.Unmarshal(rec.Body.Bytes(), &target)

	claim := game.Attempt{Guesses: []string{target.CharacterID}, Lives: 10, Found: true, Won: true}
	rec = doJSON(t, s, http.MethodPut, "/attempts/"+today, tok, claim)
	var stored game.Attempt
	_ = json.Unmarshal(rec.Body.Bytes(), &stored)
	if !stored.Won {
		t.Fatalf("verified win should persist: %+v", stored)
	}
}

func TestCatalogOrderFlag(t *testing.T) {
	s := newTestServer(t)
	seedRoster(t, s, "alpha", "beta", "gamma")

	var asc, desc []struct {
		ID string `json:"id"`
	}
	rec := doJSON(t, s, http.MethodGet, "/characters", "", nil)
	_ = json.Unmarshal(rec.Body.Bytes(), &asc)
	rec = doJSON(t, s, http.MethodGet, "/characters?order=desc", "", nil)
	_ = json.Unmarshal(rec.Body.Bytes(), &desc)

	if len(asc) != 3 || len(desc) != 3 {
		t.Fatalf("lengths %d/%d", len(asc), len(desc))
	}
	if asc[0].ID != "id-alpha" || desc[0].ID != "id-gamma" {
		t.Fatalf("ordering wrong: asc[0]=%s desc[0]=%s", asc[0].ID, desc[0].ID)
	}
}

func TestAdminRequiresAdminFlag(t *testing.T) {
	s := newTestServer(t)
	tok := signupUser(t, s, "player1")

	rec := doJSON(t, s, http.MethodPost, "/admin/characters", tok, map[string]any{"name": "X"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}

	if _, err := s.db.Exec(`UPDATE users SET is_admin=1`); err != nil {
		t.Fatalf("promote: %v", err)
	}
	rec = doJSON(t, s, http.MethodPost, "/admin/characters", tok, map[string]any{
		"name": "X", "state": "Alive", "classes": []string{"Mage"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var chars []struct {
		Name    string `json:"name"`
		State   struct{ Name string }
		Classes []struct{ Name string }
	}
	rec = doJSON(t, s, http.MethodGet, "/characters", "", nil)
	_ = json.Unmarshal(rec.Body.Bytes(), &chars)
	if len(chars) != 1 || chars[0].State.Name != "Alive" || len(chars[0].Classes) != 1 {
		t.Fatalf("created character not inlined: %+v", chars)
	}
}

func TestShareQRServesPNG(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s, http.MethodGet, "/share/qr", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Fatalf("content type = %s", ct)
	}
	if rec.Body.Len() == 0 {
		t.Fatal("empty png body")
	}
}
