package localcache

import (
	"time"

	"github.com/charadle/charadle/internal/game"
)

// Cache keys and typed payloads shared by the session and the play client.
const (
	CatalogKey     = "catalog"
	HeaderStatsKey = "header-stats"

	// CatalogTTL bounds how long a cached roster is served without a refresh.
	CatalogTTL = 24 * time.Hour

	// HeaderStatsTTL bounds how long header stats are considered fresh.
	HeaderStatsTTL = 10 * time.Minute
)

// AttemptKey returns the cache key for one date's in-progress attempt.
func AttemptKey(date string) string { return "attempt:" + date }

// AttemptEntry is the cached per-date progress. TargetID guards against a
// stale entry surviving a catalog change: the entry is honored only when it
// matches the freshly resolved target.
type AttemptEntry struct {
	TargetID string       `json:"targetId"`
	Attempt  game.Attempt `json:"attempt"`
}

// HeaderStats is the cached aggregate header line (rank, wins, display
// name). Consumers read it through GetStale and surface the stale flag while
// a fresh fetch runs.
type HeaderStats struct {
	Name string `json:"name"`
	Wins int    `json:"wins"`
	Rank int    `json:"rank"`
}
