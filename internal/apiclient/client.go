// Package apiclient is the HTTP implementation of the session collaborator
// interfaces. Every request carries a bounded timeout; idempotent reads get a
// small exponential-backoff retry, writes are sent exactly once so a flaky
// network cannot duplicate side effects.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/charadle/charadle/internal/catalog"
	"github.com/charadle/charadle/internal/game"
	"github.com/charadle/charadle/internal/localcache"
)

const (
	defaultTimeout = 10 * time.Second
	retryAttempts  = 3
	retryBase      = 250 * time.Millisecond
)

// ErrNotFound maps HTTP 404 responses (missing attempt, unavailable puzzle).
var ErrNotFound = errors.New("not found")

// Client talks to a charadle server. The zero token makes anonymous requests;
// SetToken switches to authenticated ones.
type Client struct {
	base   string
	http   *http.Client
	token  string
	logger zerolog.Logger
}

// New builds a client for the given base URL (e.g. "http://localhost:5175").
func New(base string, logger zerolog.Logger) *Client {
	return &Client{
		base:   strings.TrimRight(base, "/"),
		http:   &http.Client{Timeout: defaultTimeout},
		logger: logger,
	}
}

// SetToken installs a bearer token for subsequent requests.
func (c *Client) SetToken(token string) { c.token = token }

// Token returns the current bearer token, if any.
func (c *Client) Token() string { return c.token }

// do performs one HTTP exchange and decodes a JSON response into out (when
// non-nil). Responses outside 2xx become errors; 404 maps to ErrNotFound.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s %s: %w", method, path, ErrNotFound)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return fmt.Errorf("%s %s: status %d: %s", method, path, res.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(res.Body).Decode(out)
}

// doRetry wraps do with bounded exponential backoff. Only used for idempotent
// operations. Not-found is terminal, never retried.
func (c *Client) doRetry(ctx context.Context, method, path string, body, out any) error {
	var err error
	delay := retryBase
	for attempt := 0; attempt < retryAttempts; attempt++ {
		if attempt > 0 {
			c.logger.Debug().Str("path", path).Int("attempt", attempt).Msg("retrying request")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
			delay *= 2
		}
		err = c.do(ctx, method, path, body, out)
		if err == nil || errors.Is(err, ErrNotFound) {
			return err
		}
	}
	return err
}

// ---------------------------------------------------------------------------
// session.CatalogSource

// Characters fetches the full roster (creation order).
func (c *Client) Characters(ctx context.Context) ([]catalog.Character, error) {
	var out []catalog.Character
	if err := c.doRetry(ctx, http.MethodGet, "/characters", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// session.TargetResolver

type targetRes struct {
	CharacterID string `json:"characterId"`
}

// ResolveTarget resolves (or creates) the target for a date. The endpoint is
// idempotent, so it is safe to retry.
func (c *Client) ResolveTarget(ctx context.Context, date string) (string, error) {
	var out targetRes
	if err := c.doRetry(ctx, http.MethodPost, "/daily/target", map[string]string{"date": date}, &out); err != nil {
		return "", err
	}
	return out.CharacterID, nil
}

// ---------------------------------------------------------------------------
// session.GuessValidator

type validateRes struct {
	Correct *bool `json:"correct"`
}

// ValidateGuess asks the server whether a guess is correct for a date. Sent
// once; a transport failure surfaces as an error so the session falls back to
// local comparison.
func (c *Client) ValidateGuess(ctx context.Context, characterID, date string) (*bool, error) {
	var out validateRes
	err := c.do(ctx, http.MethodPost, "/daily/validate",
		map[string]string{"characterId": characterID, "date": date}, &out)
	if err != nil {
		return nil, err
	}
	return out.Correct, nil
}

// ---------------------------------------------------------------------------
// session.Revealer

// RevealTarget discloses the true answer for a date after a defeat.
func (c *Client) RevealTarget(ctx context.Context, date string) (string, error) {
	var out targetRes
	if err := c.do(ctx, http.MethodPost, "/daily/reveal", map[string]string{"date": date}, &out); err != nil {
		return "", err
	}
	return out.CharacterID, nil
}

// ---------------------------------------------------------------------------
// session.AttemptStore

// GetAttempt fetches the durable attempt for a date, or (nil, nil) when the
// user has no record yet.
func (c *Client) GetAttempt(ctx context.Context, date string) (*game.Attempt, error) {
	var out game.Attempt
	err := c.doRetry(ctx, http.MethodGet, "/attempts/"+date, nil, &out)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// PutAttempt upserts the attempt for a date. Conflict key is (user, date);
// last write wins.
func (c *Client) PutAttempt(ctx context.Context, date string, a game.Attempt) error {
	return c.do(ctx, http.MethodPut, "/attempts/"+date, a, nil)
}

// ---------------------------------------------------------------------------
// session.StatsSink

// IncrGamesPlayed bumps the caller's games-played counter by one.
func (c *Client) IncrGamesPlayed(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/stats/played", nil, nil)
}

// IncrWins bumps the caller's win counter by one.
func (c *Client) IncrWins(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/stats/won", nil, nil)
}

// ---------------------------------------------------------------------------
// auth + header stats

type authRes struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Token    string `json:"token"`
}

// Login authenticates and installs the returned bearer token.
func (c *Client) Login(ctx context.Context, username, password string) error {
	var out authRes
	if err := c.do(ctx, http.MethodPost, "/auth/login",
		map[string]string{"username": username, "password": password}, &out); err != nil {
		return err
	}
	c.token = out.Token
	return nil
}

// Signup registers a new account and installs the returned bearer token.
func (c *Client) Signup(ctx context.Context, username, password string) error {
	var out authRes
	if err := c.do(ctx, http.MethodPost, "/auth/signup",
		map[string]string{"username": username, "password": password}, &out); err != nil {
		return err
	}
	c.token = out.Token
	return nil
}

// HeaderStats fetches the aggregate header line (name, wins, rank).
func (c *Client) HeaderStats(ctx context.Context) (localcache.HeaderStats, error) {
	var out localcache.HeaderStats
	err := c.doRetry(ctx, http.MethodGet, "/stats/me", nil, &out)
	return out, err
}
