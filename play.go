package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/charadle/charadle/internal/apiclient"
	"github.com/charadle/charadle/internal/game"
	"github.com/charadle/charadle/internal/localcache"
	"github.com/charadle/charadle/internal/puzzle"
	"github.com/charadle/charadle/internal/session"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	dimStyle   = lipgloss.NewStyle().Faint(true)
	hitStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("42")).Padding(0, 1)
	missStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("203")).Padding(0, 1)
	wonStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	lostStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203"))
)

func newPlayCmd(cfg *Config, v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play the daily puzzle from the terminal.",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&cfg.serverURL, "server", "s", "http://localhost:5175", "charadle server URL (env: CHARADLE_SERVER)")
	fs.StringVarP(&cfg.username, "username", "u", "", "account username; empty plays anonymously (env: CHARADLE_USERNAME)")
	fs.StringVar(&cfg.password, "password", "", "account password (env: CHARADLE_PASSWORD)")
	fs.StringVar(&cfg.cachePath, "cache", defaultCachePath(), "local cache file (env: CHARADLE_CACHE)")
	fs.StringVarP(&cfg.date, "date", "d", "", "puzzle date YYYY-MM-DD; defaults to today (env: CHARADLE_DATE)")
	bindFlags(cmd, v)

	return cmd
}

func runPlay(ctx context.Context, cfg *Config) error {
	client := apiclient.New(cfg.serverURL, log.Logger)

	authed := false
	if cfg.username != "" {
		if err := client.Login(ctx, cfg.username, cfg.password); err != nil {
			return fmt.Errorf("login: %w", err)
		}
		authed = true
	}

	cache, err := localcache.Open(cfg.cachePath)
	if err != nil {
		log.Warn().Err(err).Msg("open cache, continuing without")
		cache, _ = localcache.Open("")
	}

	backend := session.Backend{
		Catalog:   client,
		Resolver:  client,
		Validator: client,
		Revealer:  client,
	}
	if authed {
		backend.Attempts = client
		backend.Stats = client
	}
	sess := session.New(backend, session.Options{Cache: cache, Logger: log.Logger})

	if authed {
		printHeaderStats(ctx, client, cache)
	}

	// Render any cached progress immediately while the authoritative load
	// runs; Load's commit replaces it.
	date := cfg.date
	if date == "" {
		date = puzzle.DateKey(time.Now())
	}
	if snap, ok := sess.Peek(date); ok {
		fmt.Println(dimStyle.Render(fmt.Sprintf("cached: %d guesses, %d lives (syncing...)",
			len(snap.Attempt.Guesses), snap.Attempt.Lives)))
	}

	snap, err := sess.Load(ctx, date)
	if err != nil {
		var nf *puzzle.NotFoundError
		if errors.As(err, &nf) {
			fmt.Println("No puzzle available for", date)
			return nil
		}
		return err
	}

	fmt.Println(titleStyle.Render("charadle " + snap.Date))
	fmt.Printf("%d lives. Guess the character of the day. Type a name, or \"quit\".\n", snap.Attempt.Lives)
	if snap.Attempt.Over() {
		printOutcome(snap.State)
		return nil
	}

	sc := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !sc.Scan() {
			return sc.Err()
		}
		token := strings.TrimSpace(sc.Text())
		if token == "" {
			continue
		}
		if token == "quit" || token == "exit" {
			return nil
		}

		res, err := sess.Submit(ctx, token)
		if err != nil {
			return err
		}
		if res.Ignored {
			printOutcome(res.State)
			return nil
		}
		if !res.Matched {
			fmt.Println(dimStyle.Render("no such character"))
			continue
		}

		printFeedback(res)
		if res.Attempt.Over() {
			printOutcome(res.State)
			if res.Revealed != nil {
				fmt.Println("The answer was:", titleStyle.Render(res.Revealed.Name))
			} else if res.RevealedID != "" {
				fmt.Println("The answer was character", res.RevealedID)
			}
			return nil
		}
		fmt.Printf("%d lives left\n", res.Attempt.Lives)
	}
}

// printFeedback renders the per-attribute comparison for one guess.
func printFeedback(res session.Result) {
	fb := res.Feedback
	cell := func(label string, match bool) string {
		if match {
			return hitStyle.Render(label)
		}
		return missStyle.Render(label)
	}
	rows := []string{
		cell(res.Guess.Name, fb.Correct),
		cell(fmt.Sprintf("state: %s", orDash(res.Guess.State.Name)), fb.State),
		cell(fmt.Sprintf("age: %d", res.Guess.Age), fb.Age),
	}
	fmt.Println(lipgloss.JoinHorizontal(lipgloss.Top, interleave(rows)...))
	printItems("classes", fb.Classes)
	printItems("races", fb.Races)
	printItems("occupations", fb.Occupations)
	printItems("associations", fb.Associations)
	printItems("places", fb.Places)
}

func printItems(label string, items []game.ItemMatch) {
	if len(items) == 0 {
		return
	}
	cells := make([]string, 0, len(items)*2)
	for _, it := range items {
		style := missStyle
		if it.Match {
			style = hitStyle
		}
		cells = append(cells, style.Render(it.Name), " ")
	}
	fmt.Println(dimStyle.Render(label+":"), lipgloss.JoinHorizontal(lipgloss.Top, cells...))
}

func printOutcome(state game.State) {
	switch state {
	case game.StateWon:
		fmt.Println(wonStyle.Render("You won!"))
	case game.StateFoundNotWon:
		fmt.Println(wonStyle.Render("Found it! Past puzzles don't count as wins."))
	case game.StateLost:
		fmt.Println(lostStyle.Render("Out of lives."))
	}
}

// printHeaderStats shows the cached header line immediately (flagged when
// stale), then refreshes it from the server.
func printHeaderStats(ctx context.Context, client *apiclient.Client, cache *localcache.Cache) {
	var hs localcache.HeaderStats
	if ok, stale := cache.GetStale(localcache.HeaderStatsKey, &hs); ok {
		suffix := ""
		if stale {
			suffix = dimStyle.Render(" (stale)")
		}
		fmt.Printf("%s | %d wins, rank #%d%s\n", hs.Name, hs.Wins, hs.Rank, suffix)
		if !stale {
			return
		}
	}
	fresh, err := client.HeaderStats(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("refresh header stats")
		return
	}
	if err := cache.Set(localcache.HeaderStatsKey, fresh, localcache.HeaderStatsTTL); err != nil {
		log.Debug().Err(err).Msg("cache header stats")
	}
	fmt.Printf("%s | %d wins, rank #%d\n", fresh.Name, fresh.Wins, fresh.Rank)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func interleave(cells []string) []string {
	out := make([]string, 0, len(cells)*2)
	for _, c := range cells {
		out = append(out, c, " ")
	}
	return out
}
