package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/charadle/charadle/internal/catalog"
)

func newSeedCmd(cfg *Config, v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load a character roster into the database, or grant admin rights.",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&cfg.dbPath, "db", "./data/charadle.db", "path to the SQLite database (env: CHARADLE_DB)")
	fs.StringVarP(&cfg.rosterFile, "roster", "r", "", "JSON roster file to import (env: CHARADLE_ROSTER)")
	fs.StringVar(&cfg.makeAdmin, "make-admin", "", "username to promote to admin (env: CHARADLE_MAKE_ADMIN)")
	bindFlags(cmd, v)

	return cmd
}

func runSeed(ctx context.Context, cfg *Config) error {
	if cfg.rosterFile == "" && cfg.makeAdmin == "" {
		return fmt.Errorf("nothing to do: pass --roster and/or --make-admin")
	}

	db, err := openDB(cfg.dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if err := migrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	if cfg.makeAdmin != "" {
		res, err := db.ExecContext(ctx, `UPDATE users SET is_admin=1 WHERE lower(username)=lower(?)`, cfg.makeAdmin)
		if err != nil {
			return fmt.Errorf("promote %s: %w", cfg.makeAdmin, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("no such user: %s", cfg.makeAdmin)
		}
		log.Info().Str("user", cfg.makeAdmin).Msg("granted admin")
	}

	if cfg.rosterFile == "" {
		return nil
	}

	data, err := os.ReadFile(cfg.rosterFile)
	if err != nil {
		return fmt.Errorf("read roster: %w", err)
	}
	var roster []catalog.CharacterInput
	if err := json.Unmarshal(data, &roster); err != nil {
		return fmt.Errorf("parse roster: %w", err)
	}

	store := catalog.NewStore(db)
	inserted := 0
	for _, in := range roster {
		if _, err := store.CreateCharacter(ctx, in); err != nil {
			// UNIQUE name collisions mean the character is already seeded.
			if strings.Contains(err.Error(), "UNIQUE") {
				log.Debug().Str("name", in.Name).Msg("already seeded, skipping")
				continue
			}
			return fmt.Errorf("seed %q: %w", in.Name, err)
		}
		inserted++
	}
	log.Info().Int("inserted", inserted).Int("total", len(roster)).Msg("roster seeded")
	return nil
}
