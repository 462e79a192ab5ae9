package main

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/charadle/charadle/internal/httpserver"
)

func newServeCmd(cfg *Config, v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the charadle HTTP server.",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}

			db, err := openDB(cfg.dbPath)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()
			if err := migrate(db); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}

			srv := httpserver.New(db, httpserver.Config{
				JWTSecret:    cfg.jwtSecret,
				JWTExpiry:    cfg.jwtExpiry,
				CookieName:   cfg.cookieName,
				ClientOrigin: cfg.clientOrigin,
				SiteURL:      cfg.siteURL,
				UploadsDir:   cfg.uploadsDir,
				Production:   cfg.production,
			})

			addr := fmt.Sprintf("%s:%d", cfg.bind, cfg.port)
			log.Info().Str("addr", addr).Msg("starting charadle server")
			return srv.Start(addr)
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: CHARADLE_BIND)")
	fs.IntVarP(&cfg.port, "port", "p", 5175, "port to listen on (env: CHARADLE_PORT)")
	fs.StringVar(&cfg.dbPath, "db", "./data/charadle.db", "path to the SQLite database (env: CHARADLE_DB)")
	fs.StringVar(&cfg.uploadsDir, "uploads-dir", "./data/uploads", "directory for uploaded images (env: CHARADLE_UPLOADS_DIR)")
	fs.StringVar(&cfg.jwtSecret, "jwt-secret", "dev_secret_change_me", "HMAC secret for auth tokens (env: CHARADLE_JWT_SECRET)")
	fs.DurationVar(&cfg.jwtExpiry, "jwt-expiry", 14*24*time.Hour, "auth token lifetime (env: CHARADLE_JWT_EXPIRY)")
	fs.StringVar(&cfg.cookieName, "cookie-name", "charadle_token", "auth cookie name (env: CHARADLE_COOKIE_NAME)")
	fs.StringVar(&cfg.clientOrigin, "client-origin", "http://localhost:5173", "allowed CORS origin (env: CHARADLE_CLIENT_ORIGIN)")
	fs.StringVar(&cfg.siteURL, "site-url", "http://localhost:5175", "public URL encoded into the share QR (env: CHARADLE_SITE_URL)")
	fs.BoolVar(&cfg.production, "production", false, "enable production cookie security (env: CHARADLE_PRODUCTION)")
	bindFlags(cmd, v)

	return cmd
}
