package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds every CLI setting. Each flag can also be provided through a
// CHARADLE_* environment variable (dashes become underscores).
type Config struct {
	// serve
	bind         string
	port         int
	dbPath       string
	uploadsDir   string
	jwtSecret    string
	jwtExpiry    time.Duration
	cookieName   string
	clientOrigin string
	siteURL      string
	production   bool

	// play / seed (client side)
	serverURL string
	username  string
	password  string
	cachePath string
	date      string

	// seed
	rosterFile string
	makeAdmin  string
}

func (c *Config) validate() error {
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.production && c.jwtSecret == "dev_secret_change_me" {
		return errors.New("refusing to run in production with the default JWT secret")
	}
	return nil
}

// defaultCachePath places the play cache under the user cache dir.
func defaultCachePath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "charadle", "cache.json")
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("CHARADLE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "charadle",
		Short:         "A daily character-guessing game: server, player client, and roster tools.",
		SilenceErrors: true,
		SilenceUsage:  true,
		Version:       releaseVersion,
	}

	cmd.AddCommand(newServeCmd(cfg, v))
	cmd.AddCommand(newPlayCmd(cfg, v))
	cmd.AddCommand(newSeedCmd(cfg, v))

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("charadle v{{.Version}}\n")

	return cmd
}

// bindFlags wires a command's flags to CHARADLE_* environment variables via
// viper, so env values act as flag defaults.
func bindFlags(cmd *cobra.Command, v *viper.Viper) {
	fs := cmd.Flags()
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})
	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})
}
