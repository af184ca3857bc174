// Package cli implements the gym command line: the HTTP server and the
// maintenance commands that share its configuration.
package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/labstack/gommon/log"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	EnvFile  string
	LogLevel string
}

// ValidLogLevels defines the accepted --log-level values.
var ValidLogLevels = []string{"debug", "info", "warn", "error"}

// NewRootCommand creates the root command of the gym CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "gym",
		Short: "Gym management back end",
		Long:  "Serves the gym management API and runs its maintenance tasks.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if _, ok := parseLevel(opts.LogLevel); !ok {
				return fmt.Errorf("invalid log level %q: must be one of %v", opts.LogLevel, ValidLogLevels)
			}
			if opts.EnvFile == "" {
				return nil
			}
			// A missing file is fine; the environment may be set directly.
			if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("load %s: %w", opts.EnvFile, err)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "dotenv file to load before reading configuration")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "info", "log level (debug|info|warn|error)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewConsumeCommand(opts))
	cmd.AddCommand(NewExpireCommand(opts))
	cmd.AddCommand(NewCreateAdminCommand(opts))

	return cmd
}

func parseLevel(s string) (log.Lvl, bool) {
	switch strings.ToLower(s) {
	case "debug":
		return log.DEBUG, true
	case "info":
		return log.INFO, true
	case "warn":
		return log.WARN, true
	case "error":
		return log.ERROR, true
	}
	return 0, false
}

// newLogger returns the application logger at the level of opts.
func newLogger(opts *RootOptions) *log.Logger {
	l := log.New("gym")
	l.SetHeader("${time_rfc3339} ${level} ${prefix}")
	lvl, _ := parseLevel(opts.LogLevel)
	l.SetLevel(lvl)
	return l
}
