package cli

import (
	"context"
	"fmt"
	"os"

	"sofia/internal/config"
	applog "sofia/internal/log"

	"github.com/spf13/cobra"
)

// app is the state shared by every subcommand once the root has loaded
// configuration.
type app struct {
	configDir string
	dbPath    string
	logLevel  string
	logFormat string

	cfg    *config.Config
	logger *applog.Logger
}

// NewRootCommand assembles the sofia command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "sofia",
		Short:         "Shared college expenses for Sofia",
		Long:          `Track, split and export the college expenses Leslie and Ian pay for Sofia.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configDir, "config-dir", ".", "directory holding an optional config.yml")
	flags.StringVar(&a.dbPath, "db", "", "SQLite database path (overrides SQLITE_DB_PATH)")
	flags.StringVar(&a.logLevel, "log-level", "", "debug, info, warn or error (overrides LOG_LEVEL)")
	flags.StringVar(&a.logFormat, "log-format", "", "text, json or pretty (overrides LOG_FORMAT)")

	root.AddCommand(
		newServeCommand(a),
		newWorkerCommand(a),
		newMigrateCommand(a),
		newExportCommand(a),
		newRemindCommand(a),
		newSyncCommand(a),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	LoadEnvFile()
	flags := cmd.Flags()
	cfg, err := LoadAndValidateConfig(a.configDir, func(c *config.Config) {
		if flags.Changed("db") {
			c.SQLiteDBPath = a.dbPath
		}
		if flags.Changed("log-level") {
			c.LogLevel = a.logLevel
		}
		if flags.Changed("log-format") {
			c.LogFormat = a.logFormat
		}
		if p := cmd.Flags().Lookup("port"); p != nil && p.Changed {
			c.Port = p.Value.String()
		}
	})
	if err != nil {
		return err
	}
	a.cfg = cfg
	// Logs go to stderr so commands can stream data on stdout.
	a.logger = SetupLogger(cfg, cmd.ErrOrStderr())
	return nil
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := NewRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
