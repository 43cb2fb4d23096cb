package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/wcq/internal/config"
	"github.com/roach88/wcq/internal/logging"
	"github.com/roach88/wcq/internal/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
	Database   string // overrides the configured database

	// Resolved by setup.
	Config *config.Config
	Logger *slog.Logger

	// StoreOptions are passed to store.Open (for testing).
	StoreOptions []store.Option
}

// Version is set at build time with -ldflags "-X ...cli.Version=...".
var Version = "dev"

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the wcq CLI.
func NewRootCommand() *cobra.Command {
	cmd, _ := newRootCommand()
	return cmd
}

func newRootCommand() (*cobra.Command, *RootOptions) {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "wcq",
		Short: "wcq - working-copy post-commit finalization",
		Long: `wcq keeps working-copy metadata in a SQLite store and finalizes it
after a commit: property changes, lock and changelist removal, and new
pristine checksums, applied path by path from a commit manifest.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup(cmd)
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to YAML config file")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides config)")

	cmd.AddCommand(NewEnsureAdmCommand(opts))
	cmd.AddCommand(NewTrackCommand(opts))
	cmd.AddCommand(NewFinalizeCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewReportCommand(opts))
	cmd.AddCommand(NewIgnoreCommand(opts))
	cmd.AddCommand(NewCleanupCommand(opts))
	cmd.AddCommand(NewRunsCommand(opts))

	return cmd, opts
}

// Execute runs the wcq command line and returns the process exit code.
// Errors are printed in the selected format: JSON envelopes go to stdout,
// text errors to stderr.
func Execute(args []string, stdout, stderr io.Writer) int {
	cmd, opts := newRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.Execute()
	if err == nil {
		return ExitSuccess
	}

	var exitErr *ExitError
	if !errors.As(err, &exitErr) || !exitErr.Reported {
		f := &OutputFormatter{Format: "text", Writer: stderr, Verbose: opts.Verbose}
		if opts.Format == "json" {
			f.Format, f.Writer = "json", stdout
		}
		_ = f.Error(ErrorCode(err), err.Error(), nil)
	}
	return GetExitCode(err)
}

// setup validates global flags and resolves config and logger. Commands
// call it too, so they work when built without the root command.
func (o *RootOptions) setup(cmd *cobra.Command) error {
	if o.Format == "" {
		o.Format = "text"
	}
	if !isValidFormat(o.Format) {
		return WrapExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", o.Format, ValidFormats), errConfig)
	}

	if o.Config == nil {
		cfg := config.Default()
		if o.ConfigPath != "" {
			var err error
			if cfg, err = config.Load(o.ConfigPath); err != nil {
				return WrapExitError(ExitCommandError, "failed to load config", fmt.Errorf("%w: %w", errConfig, err))
			}
		}
		o.Config = cfg
	}
	if o.Database != "" {
		o.Config.Database = o.Database
	}

	if o.Logger == nil {
		level := o.Config.Log.Level
		if o.Verbose {
			level = "debug"
		}
		logger, err := logging.New(cmd.ErrOrStderr(), logging.Options{
			Level:  level,
			Format: o.Config.Log.Format,
			Prefix: "wcq",
		})
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to configure logging", fmt.Errorf("%w: %w", errConfig, err))
		}
		o.Logger = logger
	}
	return nil
}

// openStore opens the configured database, creating its directory.
func (o *RootOptions) openStore() (*store.Store, error) {
	path := o.Config.Database
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to create database directory", err)
		}
	}
	st, err := store.Open(path, o.StoreOptions...)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

func (o *RootOptions) closeStore(st *store.Store) {
	if err := st.Close(); err != nil {
		o.Logger.Error("error closing database", "error", err)
	}
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
