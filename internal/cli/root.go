package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/tapline/internal/config"
	"github.com/roach88/tapline/internal/migrate"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigFile string

	// Environ and DotEnv replace the process environment and the .env
	// path when loading configuration (tests).
	Environ map[string]string
	DotEnv  string

	// Now overrides the clock used for stored timestamps (tests).
	Now func() time.Time

	// Populated by the root command before any subcommand runs.
	Config *config.Config
	Logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the tapline CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tapline",
		Short: "tapline - input activity recorder",
		Long: `Record keyboard, pointer and scroll activity into a local SQLite database.

Configuration comes from an optional YAML file (--config), a .env file in
the working directory and TAPLINE_* environment variables, in that order.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			cfg, err := config.Load(config.LoadOptions{
				File:    opts.ConfigFile,
				DotEnv:  opts.DotEnv,
				Environ: opts.Environ,
			})
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load configuration", err)
			}
			logger, err := newLogger(cfg, opts.Verbose, cmd.ErrOrStderr())
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to configure logging", err)
			}
			opts.Config = cfg
			opts.Logger = logger
			slog.SetDefault(logger)
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "path to a YAML config file")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewStatsCommand(opts))

	return cmd
}

// Execute runs the root command against the process arguments, reports any
// error in the selected format and returns the process exit code.
func Execute() int {
	opts := &RootOptions{}
	cmd := newRootCommand(opts)
	err := cmd.Execute()
	if err != nil {
		reportError(cmd, opts, err)
	}
	return GetExitCode(err)
}

// reportError writes err to stderr, or to stdout as a JSON response when
// --format json is in effect.
func reportError(cmd *cobra.Command, opts *RootOptions, err error) {
	f := &OutputFormatter{Format: "text", Writer: cmd.ErrOrStderr(), Verbose: opts.Verbose}
	if opts.Format == "json" {
		f.Format = "json"
		f.Writer = cmd.OutOrStdout()
	}

	var details any
	if code := migrate.Code(err); code != "" {
		details = map[string]string{"migration_code": string(code)}
	}
	_ = f.Error(errorCode(err), err.Error(), details)
}

// newLogger builds the handler named by the configuration on w.
// --verbose forces debug level.
func newLogger(cfg *config.Config, verbose bool, w io.Writer) (*slog.Logger, error) {
	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	if verbose {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch cfg.LogFormat {
	case "json":
		handler = slog.NewJSONHandler(w, handlerOpts)
	default:
		handler = slog.NewTextHandler(w, handlerOpts)
	}
	return slog.New(handler), nil
}

func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

func (o *RootOptions) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}
