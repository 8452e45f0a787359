package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/roach88/ordinal/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigFile string
	DB         string
	Metrics    bool // print Prometheus metrics to stderr after the command

	// viper carries flag bindings set up by NewRootCommand. Commands built
	// on their own (tests) fall back to a fresh instance.
	viper *viper.Viper
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the ordinal CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{viper: config.New()}

	cmd := &cobra.Command{
		Use:   "ordinal",
		Short: "ordinal - ordered position reconciliation",
		Long: `Reorder items within a group while keeping positions unique and dense.

Every reorder stages changed items above the group's highest position, then
commits them to their final slots, so a UNIQUE(group, position) constraint
holds at every instant.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	flags.StringVar(&opts.ConfigFile, "config", "", "path to YAML config file")
	flags.StringVar(&opts.DB, "db", "", "path to SQLite database (default ordinal.db)")
	flags.BoolVar(&opts.Metrics, "metrics", false, "print metrics to stderr after the command")
	_ = opts.viper.BindPFlag("db", flags.Lookup("db"))

	cmd.AddCommand(NewSeedCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewReorderCommand(opts))
	cmd.AddCommand(NewPermuteCommand(opts))
	cmd.AddCommand(NewCompactCommand(opts))
	cmd.AddCommand(NewDeleteCommand(opts))
	cmd.AddCommand(NewResyncCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewTraceCommand(opts))

	return cmd
}

// loadConfig resolves the effective configuration from defaults, the config
// file, ORDINAL_* variables and flags.
func (o *RootOptions) loadConfig() (config.Config, error) {
	v := o.viper
	if v == nil {
		v = config.New()
		if o.DB != "" {
			v.Set("db", o.DB)
		}
	}
	cfg, err := config.Load(v, o.ConfigFile)
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "load config", err)
	}
	if o.Verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
