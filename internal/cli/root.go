package cli

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/roach88/launchpad/internal/engine"
)

// EnvPrefix prefixes every environment setting: LAUNCHPAD_DB,
// LAUNCHPAD_PLATFORM_ADMIN, ...
const EnvPrefix = "LAUNCHPAD"

// RootOptions holds global settings for all commands. They come from
// flags, LAUNCHPAD_* environment variables or the --config file, in that
// order of precedence.
type RootOptions struct {
	Verbose  bool
	Format   string // "json" | "text"
	Database string
	Config   string
	Platform engine.Platform
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// platform returns the configured platform, or the engine default when
// nothing was configured.
func (o *RootOptions) platform() engine.Platform {
	if o.Platform.Admin == "" {
		return engine.DefaultPlatform()
	}
	return o.Platform
}

// NewRootCommand creates the root command for the launchpad CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "launchpad",
		Short: "Multi-phase token sale campaigns",
		Long: `Run token sale campaigns: subscription, lottery tally, public sale,
settlement, vesting claims and refunds, against a replayable action log.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := loadSettings(v, opts); err != nil {
				return WrapExitError(ExitCommandError, "failed to load settings", err)
			}
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			configureLogging(cmd, opts.Verbose)
			return nil
		},
	}

	// Global flags
	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	flags.StringVar(&opts.Database, "db", "launchpad.db", "path to SQLite database")
	flags.StringVar(&opts.Config, "config", "", "settings file (yaml, json or toml)")
	flags.String("admin", "", "platform admin account")
	flags.String("fee-vault", "", "platform fee vault account")
	flags.StringSlice("currency", nil, "accepted capital currency (repeatable)")
	flags.StringSlice("provider", nil, "liquidity provider (repeatable)")

	for key, flag := range map[string]string{
		"verbose":             "verbose",
		"format":              "format",
		"db":                  "db",
		"platform.admin":      "admin",
		"platform.fee_vault":  "fee-vault",
		"platform.currencies": "currency",
		"platform.providers":  "provider",
	} {
		_ = v.BindPFlag(key, flags.Lookup(flag))
	}

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewExecCommand(opts))
	cmd.AddCommand(NewQueryCommand(opts))
	cmd.AddCommand(NewFulfillCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewInspectCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))

	return cmd
}

// loadSettings resolves opts from flags, environment and the optional
// settings file.
func loadSettings(v *viper.Viper, opts *RootOptions) error {
	def := engine.DefaultPlatform()
	v.SetDefault("platform.admin", def.Admin)
	v.SetDefault("platform.fee_vault", def.FeeVault)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if opts.Config != "" {
		v.SetConfigFile(opts.Config)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read %s: %w", opts.Config, err)
		}
		slog.Debug("settings file loaded", "path", v.ConfigFileUsed())
	}

	opts.Verbose = v.GetBool("verbose")
	opts.Format = v.GetString("format")
	opts.Database = v.GetString("db")
	opts.Platform = engine.Platform{
		Admin:      v.GetString("platform.admin"),
		FeeVault:   v.GetString("platform.fee_vault"),
		Currencies: splitList(v.GetStringSlice("platform.currencies")),
		Providers:  splitList(v.GetStringSlice("platform.providers")),
	}
	return nil
}

// splitList accepts both repeated values and comma-separated ones, as
// environment variables only carry a single string.
func splitList(in []string) []string {
	var out []string
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func configureLogging(cmd *cobra.Command, verbose bool) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
