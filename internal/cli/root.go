// Package cli implements the questcal command line.
package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"questcal/internal/config"
	appLog "questcal/internal/log"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Format     string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the questcal CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "questcal",
		Short:         "Goal schedules, calendar checks and verification plans",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "questcal.yaml", "path to config file")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))
	cmd.AddCommand(NewNormalizeCommand(opts))
	cmd.AddCommand(NewPreviewCommand(opts))
	cmd.AddCommand(NewWeeksCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewVerifyCommand(opts))

	return cmd
}

// loadConfig loads (and on first run creates) the config file, validates
// it and applies its logging settings.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", opts.ConfigPath, err)
	}
	appLog.Configure(appLog.ParseLevel(cfg.LogLevel), cfg.LogFormat)
	return cfg, nil
}

// configOrDefault reads the config file if it exists and falls back to
// defaults otherwise. One-shot commands never create the file.
func configOrDefault(opts *RootOptions) (*config.Config, error) {
	if _, err := os.Stat(opts.ConfigPath); errors.Is(err, fs.ErrNotExist) {
		return config.DefaultConfig(), nil
	}
	return loadConfig(opts)
}
