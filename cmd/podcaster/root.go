package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/unalkalkan/podcaster/internal/app"
	"github.com/unalkalkan/podcaster/internal/config"
	"github.com/unalkalkan/podcaster/internal/logger"
	"github.com/unalkalkan/podcaster/pkg/types"
)

type globalOptions struct {
	configPath string
	envFile    string
	logLevel   string
	logFormat  string
}

func execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:          "podcaster",
		Short:        "Turn documents into two-host podcast episodes",
		Version:      app.Version,
		SilenceUsage: true,
	}
	cmd.SetVersionTemplate("{{.Version}}\n")

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "Path to configuration file")
	flags.StringVar(&opts.envFile, "env-file", ".env", "Path to a dotenv file with provider credentials")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flags.StringVar(&opts.logFormat, "log-format", "", "Log format (pretty or json)")

	cmd.AddCommand(
		newGenerateCmd(opts),
		newProvidersCmd(opts),
		newProfilesCmd(opts),
	)
	return cmd
}

// loadConfig reads the dotenv file and the configuration, then installs the
// logger on the command's error stream
func loadConfig(cmd *cobra.Command, opts *globalOptions) (*types.Config, error) {
	if err := godotenv.Load(opts.envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", opts.envFile, err)
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	if opts.logFormat != "" {
		cfg.Logging.Format = opts.logFormat
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format, cmd.ErrOrStderr())
	return cfg, nil
}
