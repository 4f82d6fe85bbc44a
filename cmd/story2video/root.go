package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ivlev/story2video/internal/config"
	"github.com/ivlev/story2video/internal/logging"
	"github.com/ivlev/story2video/internal/system"
)

// commandContext holds what every subcommand needs once flags are parsed.
type commandContext struct {
	configFlag   string
	logLevelFlag string
	envFile      string

	cfg      *config.Config
	log      zerolog.Logger
	closeLog func() error
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{log: zerolog.Nop(), closeLog: func() error { return nil }}

	rootCmd := &cobra.Command{
		Use:           "story2video",
		Short:         "Turn a children's story into narrated, illustrated vertical and horizontal videos",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return ctx.load()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return ctx.closeLog()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&ctx.configFlag, "config", "c", "", "Configuration file (.yaml or .toml)")
	rootCmd.PersistentFlags().StringVar(&ctx.logLevelFlag, "log-level", "", "Log level override (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&ctx.envFile, "env-file", ".env", "Environment file loaded before the configuration")

	rootCmd.AddCommand(newRenderCommand(ctx))
	rootCmd.AddCommand(newStoryCommand(ctx))
	rootCmd.AddCommand(newCheckCommand(ctx))

	return rootCmd
}

// load reads .env, the config file and the process environment, in that
// order, then builds the logger.
func (c *commandContext) load() error {
	if c.envFile != "" {
		if err := godotenv.Load(c.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", c.envFile, err)
		}
	}

	cfg, err := config.Load(strings.TrimSpace(c.configFlag))
	if err != nil {
		return err
	}
	config.ApplyEnv(cfg, os.LookupEnv)
	if c.logLevelFlag != "" {
		cfg.Log.Level = c.logLevelFlag
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log, closer, err := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, File: cfg.Log.File})
	if err != nil {
		return err
	}
	c.cfg = cfg
	c.log = log
	c.closeLog = closer

	system.InitResourceLimits(log)
	return nil
}
