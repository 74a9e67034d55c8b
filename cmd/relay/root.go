package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/bitop-dev/relay/pkg/config"
)

// rootOptions is shared by every subcommand. cfg and log are set before a
// subcommand runs.
type rootOptions struct {
	configFlag string
	verbose    bool

	configPath string // file actually loaded, "" when environment only
	cfg        *config.Config
	log        *zap.Logger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "relay",
		Short: "Chat bridge between LINE, Gemini and a local coding tool",
		Long: `relay receives chat messages, runs "!"-prefixed shell commands in a
per-user working directory, and otherwise asks the model, which may hand a
single instruction to the coding tool. Tool output is sent back to the chat.`,
		SilenceUsage: true,
		// main prints the error.
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return opts.init()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if opts.log != nil {
				_ = opts.log.Sync()
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.configFlag, "config", "", "path to config file (default "+config.DefaultPath()+" if present)")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(
		newServeCmd(opts),
		newChatCmd(opts),
		newHistoryCmd(opts),
		newVersionCmd(),
	)
	return rootCmd
}

func (o *rootOptions) init() error {
	o.configPath = config.Locate(o.configFlag)
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	o.cfg = cfg

	log, err := newLogger(cfg.Log, o.verbose)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	o.log = log
	return nil
}

func newLogger(lc config.LogConfig, verbose bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if lc.Development {
		zc = zap.NewDevelopmentConfig()
	}
	level, err := zapcore.ParseLevel(lc.Level)
	if err != nil {
		return nil, err
	}
	if verbose {
		level = zapcore.DebugLevel
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
