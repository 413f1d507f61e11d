package main

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/emojistudio/slack-emoji-bridge/pkg/config"
)

var (
	envFile  string
	logLevel string
	dbPath   string

	cfg    *config.Config
	logger *zap.Logger
	bridge *app
)

var rootCmd = &cobra.Command{
	Use:   "slack-emoji-bridge",
	Short: "Capture a Slack session and upload custom emoji",
	Long: `slack-emoji-bridge watches a Chrome session for the Slack credentials the
web client already uses, keeps a cart of emoji to add, and uploads them to the
connected workspace. It also syncs the workspace emoji list to Emoji Studio
and serves the same operations as MCP tools.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Annotations["bare"] == "true" {
			return nil
		}

		var err error
		if cfg, err = config.Load(envFile); err != nil {
			return err
		}
		if logLevel != "" {
			cfg.LogLevel = logLevel
		}
		if dbPath != "" {
			cfg.DBPath = dbPath
		}
		if logger, err = newLogger(cfg.LogLevel); err != nil {
			return err
		}
		if bridge, err = newApp(cfg, logger); err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if bridge != nil {
			if err := bridge.Close(); err != nil {
				logger.Warn("Failed to close storage", zap.Error(err))
			}
		}
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newLogger writes to stderr so stdout stays free for the stdio transport.
func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", level, err)
	}

	var zc zap.Config
	if isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()) {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		zc = zap.NewProductionConfig()
		zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}

	return zc.Build()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file with EMOJI_BRIDGE_* settings")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error); overrides EMOJI_BRIDGE_LOG_LEVEL")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "path of the local database; overrides EMOJI_BRIDGE_DB")
}
