package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Open Chrome and capture the Slack session as you browse",
	Long: `capture opens Slack in Chrome and watches its API traffic for the token and
session cookie. Sign in if asked; the session is stored as soon as Slack loads
its emoji or client data. Emoji Studio tabs opened in the same browser can
talk to the bridge. Press Ctrl-C to stop.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		g, ctx := errgroup.WithContext(ctx)

		bridge.runBackground(ctx, g)
		if err := bridge.attachBrowser(ctx, g, captureURLs); err != nil {
			return err
		}
		logger.Info("Watching Chrome for Slack sessions", zap.Strings("tabs", captureURLs))
		return g.Wait()
	},
}

func init() {
	captureCmd.Flags().StringSliceVar(&captureURLs, "open", []string{defaultSlackURL}, "tabs to open")
	rootCmd.AddCommand(captureCmd)
}
