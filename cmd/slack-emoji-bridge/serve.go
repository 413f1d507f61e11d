package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/emojistudio/slack-emoji-bridge/pkg/clock"
	"github.com/emojistudio/slack-emoji-bridge/pkg/server"
)

var (
	serveTransport string
	serveBrowser   bool
	captureURLs    []string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the emoji tools over MCP",
	Long: `serve exposes the cart, upload, emoji list and Emoji Studio sync as MCP
tools over stdio or SSE. With --browser it also watches Chrome for Slack
sessions while serving.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if serveTransport != "stdio" && serveTransport != "sse" {
			return fmt.Errorf("invalid transport %q, want stdio or sse", serveTransport)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		g, ctx := errgroup.WithContext(ctx)

		bridge.runBackground(ctx, g)
		if serveBrowser {
			if err := bridge.attachBrowser(ctx, g, captureURLs); err != nil {
				return err
			}
		}

		srv := server.NewMCPServer(bridge.handlers(), server.Options{
			Transport: serveTransport,
			APIKey:    cfg.SSEAPIKey,
		}, logger)

		switch serveTransport {
		case "stdio":
			g.Go(func() error {
				defer stop()
				return srv.ServeStdio()
			})
		case "sse":
			addr := net.JoinHostPort(cfg.Host, cfg.Port)
			sse := srv.ServeSSE(addr)
			g.Go(func() error {
				logger.Info("SSE server listening", zap.String("address", addr))
				if err := sse.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
				defer cancel()
				return sse.Shutdown(shutdownCtx)
			})
		}

		return g.Wait()
	},
}

// runBackground starts the pending-request sweep and the periodic Emoji
// Studio sync.
func (a *app) runBackground(ctx context.Context, g *errgroup.Group) {
	g.Go(func() error {
		return a.coordinator.Start(ctx, clock.Real{})
	})
	g.Go(func() error {
		a.syncer.StartAutoSync(ctx, clock.Real{})
		return nil
	})
}

func init() {
	serveCmd.Flags().StringVarP(&serveTransport, "transport", "t", "stdio", "MCP transport: stdio or sse")
	serveCmd.Flags().BoolVar(&serveBrowser, "browser", false, "also watch Chrome for Slack sessions")
	serveCmd.Flags().StringSliceVar(&captureURLs, "open", []string{defaultSlackURL}, "tabs to open when --browser is set")
	rootCmd.AddCommand(serveCmd)
}
