package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/emojistudio/slack-emoji-bridge/pkg/credential"
)

var importNoVerify bool

var importCurlCmd = &cobra.Command{
	Use:   "import-curl [command|-]",
	Short: "Store the Slack session from a copied cURL command",
	Long: `import-curl reads a "Copy as cURL" command of any Slack web-client API
request, from the argument or from stdin, and stores its token and session
cookie as the connected workspace. The session is checked with auth.test first
unless --no-verify is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var command string
		if len(args) == 0 || args[0] == "-" {
			b, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("read stdin: %w", err)
			}
			command = string(b)
		} else {
			command = args[0]
		}
		if strings.TrimSpace(command) == "" {
			return errors.New("no curl command given")
		}

		rec, err := credential.FromCurl(command)
		if err != nil {
			return err
		}
		if !importNoVerify {
			resp, err := bridge.inventory.AuthTest(cmd.Context(), rec)
			if err != nil {
				return fmt.Errorf("session rejected by Slack: %w", err)
			}
			if rec.TeamID == "" {
				rec.TeamID = resp.TeamID
			}
			logger.Debug("Session verified", zap.String("user", resp.User), zap.String("team", resp.Team))
		}

		res, err := bridge.coordinator.Commit(rec)
		if err != nil {
			return err
		}
		if !res.Accepted {
			fmt.Fprintf(cmd.OutOrStdout(), "Session for %s is already stored.\n", rec.Workspace)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Connected to %s.\n", rec.Workspace)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the connected workspace",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		h := bridge.handlers().Auth
		return runTool(cmd.Context(), cmd.OutOrStdout(), "credential_status", h.CredentialStatusHandler, nil)
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Check the stored session with auth.test",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		h := bridge.handlers().Auth
		return runTool(cmd.Context(), cmd.OutOrStdout(), "get_current_user", h.GetCurrentUserHandler, nil)
	},
}

var disconnectCmd = &cobra.Command{
	Use:   "disconnect",
	Short: "Forget the Slack session and everything synced from it",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		h := bridge.handlers().Auth
		return runTool(cmd.Context(), cmd.OutOrStdout(), "disconnect", h.DisconnectHandler, nil)
	},
}

func init() {
	importCurlCmd.Flags().BoolVar(&importNoVerify, "no-verify", false, "store the session without calling auth.test")
	rootCmd.AddCommand(importCurlCmd, statusCmd, whoamiCmd, disconnectCmd)
}
