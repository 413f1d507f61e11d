package main

import (
	"github.com/spf13/cobra"
)

var (
	emojiQuery  string
	emojiType   string
	emojiLimit  int
	emojiCursor string

	syncAutoSync bool
	syncInterval int
)

var emojiCmd = &cobra.Command{
	Use:   "emoji",
	Short: "List the connected workspace's emoji",
	Long: `emoji prints the workspace emoji list as CSV. Run sync first to load it
from Slack; later runs read the local cache.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		h := bridge.handlers().Emoji
		args := map[string]any{
			"query":  emojiQuery,
			"type":   emojiType,
			"limit":  emojiLimit,
			"cursor": emojiCursor,
		}
		return runTool(cmd.Context(), cmd.OutOrStdout(), "list_emojis", h.EmojiListHandler, args)
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Refresh the emoji list and send it to Emoji Studio",
	Long: `sync reloads the workspace emoji list from Slack and stores it for Emoji
Studio. Open Emoji Studio tabs in a capture session receive it immediately.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		h := bridge.handlers().Studio
		return runTool(cmd.Context(), cmd.OutOrStdout(), "sync_emoji_studio", h.SyncHandler, nil)
	},
}

var syncSettingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change automatic sync",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		args := map[string]any{}
		if cmd.Flags().Changed("auto") {
			args["auto_sync"] = syncAutoSync
		}
		if cmd.Flags().Changed("interval") {
			args["interval_minutes"] = syncInterval
		}
		h := bridge.handlers().Studio
		return runTool(cmd.Context(), cmd.OutOrStdout(), "sync_settings", h.SettingsHandler, args)
	},
}

func init() {
	emojiCmd.Flags().StringVarP(&emojiQuery, "query", "q", "", "only emoji whose name or alias contains this text")
	emojiCmd.Flags().StringVar(&emojiType, "type", "custom", "all, custom or unicode")
	emojiCmd.Flags().IntVar(&emojiLimit, "limit", 100, "maximum rows to print")
	emojiCmd.Flags().StringVar(&emojiCursor, "cursor", "", "cursor from a previous page")

	syncSettingsCmd.Flags().BoolVar(&syncAutoSync, "auto", true, "enable automatic sync")
	syncSettingsCmd.Flags().IntVar(&syncInterval, "interval", 0, "minutes between automatic syncs")
	syncCmd.AddCommand(syncSettingsCmd)

	rootCmd.AddCommand(emojiCmd, syncCmd)
}
