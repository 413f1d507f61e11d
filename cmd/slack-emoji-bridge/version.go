package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/emojistudio/slack-emoji-bridge/pkg/version"
)

var versionCmd = &cobra.Command{
	Use:         "version",
	Short:       "Print the build version",
	Annotations: map[string]string{"bare": "true"},
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s (commit %s, built %s)\n", version.Version, version.CommitHash, version.BuildTime)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
