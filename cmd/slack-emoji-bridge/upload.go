package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/emojistudio/slack-emoji-bridge/pkg/cart"
	"github.com/emojistudio/slack-emoji-bridge/pkg/uploader"
)

var uploadName string

var uploadCmd = &cobra.Command{
	Use:   "upload [url]",
	Short: "Upload the cart, or a single image, to the connected workspace",
	Long: `Without arguments upload sends every cart item to Slack, half a second
apart, and removes the ones that were added. It stops early if Slack reports
the session expired. With a URL it uploads that one image.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rec, err := bridge.resident()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		if len(args) == 1 {
			item := cart.Item{Name: uploadName, Workspace: rec.Workspace, URL: args[0]}
			if item.Name == "" {
				return errors.New("--name is required when uploading a single image")
			}
			o, err := bridge.uploader.Upload(cmd.Context(), rec, item)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, ":%s: %s %s\n", o.Name, o.Kind, o.Message)
			if !o.Success() {
				return fmt.Errorf("upload of %q failed", o.Name)
			}
			return nil
		}

		items, err := bridge.cart.List(cmd.Context())
		if err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Fprintln(out, "Cart is empty.")
			return nil
		}

		results, err := bridge.uploader.DrainCart(cmd.Context(), rec, bridge.cart, func(i int, r uploader.Result) {
			printResult(out, i, len(items), r)
		})
		summary := uploader.Summary(results)
		fmt.Fprintf(out, "%d added, %d rejected, %d network errors",
			summary[uploader.KindSuccess], summary[uploader.KindRejected], summary[uploader.KindNetworkError])
		if n := len(items) - len(results); n > 0 {
			fmt.Fprintf(out, ", %d not attempted", n)
		}
		fmt.Fprintln(out)

		if summary[uploader.KindAuthExpired] > 0 {
			return errors.New("slack session expired: run capture again, then retry the upload")
		}
		return err
	},
}

func printResult(out io.Writer, i, total int, r uploader.Result) {
	size := ""
	if r.Item.FileSize > 0 {
		size = " (" + humanize.IBytes(uint64(r.Item.FileSize)) + ")"
	}
	msg := r.Outcome.Message
	if r.Err != nil {
		msg = r.Err.Error()
	}
	fmt.Fprintf(out, "[%d/%d] :%s:%s %s %s\n", i+1, total, r.Item.Name, size, r.Outcome.Kind, msg)
}

func init() {
	uploadCmd.Flags().StringVarP(&uploadName, "name", "n", "", "emoji name when uploading a single image")
	rootCmd.AddCommand(uploadCmd)
}
