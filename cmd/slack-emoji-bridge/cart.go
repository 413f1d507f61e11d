package main

import (
	"github.com/spf13/cobra"
)

var (
	cartWorkspace string
	cartName      string
)

var cartCmd = &cobra.Command{
	Use:   "cart",
	Short: "Manage the emoji waiting to be uploaded",
}

var cartListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the cart",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		h := bridge.handlers().Cart
		return runTool(cmd.Context(), cmd.OutOrStdout(), "cart_list", h.ListHandler, nil)
	},
}

var cartAddCmd = &cobra.Command{
	Use:   "add <url>",
	Short: "Add an image URL to the cart",
	Long: `add queues an image for upload. The emoji name defaults to the file name in
the URL; the image itself is fetched when the cart is uploaded.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		h := bridge.handlers().Cart
		return runTool(cmd.Context(), cmd.OutOrStdout(), "cart_add", h.AddHandler, map[string]any{
			"url":       args[0],
			"name":      cartName,
			"workspace": cartWorkspace,
		})
	},
}

var cartAddFileCmd = &cobra.Command{
	Use:   "add-file <path>",
	Short: "Add a local image file to the cart",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		h := bridge.handlers().Cart
		return runTool(cmd.Context(), cmd.OutOrStdout(), "cart_add_file", h.AddFileHandler, map[string]any{
			"path":      args[0],
			"workspace": cartWorkspace,
		})
	},
}

var cartRemoveCmd = &cobra.Command{
	Use:     "remove <name>",
	Aliases: []string{"rm"},
	Short:   "Remove an emoji from the cart",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		h := bridge.handlers().Cart
		return runTool(cmd.Context(), cmd.OutOrStdout(), "cart_remove", h.RemoveHandler, map[string]any{
			"name":      args[0],
			"workspace": cartWorkspace,
		})
	},
}

var cartRenameCmd = &cobra.Command{
	Use:   "rename <name> <new-name>",
	Short: "Rename an emoji in the cart",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		h := bridge.handlers().Cart
		return runTool(cmd.Context(), cmd.OutOrStdout(), "cart_rename", h.RenameHandler, map[string]any{
			"name":      args[0],
			"new_name":  args[1],
			"workspace": cartWorkspace,
		})
	},
}

var cartClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Empty the cart",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		h := bridge.handlers().Cart
		return runTool(cmd.Context(), cmd.OutOrStdout(), "cart_clear", h.ClearHandler, nil)
	},
}

func init() {
	for _, c := range []*cobra.Command{cartAddCmd, cartAddFileCmd, cartRemoveCmd, cartRenameCmd} {
		c.Flags().StringVarP(&cartWorkspace, "workspace", "w", "", "workspace of the item (defaults to the connected workspace)")
	}
	cartAddCmd.Flags().StringVarP(&cartName, "name", "n", "", "emoji name")

	cartCmd.AddCommand(cartListCmd, cartAddCmd, cartAddFileCmd, cartRemoveCmd, cartRenameCmd, cartClearCmd)
	rootCmd.AddCommand(cartCmd)
}
