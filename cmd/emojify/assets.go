package main

import (
	"fmt"

	cli "github.com/spf13/cobra"

	"github.com/smegmarip/stash-emojify-plugin/internal/assets"
)

func newAssetsCmd() *cli.Command {
	assetsCmd := &cli.Command{
		Use:   "assets",
		Short: "Manage emoji images",
	}

	exportCmd := &cli.Command{
		Use:   "export <dir>",
		Short: "Write the built-in emoji as PNG files to use as a starting point for custom assets",
		Args:  cli.ExactArgs(1),
		RunE: func(cmd *cli.Command, args []string) error {
			size, _ := cmd.Flags().GetInt("size")
			if err := assets.ExportBuiltIn(args[0], size); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported built-in emoji to %s\n", args[0])
			return nil
		},
	}
	exportCmd.Flags().Int("size", assets.DefaultSize, "Edge length of the exported images in pixels.")

	assetsCmd.AddCommand(exportCmd)
	return assetsCmd
}
