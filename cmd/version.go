package cmd

import (
	"github.com/latchhq/latch/pkg/buildinfo"
	"github.com/spf13/cobra"
)

func newVersionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show the latch version",
		Run: func(cmd *cobra.Command, _ []string) {
			extended, _ := cmd.Flags().GetBool("extended")
			cmd.Printf("latch %s\n", buildinfo.BinaryVersion)
			if extended {
				cmd.Printf("module: %s\n", buildinfo.ModuleVersion())
			}
		},
	}
	cmd.Flags().Bool("extended", false, "Include build metadata")
	return cmd
}
