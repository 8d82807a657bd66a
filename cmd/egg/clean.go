package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/henhouse/egg/orchestrator"
)

var cleanDryRun bool

func init() {
	CleanCmd.Flags().BoolVar(&cleanDryRun, "dry-run", false, "list what would be removed without removing it")
}

// CleanCmd is the cobra command for removing precompute caches, cell
// output, and sandbox directories under a tree.
var CleanCmd = &cobra.Command{
	Use:   "clean <root>",
	Short: "`clean` removes precompute caches, cell output, and sandbox directories",
	Long:  "`clean` removes precompute caches, cell output, and sandbox directories under root.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		removed, err := orchestrator.Clean(ctx, orchestrator.CleanOptions{Root: args[0], DryRun: cleanDryRun})
		if err != nil {
			fatalf("clean: %v", err)
		}
		for _, p := range removed {
			fmt.Println(p)
		}
	},
}
