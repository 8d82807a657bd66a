package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/henhouse/egg/orchestrator"
)

var infoPublicKey string

func init() {
	InfoCmd.Flags().StringVar(&infoPublicKey, "public-key", "", "verify key, 32 raw or 64 hex chars (defaults to EGG_PUBLIC_KEY)")
}

// InfoCmd is the cobra command for printing an archive's manifest summary.
var InfoCmd = &cobra.Command{
	Use:   "info <archive.egg>",
	Short: "`info` verifies an archive and prints its manifest summary",
	Long:  "`info` verifies an archive and prints its manifest summary.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		pk, err := resolvePublicKey(infoPublicKey)
		if err != nil {
			fatalf("info: %v", err)
		}
		summary, err := orchestrator.Info(ctx, orchestrator.InfoOptions{ArchivePath: args[0], PublicKey: pk})
		if err != nil {
			fatalf("info: %v", err)
		}
		fmt.Println(summary)
	},
}
