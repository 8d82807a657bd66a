package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/henhouse/egg/orchestrator"
)

var verifyPublicKey string

func init() {
	VerifyCmd.Flags().StringVar(&verifyPublicKey, "public-key", "", "verify key, 32 raw or 64 hex chars (defaults to EGG_PUBLIC_KEY)")
}

// VerifyCmd is the cobra command for checking an archive's integrity and
// signature without executing anything.
var VerifyCmd = &cobra.Command{
	Use:   "verify <archive.egg>",
	Short: "`verify` checks an archive's integrity and signature",
	Long:  "`verify` checks an archive's integrity and signature without executing any cell.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		pk, err := resolvePublicKey(verifyPublicKey)
		if err != nil {
			fatalf("verify: %v", err)
		}
		if err := orchestrator.Verify(ctx, orchestrator.VerifyOptions{ArchivePath: args[0], PublicKey: pk}); err != nil {
			fatalf("verify: %v", err)
		}
		fmt.Println("OK")
	},
}
