package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/henhouse/egg/eggcontext"
	"github.com/henhouse/egg/orchestrator"
)

var (
	hatchPublicKey string
	hatchTimeout   time.Duration
)

func init() {
	HatchCmd.Flags().StringVar(&hatchPublicKey, "public-key", "", "verify key, 32 raw or 64 hex chars (defaults to EGG_PUBLIC_KEY)")
	HatchCmd.Flags().DurationVar(&hatchTimeout, "timeout", 30*time.Second, "per-cell execution timeout")
}

// HatchCmd is the cobra command for verifying and executing an archive.
var HatchCmd = &cobra.Command{
	Use:   "hatch <archive.egg>",
	Short: "`hatch` verifies an archive and executes every cell in order",
	Long:  "`hatch` verifies an archive and executes every cell in order.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		pk, err := resolvePublicKey(hatchPublicKey)
		if err != nil {
			fatalf("hatch: %v", err)
		}
		if err := orchestrator.Hatch(ctx, orchestrator.HatchOptions{
			ArchivePath: args[0],
			PublicKey:   pk,
			Timeout:     hatchTimeout,
		}); err != nil {
			fatalf("hatch: %v", err)
		}
		eggcontext.Stepf(ctx, "hatch", "done")
	},
}
