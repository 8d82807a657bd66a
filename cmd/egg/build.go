package main

import (
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/henhouse/egg/eggcontext"
	"github.com/henhouse/egg/events"
	"github.com/henhouse/egg/orchestrator"
)

var (
	buildOutput     string
	buildForce      bool
	buildPrecompute bool
	buildLanguages  string
	buildTimeout    time.Duration
	buildSeed       string
)

func init() {
	BuildCmd.Flags().StringVarP(&buildOutput, "output", "o", "", "output .egg archive path (required)")
	BuildCmd.Flags().BoolVarP(&buildForce, "force", "f", false, "overwrite an existing output archive")
	BuildCmd.Flags().BoolVar(&buildPrecompute, "precompute", false, "run every cell once and cache its output before packaging")
	BuildCmd.Flags().StringVar(&buildLanguages, "languages", "", "comma-separated language filter for --precompute")
	BuildCmd.Flags().DurationVar(&buildTimeout, "timeout", 30*time.Second, "per-cell execution timeout for --precompute")
	BuildCmd.Flags().StringVar(&buildSeed, "signing-key", "", "signing key seed (defaults to EGG_SIGNING_KEY)")
	BuildCmd.MarkFlagRequired("output")
}

// BuildCmd is the cobra command for packaging and signing a manifest.
var BuildCmd = &cobra.Command{
	Use:   "build <manifest.yaml>",
	Short: "`build` packages and signs a manifest into a .egg archive",
	Long:  "`build` packages and signs a manifest into a .egg archive.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		broadcaster := events.NewBroadcaster(ctx)
		defer broadcaster.Close()

		var languages []string
		if buildLanguages != "" {
			languages = strings.Split(buildLanguages, ",")
		}

		err := orchestrator.Build(ctx, orchestrator.BuildOptions{
			ManifestPath: args[0],
			OutputPath:   buildOutput,
			Force:        buildForce,
			Precompute:   buildPrecompute,
			SigningKey:   resolveSigningSeed(buildSeed),
			Languages:    languages,
			Timeout:      buildTimeout,
			Broadcaster:  broadcaster,
		})
		if err != nil {
			fatalf("build: %v", err)
		}
		eggcontext.Stepf(ctx, "build", "done")
	},
}
