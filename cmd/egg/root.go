package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/henhouse/egg/eggcontext"
	"github.com/henhouse/egg/metrics"
	"github.com/henhouse/egg/reporting"
)

// version is set at link time via -ldflags "-X main.version=...". It
// defaults to "dev" for local builds.
var version = "dev"

var (
	verboseCount int
	logFormat    string
	metricsAddr  string
	releaseStage string
)

func init() {
	RootCmd.PersistentFlags().CountVarP(&verboseCount, "verbose", "v", "increase log verbosity (repeatable)")
	RootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log output format: text, json, or logstash")
	RootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "expose Prometheus metrics on this address (disabled by default)")
	RootCmd.PersistentFlags().StringVar(&releaseStage, "release-stage", "production", "release stage reported to Bugsnag, if configured")

	RootCmd.AddCommand(BuildCmd)
	RootCmd.AddCommand(HatchCmd)
	RootCmd.AddCommand(VerifyCmd)
	RootCmd.AddCommand(InfoCmd)
	RootCmd.AddCommand(LanguagesCmd)
	RootCmd.AddCommand(CleanCmd)
}

// RootCmd is the main command for the 'egg' binary.
var RootCmd = &cobra.Command{
	Use:   "egg",
	Short: "`egg` packages, signs, verifies, and hatches notebook cells",
	Long:  "`egg` packages, signs, verifies, and hatches notebook cells.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		eggcontext.ConfigureVerbosity(verboseCount)
		if err := eggcontext.ConfigureFormatter(logFormat); err != nil {
			return err
		}
		reporting.Configure(releaseStage)
		if metricsAddr != "" {
			go serveMetrics(metricsAddr)
		}
		return nil
	},
}

func serveMetrics(addr string) {
	logrus.Infof("serving metrics on %s", addr)
	if err := metrics.Serve(addr); err != nil {
		logrus.Warnf("metrics server stopped: %v", err)
	}
}

func fatalf(format string, args ...interface{}) {
	err := fmt.Errorf(format, args...)
	reporting.Notify(err)
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

func main() {
	defer reporting.RecoverAndExit()
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
