// Package reporting optionally forwards a CLI pipeline's terminal errors
// and panics to Bugsnag, generalized from an http.Handler-wrapping
// configureReporting idiom down to a single command invocation: there is
// no request handler here, so Configure only installs the client, the
// CLI's error path calls Notify, and main defers RecoverAndExit.
package reporting

import (
	"fmt"
	"os"

	bugsnag "github.com/bugsnag/bugsnag-go"
	"github.com/henhouse/egg/eggconfig"
)

var configured bool

// Configure installs the Bugsnag client if EGG_BUGSNAG_API_KEY is set, and
// reports whether reporting is active.
func Configure(releaseStage string) bool {
	apiKey, ok := eggconfig.BugsnagAPIKey()
	if !ok {
		return false
	}
	bugsnag.Configure(bugsnag.Configuration{
		APIKey:       apiKey,
		ReleaseStage: releaseStage,
	})
	configured = true
	return true
}

// Notify reports err to Bugsnag if Configure was called, and is a no-op
// otherwise. Callers call this from the CLI's top-level error path, not
// from inside a pipeline.
func Notify(err error) {
	if !configured || err == nil {
		return
	}
	bugsnag.Notify(err)
}

// RecoverAndExit recovers a panic, reports it if reporting is configured,
// and exits the process with a non-zero status. Deferred once at the top
// of main().
func RecoverAndExit() {
	if r := recover(); r != nil {
		if configured {
			if err, ok := r.(error); ok {
				bugsnag.Notify(err)
			} else {
				bugsnag.Notify(fmt.Errorf("panic: %v", r))
			}
		}
		os.Exit(1)
	}
}
