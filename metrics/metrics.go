// Package metrics instruments the Orchestrator's five pipelines through a
// github.com/docker/go-metrics namespace (itself backed by
// prometheus/client_golang). These numbers are ambient-only: recorded
// unconditionally, and optionally exposed over a bare net/http handler when
// --metrics-addr is passed (off by default; this is local operator tooling,
// not part of the archive trust boundary).
package metrics

import (
	"net/http"
	"time"

	gometrics "github.com/docker/go-metrics"
)

// Namespace is this module's prometheus namespace, registered with the
// default registry the way metrics/prometheus.go registers "registry".
var Namespace = gometrics.NewNamespace("egg", "pipeline", nil)

var (
	pipelineDuration = Namespace.NewLabeledTimer("duration_seconds", "Time spent in an Orchestrator pipeline", "pipeline")
	precomputeCache  = Namespace.NewLabeledCounter("precompute_cache_total", "Precompute cache hits and misses", "result")
)

func init() {
	gometrics.Register(Namespace)
}

// ObservePipeline records how long a named pipeline (build/hatch/verify/
// info/clean) took to run.
func ObservePipeline(pipeline string, d time.Duration) {
	pipelineDuration.WithValues(pipeline).Update(d)
}

// RecordPrecomputeHit records a Precomputer cache hit or miss.
func RecordPrecomputeHit(hit bool) {
	if hit {
		precomputeCache.WithValues("hit").Inc()
	} else {
		precomputeCache.WithValues("miss").Inc()
	}
}

// Serve blocks, exposing this namespace's metrics on addr until the
// listener fails or the process exits. Callers that want this run it in
// its own goroutine.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", gometrics.Handler())
	return http.ListenAndServe(addr, mux)
}
