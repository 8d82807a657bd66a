// Package precompute executes each cell's interpreter ahead of packaging
// (C9), caching the result keyed by the cell source's content digest so an
// unchanged rerun issues zero command executions. The cache is purely an
// optimization: it is never consulted to decide whether a build is correct,
// only whether work can be skipped.
package precompute

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/henhouse/egg/digest"
	"github.com/henhouse/egg/eggcontext"
	"github.com/henhouse/egg/eggerrs"
	"github.com/henhouse/egg/langtable"
	"github.com/henhouse/egg/manifest"
	"github.com/henhouse/egg/metrics"
	yaml "gopkg.in/yaml.v2"
)

const cacheFileName = "precompute_hashes.yaml"

// Cache maps a cell's source path (relative to the manifest directory) to
// the content digest it was last executed against.
type Cache map[string]string

// LoadCache reads the cache file under manifestDir, if any. A missing file
// is an empty cache, not an error.
func LoadCache(manifestDir string) (Cache, error) {
	data, err := os.ReadFile(filepath.Join(manifestDir, cacheFileName))
	if os.IsNotExist(err) {
		return Cache{}, nil
	}
	if err != nil {
		return nil, eggerrs.Wrap(eggerrs.KindHashIndex, err, "read %s", cacheFileName)
	}
	var c Cache
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, eggerrs.Wrap(eggerrs.KindHashIndex, err, "parse %s", cacheFileName)
	}
	if c == nil {
		c = Cache{}
	}
	return c, nil
}

func (c Cache) save(manifestDir string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return eggerrs.Wrap(eggerrs.KindHashIndex, err, "marshal %s", cacheFileName)
	}
	dest := filepath.Join(manifestDir, cacheFileName)
	tmp := dest + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return eggerrs.Wrap(eggerrs.KindHashIndex, err, "write %s", tmp)
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return eggerrs.Wrap(eggerrs.KindHashIndex, err, "rename %s into place", tmp)
	}
	return nil
}

// Options configures a Run invocation.
type Options struct {
	ManifestDir string
	Table       *langtable.Table // defaults to langtable.Default() when nil
	Timeout     time.Duration    // per-cell execution timeout; required by callers exposed to untrusted manifests
	Languages   []string         // when non-empty, only cells in these languages are executed
}

// Run executes every applicable cell in manifest order, reusing cached
// output for cells whose source digest has not changed since the last
// successful run, and persists the updated cache only after every
// executed cell has succeeded.
func Run(ctx context.Context, m *manifest.Manifest, opts Options) error {
	table := opts.Table
	if table == nil {
		table = langtable.Default()
	}
	var filter map[string]bool
	if len(opts.Languages) > 0 {
		filter = make(map[string]bool, len(opts.Languages))
		for _, l := range opts.Languages {
			filter[l] = true
		}
	}

	cache, err := LoadCache(opts.ManifestDir)
	if err != nil {
		return err
	}
	next := make(Cache, len(cache))
	for k, v := range cache {
		next[k] = v
	}

	for _, cell := range m.Cells {
		if filter != nil && !filter[cell.Language] {
			continue
		}

		cmd, ok := table.Lookup(cell.Language)
		if !ok {
			return eggerrs.New(eggerrs.KindUnsupportedLang, "unsupported language: %s", cell.Language)
		}
		if _, err := exec.LookPath(cmd[0]); err != nil {
			return eggerrs.New(eggerrs.KindRuntimeMissing, "interpreter %q not found in PATH for language %s", cmd[0], cell.Language)
		}

		srcPath := filepath.Join(opts.ManifestDir, filepath.FromSlash(cell.Source))
		d, err := digest.FromFile(srcPath)
		if err != nil {
			return eggerrs.Wrap(eggerrs.KindMissingSource, err, "digest %s", cell.Source)
		}
		outPath := srcPath + ".out"

		if cache[cell.Source] == d.Hex() {
			if _, err := os.Stat(outPath); err == nil {
				eggcontext.Stepf(ctx, "precompute", "cache hit: %s", cell.Source)
				metrics.RecordPrecomputeHit(true)
				next[cell.Source] = d.Hex()
				continue
			}
		}
		metrics.RecordPrecomputeHit(false)

		if err := execute(ctx, cmd, srcPath, outPath, opts.Timeout); err != nil {
			return err
		}
		eggcontext.Stepf(ctx, "precompute", "executed %s (%s)", cell.Source, cell.Language)
		next[cell.Source] = d.Hex()
	}

	return next.save(opts.ManifestDir)
}

// execute runs cmd with src appended as the final argument, streaming
// stdout directly to outPath. outPath is removed on any failure, including
// a caller-supplied timeout, so a failed cell never leaves a partial
// output file behind.
func execute(ctx context.Context, cmd []string, src, outPath string, timeout time.Duration) error {
	runCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	out, err := os.Create(outPath)
	if err != nil {
		return eggerrs.Wrap(eggerrs.KindCellExec, err, "create %s", outPath)
	}

	args := append(append([]string{}, cmd[1:]...), src)
	c := exec.CommandContext(runCtx, cmd[0], args...)
	c.Stdout = out

	runErr := c.Run()
	closeErr := out.Close()

	if runCtx.Err() == context.DeadlineExceeded {
		os.Remove(outPath)
		return eggerrs.New(eggerrs.KindCellExec, "%s: timed out after %s", src, timeout)
	}
	if runErr != nil {
		os.Remove(outPath)
		return eggerrs.Wrap(eggerrs.KindCellExec, runErr, "%s: command failed", src)
	}
	if closeErr != nil {
		os.Remove(outPath)
		return eggerrs.Wrap(eggerrs.KindCellExec, closeErr, "finalize %s", outPath)
	}
	return nil
}
