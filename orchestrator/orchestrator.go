// Package orchestrator wires C1-C10 into the five user-facing pipelines
// (C11): Build, Hatch, Verify, Info, Clean. Every pipeline is
// single-threaded and cooperative: no shared mutable state between
// pipelines, no pipeline re-entrant, every scoped resource (staging
// directories, download temp files, archive handles) released on every
// exit path including cancellation.
package orchestrator

import (
	"archive/zip"
	"context"
	"crypto/ed25519"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/henhouse/egg/composer"
	"github.com/henhouse/egg/eggcontext"
	"github.com/henhouse/egg/eggerrs"
	"github.com/henhouse/egg/events"
	egglangtable "github.com/henhouse/egg/langtable"
	"github.com/henhouse/egg/manifest"
	"github.com/henhouse/egg/metrics"
	"github.com/henhouse/egg/precompute"
	"github.com/henhouse/egg/runtime"
	"github.com/henhouse/egg/sandbox"
	"github.com/henhouse/egg/signer"
	"github.com/henhouse/egg/verifier"
)

func timed(pipeline string, fn func() error) error {
	start := time.Now()
	err := fn()
	metrics.ObservePipeline(pipeline, time.Since(start))
	return err
}

// BuildOptions configures the Build pipeline.
type BuildOptions struct {
	ManifestPath string
	OutputPath   string
	Force        bool
	Precompute   bool
	SigningKey   []byte
	Languages    []string // precompute language filter
	Timeout      time.Duration
	Broadcaster  *events.Broadcaster
}

// Build resolves runtime dependencies, optionally precomputes cell output,
// composes a signed archive, and immediately re-verifies the archive it
// just wrote, unlinking it on any verification failure.
func Build(ctx context.Context, opts BuildOptions) error {
	return timed("build", func() error {
		if _, err := os.Stat(opts.OutputPath); err == nil && !opts.Force {
			return eggerrs.New(eggerrs.KindExists, "%s already exists (use --force to overwrite)", opts.OutputPath)
		}

		m, err := manifest.Load(opts.ManifestPath)
		if err != nil {
			return err
		}
		manifestDir := filepath.Dir(opts.ManifestPath)

		eggcontext.Stepf(ctx, "build", "resolving %d dependencies", len(m.Dependencies))
		deps, err := runtime.Resolve(ctx, m.Dependencies, manifestDir)
		if err != nil {
			return err
		}

		if opts.Precompute {
			eggcontext.Stepf(ctx, "build", "running precompute")
			if err := precompute.Run(ctx, m, precompute.Options{
				ManifestDir: manifestDir,
				Table:       egglangtable.Default(),
				Timeout:     opts.Timeout,
				Languages:   opts.Languages,
			}); err != nil {
				return err
			}
		}

		eggcontext.Stepf(ctx, "build", "composing %s", opts.OutputPath)
		if err := composer.Compose(ctx, composer.Options{
			ManifestPath: opts.ManifestPath,
			OutputPath:   opts.OutputPath,
			Dependencies: deps,
			SigningKey:   opts.SigningKey,
			Broadcaster:  opts.Broadcaster,
		}); err != nil {
			return err
		}

		sk := signer.DeriveSigningKey(opts.SigningKey)
		pk := signer.PublicKeyFromSigningKey(sk)
		if _, err := verifier.Verify(ctx, opts.OutputPath, pk); err != nil {
			os.Remove(opts.OutputPath)
			return eggerrs.Wrap(eggerrs.KindSignature, err, "freshly built archive failed self-verification")
		}
		eggcontext.Stepf(ctx, "build", "wrote %s", opts.OutputPath)
		return nil
	})
}

// HatchOptions configures the Hatch pipeline.
type HatchOptions struct {
	ArchivePath string
	PublicKey   ed25519.PublicKey
	Timeout     time.Duration
}

// Hatch verifies an archive, extracts it into a scoped directory, plans
// sandbox images for every referenced language, and executes every cell in
// manifest order.
func Hatch(ctx context.Context, opts HatchOptions) error {
	return timed("hatch", func() error {
		if _, err := os.Stat(opts.ArchivePath); err != nil {
			return eggerrs.New(eggerrs.KindMissingSource, "archive not found: %s", opts.ArchivePath)
		}

		if _, err := verifier.Verify(ctx, opts.ArchivePath, opts.PublicKey); err != nil {
			return err
		}
		eggcontext.Stepf(ctx, "hatch", "verified %s", opts.ArchivePath)

		extractDir, err := os.MkdirTemp("", "egg-hatch-"+uuid.NewString())
		if err != nil {
			return eggerrs.Wrap(eggerrs.KindMissingSource, err, "create extraction directory")
		}
		defer os.RemoveAll(extractDir)

		if err := extractArchive(opts.ArchivePath, extractDir); err != nil {
			return err
		}

		m, err := manifest.Load(filepath.Join(extractDir, "manifest.yaml"))
		if err != nil {
			return err
		}

		sandboxBase := filepath.Join(extractDir, "sandbox")
		if err := os.MkdirAll(sandboxBase, 0o755); err != nil {
			return eggerrs.Wrap(eggerrs.KindPlatform, err, "create sandbox dir")
		}
		_, release, err := sandbox.Plan(ctx, sandboxBase, m.Languages())
		if err != nil {
			return err
		}
		defer release()

		table := egglangtable.Default()
		for _, cell := range m.Cells {
			cmd, ok := table.Lookup(cell.Language)
			if !ok {
				return eggerrs.New(eggerrs.KindUnsupportedLang, "unsupported language: %s", cell.Language)
			}
			if _, err := exec.LookPath(cmd[0]); err != nil {
				return eggerrs.New(eggerrs.KindRuntimeMissing, "interpreter %q not found in PATH for language %s", cmd[0], cell.Language)
			}
			srcPath := filepath.Join(extractDir, filepath.FromSlash(cell.Source))
			if err := runCell(ctx, cmd, srcPath, opts.Timeout); err != nil {
				return err
			}
			eggcontext.Stepf(ctx, "hatch", "executed %s (%s)", cell.Source, cell.Language)
		}
		return nil
	})
}

// VerifyOptions configures the Verify pipeline.
type VerifyOptions struct {
	ArchivePath string
	PublicKey   ed25519.PublicKey
}

// Verify reports whether the archive passes every integrity and signature
// check, returning a single-line error on failure.
func Verify(ctx context.Context, opts VerifyOptions) error {
	return timed("verify", func() error {
		if _, err := os.Stat(opts.ArchivePath); err != nil {
			return eggerrs.New(eggerrs.KindMissingSource, "archive not found: %s", opts.ArchivePath)
		}
		_, err := verifier.Verify(ctx, opts.ArchivePath, opts.PublicKey)
		return err
	})
}

// InfoOptions configures the Info pipeline.
type InfoOptions struct {
	ArchivePath string
	PublicKey   ed25519.PublicKey
}

// Info verifies the archive, extracts only manifest.yaml, and returns the
// fixed human-readable summary report.
func Info(ctx context.Context, opts InfoOptions) (string, error) {
	var summary string
	err := timed("info", func() error {
		if _, err := verifier.Verify(ctx, opts.ArchivePath, opts.PublicKey); err != nil {
			return err
		}

		zr, err := zip.OpenReader(opts.ArchivePath)
		if err != nil {
			return eggerrs.Wrap(eggerrs.KindMissingSource, err, "open %s", opts.ArchivePath)
		}
		defer zr.Close()

		for _, f := range zr.File {
			if f.Name != "manifest.yaml" {
				continue
			}
			rc, err := f.Open()
			if err != nil {
				return eggerrs.Wrap(eggerrs.KindManifest, err, "open manifest.yaml")
			}
			data, err := io.ReadAll(rc)
			rc.Close()
			if err != nil {
				return eggerrs.Wrap(eggerrs.KindManifest, err, "read manifest.yaml")
			}
			m, err := manifest.Parse(data, "")
			if err != nil {
				return err
			}
			summary = m.Summary()
			return nil
		}
		return eggerrs.New(eggerrs.KindManifest, "archive missing manifest.yaml")
	})
	return summary, err
}

// CleanOptions configures the Clean pipeline.
type CleanOptions struct {
	Root   string
	DryRun bool
}

// Clean recursively removes precompute_hashes.yaml files, *.out files, and
// sandbox directories under Root, returning the paths it removed (or
// would remove, under DryRun).
func Clean(ctx context.Context, opts CleanOptions) ([]string, error) {
	var removed []string
	err := timed("clean", func() error {
		return filepath.WalkDir(opts.Root, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			name := d.Name()
			isTarget := !d.IsDir() && (name == "precompute_hashes.yaml" || hasOutSuffix(name))
			isSandboxDir := d.IsDir() && name == "sandbox"

			if !isTarget && !isSandboxDir {
				return nil
			}

			removed = append(removed, path)
			eggcontext.Stepf(ctx, "clean", "%s", path)
			if opts.DryRun {
				if isSandboxDir {
					return filepath.SkipDir
				}
				return nil
			}
			if err := os.RemoveAll(path); err != nil {
				return eggerrs.Wrap(eggerrs.KindMissingSource, err, "remove %s", path)
			}
			if isSandboxDir {
				return filepath.SkipDir
			}
			return nil
		})
	})
	return removed, err
}

func hasOutSuffix(name string) bool {
	const suffix = ".out"
	return len(name) > len(suffix) && name[len(name)-len(suffix):] == suffix
}

func extractArchive(archivePath, destDir string) error {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return eggerrs.Wrap(eggerrs.KindMissingSource, err, "open %s", archivePath)
	}
	defer zr.Close()

	for _, f := range zr.File {
		dest := filepath.Join(destDir, filepath.FromSlash(f.Name))
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return eggerrs.Wrap(eggerrs.KindMissingSource, err, "create %s", filepath.Dir(dest))
		}
		if err := extractOne(f, dest); err != nil {
			return err
		}
	}
	return nil
}

func extractOne(f *zip.File, dest string) error {
	rc, err := f.Open()
	if err != nil {
		return eggerrs.Wrap(eggerrs.KindMissingSource, err, "open archive entry %s", f.Name)
	}
	defer rc.Close()

	out, err := os.Create(dest)
	if err != nil {
		return eggerrs.Wrap(eggerrs.KindMissingSource, err, "create %s", dest)
	}
	defer out.Close()

	if _, err := io.Copy(out, rc); err != nil {
		return eggerrs.Wrap(eggerrs.KindMissingSource, err, "extract %s", f.Name)
	}
	return nil
}

func runCell(ctx context.Context, cmd []string, srcPath string, timeout time.Duration) error {
	runCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	outPath := srcPath + ".out"
	out, err := os.Create(outPath)
	if err != nil {
		return eggerrs.Wrap(eggerrs.KindCellExec, err, "create %s", outPath)
	}

	args := append(append([]string{}, cmd[1:]...), srcPath)
	c := exec.CommandContext(runCtx, cmd[0], args...)
	c.Stdout = out

	runErr := c.Run()
	closeErr := out.Close()

	if runCtx.Err() == context.DeadlineExceeded {
		os.Remove(outPath)
		return eggerrs.New(eggerrs.KindCellExec, "%s: timed out after %s", srcPath, timeout)
	}
	if runErr != nil {
		os.Remove(outPath)
		return eggerrs.Wrap(eggerrs.KindCellExec, runErr, "%s: command failed", srcPath)
	}
	if closeErr != nil {
		os.Remove(outPath)
		return eggerrs.Wrap(eggerrs.KindCellExec, closeErr, "finalize %s", outPath)
	}
	return nil
}
