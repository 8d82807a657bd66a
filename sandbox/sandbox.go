// Package sandbox plans per-language execution images (C10): a small,
// closed MicroVM|Container tagged variant, one image directory per distinct
// language a manifest references. These are thin collaborators around the
// trust core, not part of it — nothing in Verifier or HashIndex depends on
// sandbox output.
package sandbox

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/henhouse/egg/eggcontext"
	"github.com/henhouse/egg/eggerrs"
	yaml "gopkg.in/yaml.v2"
)

// Kind tags which descriptor shape an image directory holds.
type Kind string

const (
	KindMicroVM    Kind = "MicroVM"
	KindContainer  Kind = "Container"
	placeholderLen      = 1 << 20 // 1 MiB placeholder rootfs
)

// Image describes one planned language image on disk.
type Image struct {
	Language string
	Kind     Kind
	Dir      string
}

// microVMDescriptor is the boot-source + rootfs shape written to
// microvm.json on Linux.
type microVMDescriptor struct {
	Language   string `yaml:"language"`
	Runtime    string `yaml:"runtime"`
	BootSource struct {
		KernelImagePath string `yaml:"kernel_image_path"`
		BootArgs        string `yaml:"boot_args"`
	} `yaml:"boot_source"`
	RootFS struct {
		Path     string `yaml:"path"`
		ReadOnly bool   `yaml:"read_only"`
	} `yaml:"rootfs"`
}

// containerDescriptor is the shape written to container.json on non-Linux
// platforms.
type containerDescriptor struct {
	Language string `yaml:"language"`
	Runtime  string `yaml:"runtime"`
}

// Release removes every directory Plan created, in reverse order, ignoring
// directories that no longer exist.
type Release func() error

// Plan creates one image directory per distinct language in languages
// (first-seen order, as returned by Manifest.Languages), under base, and
// returns the resulting images plus a scoped Release that tears every
// created directory back down.
func Plan(ctx context.Context, base string, languages []string) ([]Image, Release, error) {
	var created []string
	release := func() error {
		for i := len(created) - 1; i >= 0; i-- {
			if err := os.RemoveAll(created[i]); err != nil {
				return err
			}
		}
		return nil
	}

	images := make([]Image, 0, len(languages))
	for _, lang := range languages {
		dir := filepath.Join(base, lang+"-image")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, release, eggerrs.Wrap(eggerrs.KindPlatform, err, "create image dir for %s", lang)
		}
		created = append(created, dir)

		img, err := writeDescriptor(dir, lang)
		if err != nil {
			return nil, release, err
		}
		images = append(images, img)
		eggcontext.Stepf(ctx, "sandbox", "planned %s image for %s at %s", img.Kind, lang, dir)
	}

	return images, release, nil
}

func writeDescriptor(dir, lang string) (Image, error) {
	switch runtime.GOOS {
	case "linux":
		return writeMicroVM(dir, lang)
	default:
		return writeContainer(dir, lang)
	}
}

func writeMicroVM(dir, lang string) (Image, error) {
	kernelPath := filepath.Join(dir, "vmlinux")
	rootfsPath := filepath.Join(dir, "rootfs.ext4")

	if err := os.WriteFile(kernelPath, []byte("placeholder-kernel\n"), 0o644); err != nil {
		return Image{}, eggerrs.Wrap(eggerrs.KindPlatform, err, "write placeholder kernel for %s", lang)
	}
	if err := os.WriteFile(rootfsPath, make([]byte, placeholderLen), 0o644); err != nil {
		return Image{}, eggerrs.Wrap(eggerrs.KindPlatform, err, "write placeholder rootfs for %s", lang)
	}

	desc := microVMDescriptor{Language: lang, Runtime: "microvm"}
	desc.BootSource.KernelImagePath = kernelPath
	desc.BootSource.BootArgs = "console=ttyS0 reboot=k panic=1"
	desc.RootFS.Path = rootfsPath
	desc.RootFS.ReadOnly = false

	if err := writeYAML(filepath.Join(dir, "microvm.json"), desc); err != nil {
		return Image{}, err
	}
	conf := fmt.Sprintf("language=%s\nruntime=microvm\nkernel=%s\nrootfs=%s\n", lang, kernelPath, rootfsPath)
	if err := os.WriteFile(filepath.Join(dir, "microvm.conf"), []byte(conf), 0o644); err != nil {
		return Image{}, eggerrs.Wrap(eggerrs.KindPlatform, err, "write microvm.conf for %s", lang)
	}

	return Image{Language: lang, Kind: KindMicroVM, Dir: dir}, nil
}

func writeContainer(dir, lang string) (Image, error) {
	desc := containerDescriptor{Language: lang, Runtime: "container"}
	if err := writeYAML(filepath.Join(dir, "container.json"), desc); err != nil {
		return Image{}, err
	}
	conf := fmt.Sprintf("language=%s\nruntime=container\n", lang)
	if err := os.WriteFile(filepath.Join(dir, "container.conf"), []byte(conf), 0o644); err != nil {
		return Image{}, eggerrs.Wrap(eggerrs.KindPlatform, err, "write container.conf for %s", lang)
	}
	return Image{Language: lang, Kind: KindContainer, Dir: dir}, nil
}

// writeYAML serializes v as the on-disk descriptor at path (named ".json"
// for the platform tooling that consumes it; nothing in this module parses
// its own descriptors back, so the block-style YAML encoding is fine here).
func writeYAML(path string, v interface{}) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return eggerrs.Wrap(eggerrs.KindPlatform, err, "marshal %s", filepath.Base(path))
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eggerrs.Wrap(eggerrs.KindPlatform, err, "write %s", path)
	}
	return nil
}

// Launch invokes the platform's runtime binary against img's descriptor
// file (microvm.json or container.json, depending on img.Kind). Launch is
// a thin collaborator, not part of the trust core: a failure here never
// implicates archive integrity, and callers that only want to plan images
// (Hatch) never call it.
func Launch(ctx context.Context, img Image, binary string) error {
	descriptor := "container.json"
	if img.Kind == KindMicroVM {
		descriptor = "microvm.json"
	}
	path := filepath.Join(img.Dir, descriptor)

	eggcontext.Stepf(ctx, "sandbox", "launching %s against %s", binary, path)
	cmd := exec.CommandContext(ctx, binary, path)
	if err := cmd.Run(); err != nil {
		return eggerrs.Wrap(eggerrs.KindPlatform, err, "launch %s for %s", binary, img.Language)
	}
	return nil
}
