package sandbox

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestPlanCreatesOneImagePerLanguage(t *testing.T) {
	base := t.TempDir()
	images, release, err := Plan(context.Background(), base, []string{"python", "bash"})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	defer release()

	if len(images) != 2 {
		t.Fatalf("expected 2 images, got %d", len(images))
	}
	for i, lang := range []string{"python", "bash"} {
		if images[i].Language != lang {
			t.Fatalf("expected images[%d].Language = %s, got %s", i, lang, images[i].Language)
		}
		if _, err := os.Stat(images[i].Dir); err != nil {
			t.Fatalf("expected image dir to exist: %v", err)
		}
	}
}

func TestPlanWritesPlatformDescriptor(t *testing.T) {
	base := t.TempDir()
	images, release, err := Plan(context.Background(), base, []string{"python"})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	defer release()

	var descriptor, conf string
	if runtime.GOOS == "linux" {
		descriptor, conf = "microvm.json", "microvm.conf"
		if images[0].Kind != KindMicroVM {
			t.Fatalf("expected KindMicroVM on linux, got %s", images[0].Kind)
		}
		if _, err := os.Stat(filepath.Join(images[0].Dir, "vmlinux")); err != nil {
			t.Fatalf("expected placeholder kernel: %v", err)
		}
		info, err := os.Stat(filepath.Join(images[0].Dir, "rootfs.ext4"))
		if err != nil {
			t.Fatalf("expected placeholder rootfs: %v", err)
		}
		if info.Size() != placeholderLen {
			t.Fatalf("expected %d-byte rootfs, got %d", placeholderLen, info.Size())
		}
	} else {
		descriptor, conf = "container.json", "container.conf"
		if images[0].Kind != KindContainer {
			t.Fatalf("expected KindContainer off linux, got %s", images[0].Kind)
		}
	}

	if _, err := os.Stat(filepath.Join(images[0].Dir, descriptor)); err != nil {
		t.Fatalf("expected %s: %v", descriptor, err)
	}
	if _, err := os.Stat(filepath.Join(images[0].Dir, conf)); err != nil {
		t.Fatalf("expected %s: %v", conf, err)
	}
}

func TestReleaseRemovesCreatedDirectories(t *testing.T) {
	base := t.TempDir()
	images, release, err := Plan(context.Background(), base, []string{"r"})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	dir := images[0].Dir
	if err := release(); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("expected image dir to be removed, stat err = %v", err)
	}
}
