package clone

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLocalCloneHardlinksObjects(t *testing.T) {
	root := t.TempDir()
	srcGitDir := filepath.Join(root, "src", ".git")
	dstGitDir := filepath.Join(root, "dst", ".git")

	writeFile(t, filepath.Join(srcGitDir, "objects", "pack", "pack-abc.pack"), "pack-data")
	writeFile(t, filepath.Join(srcGitDir, "objects", "ab", "cdef0123456789"), "loose-object")

	if err := LocalClone(LocalCloneOptions{SourceGitDir: srcGitDir, DestGitDir: dstGitDir}); err != nil {
		t.Fatalf("LocalClone: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dstGitDir, "objects", "pack", "pack-abc.pack"))
	if err != nil {
		t.Fatalf("reading mirrored pack: %v", err)
	}
	if string(got) != "pack-data" {
		t.Errorf("pack content = %q, want %q", got, "pack-data")
	}

	srcInfo, err := os.Stat(filepath.Join(srcGitDir, "objects", "ab", "cdef0123456789"))
	if err != nil {
		t.Fatal(err)
	}
	dstInfo, err := os.Stat(filepath.Join(dstGitDir, "objects", "ab", "cdef0123456789"))
	if err != nil {
		t.Fatal(err)
	}
	if !os.SameFile(srcInfo, dstInfo) {
		t.Error("expected the loose object to be hardlinked, not copied")
	}
}

func TestLocalCloneNoHardlinksCopies(t *testing.T) {
	root := t.TempDir()
	srcGitDir := filepath.Join(root, "src", ".git")
	dstGitDir := filepath.Join(root, "dst", ".git")
	writeFile(t, filepath.Join(srcGitDir, "objects", "ab", "cdef0123456789"), "loose-object")

	if err := LocalClone(LocalCloneOptions{SourceGitDir: srcGitDir, DestGitDir: dstGitDir, NoHardlinks: true}); err != nil {
		t.Fatalf("LocalClone: %v", err)
	}

	srcInfo, _ := os.Stat(filepath.Join(srcGitDir, "objects", "ab", "cdef0123456789"))
	dstInfo, _ := os.Stat(filepath.Join(dstGitDir, "objects", "ab", "cdef0123456789"))
	if os.SameFile(srcInfo, dstInfo) {
		t.Error("expected a copy, not a hardlink, under NoHardlinks")
	}
}

func TestLocalCloneSharedWritesAlternates(t *testing.T) {
	root := t.TempDir()
	srcGitDir := filepath.Join(root, "src", ".git")
	dstGitDir := filepath.Join(root, "dst", ".git")
	if err := os.MkdirAll(srcGitDir, 0o755); err != nil {
		t.Fatal(err)
	}

	if err := LocalClone(LocalCloneOptions{SourceGitDir: srcGitDir, DestGitDir: dstGitDir, Shared: true}); err != nil {
		t.Fatalf("LocalClone: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dstGitDir, "objects", "info", "alternates"))
	if err != nil {
		t.Fatalf("reading alternates: %v", err)
	}
	want := filepath.Join(srcGitDir, "objects") + "\n"
	if string(data) != want {
		t.Errorf("alternates = %q, want %q", data, want)
	}
}

func TestMirrorObjectDirRewritesRelativeAlternates(t *testing.T) {
	root := t.TempDir()
	srcGitDir := filepath.Join(root, "src", ".git")
	dstGitDir := filepath.Join(root, "dst", ".git")
	baseGitDir := filepath.Join(root, "base", ".git")
	if err := os.MkdirAll(filepath.Join(baseGitDir, "objects"), 0o755); err != nil {
		t.Fatal(err)
	}

	writeFile(t, filepath.Join(srcGitDir, "objects", "info", "alternates"), "../../../base/.git/objects\n")

	if err := LocalClone(LocalCloneOptions{SourceGitDir: srcGitDir, DestGitDir: dstGitDir}); err != nil {
		t.Fatalf("LocalClone: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dstGitDir, "objects", "info", "alternates"))
	if err != nil {
		t.Fatalf("reading rewritten alternates: %v", err)
	}
	want := filepath.Join(baseGitDir, "objects") + "\n"
	if string(data) != want {
		t.Errorf("alternates = %q, want %q", data, want)
	}
}

func TestIsShallowSource(t *testing.T) {
	root := t.TempDir()
	if IsShallowSource(root) {
		t.Error("fresh directory should not be reported shallow")
	}
	writeFile(t, filepath.Join(root, "shallow"), "abc123\n")
	if !IsShallowSource(root) {
		t.Error("directory with a shallow marker should be reported shallow")
	}
}
